package recordapi

import (
	"errors"
	"strings"
)

// DefaultBaseURL is the public endpoint of the record API
const DefaultBaseURL = "https://api.airtable.com/v0"

// Config holds configuration for the remote record API
type Config struct {
	// BaseURL is the API root, without the base ID
	BaseURL string
	// BaseID identifies the workspace holding the tables
	BaseID string
	// APIToken is sent as a bearer token
	APIToken string
	// TimeoutSeconds bounds a single HTTP exchange
	TimeoutSeconds int
	// RequestsPerSecond caps outbound calls (the public API allows 5/s per base)
	RequestsPerSecond float64
	// MaxRetries bounds retries of 429 and 5xx answers within one call.
	// Zero means the default of 3, negative disables retries.
	MaxRetries int
}

// Errors for record API configuration
var (
	ErrConfigMissingBaseID = errors.New("recordapi: base ID is required")
	ErrConfigMissingToken  = errors.New("recordapi: API token is required")
)

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.BaseID == "" {
		return ErrConfigMissingBaseID
	}
	if c.APIToken == "" {
		return ErrConfigMissingToken
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	return nil
}
