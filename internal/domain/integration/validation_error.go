package integration

import "fmt"

// Validation error codes
const (
	ValidationCodeRequired       = "required_field"
	ValidationCodeInvalidEmail   = "invalid_email"
	ValidationCodeInvalidURL     = "invalid_url"
	ValidationCodeInvalidPhone   = "invalid_phone"
	ValidationCodeInvalidInteger = "invalid_integer"
	ValidationCodeBelowMinimum   = "below_minimum"
	ValidationCodeAboveMaximum   = "above_maximum"
	ValidationCodeNotANumber     = "not_a_number"
	ValidationCodePattern        = "pattern_mismatch"
	ValidationCodeTooLong        = "too_long"
)

// ValidationError is a field-scoped rejection of a locally destined value
type ValidationError struct {
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Value    string `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}
