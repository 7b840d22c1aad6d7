// Package auth issues and verifies the bearer tokens of sync administrators.
package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
)

// Scope names an administrative capability carried by a token
type Scope string

const (
	// ScopeSyncRead allows diagnostics, job history and log listings
	ScopeSyncRead Scope = "sync:read"
	// ScopeSyncWrite allows pulls, pushes and entity edits
	ScopeSyncWrite Scope = "sync:write"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrSecretTooShort   = errors.New("admin secret must be at least 32 bytes")
)

// MinSecretLength is the shortest accepted HS256 signing secret
const MinSecretLength = 32

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Scopes []Scope `json:"scopes,omitempty"`
}

// HasScope checks if the claims grant a scope. Write implies read.
func (c *Claims) HasScope(scope Scope) bool {
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeSyncRead && slices.Contains(c.Scopes, ScopeSyncWrite)
}

// Actor returns the subject used for audit logging
func (c *Claims) Actor() string {
	return c.Subject
}

// IssuedToken is a signed token and its expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // Bearer
}

// TokenService handles admin token operations
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewTokenService creates a token service. The secret must be long enough
// for HS256.
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if len(cfg.AdminSecret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	expiration := cfg.TokenExpiration
	if expiration <= 0 {
		expiration = time.Hour
	}
	return &TokenService{
		secret:     []byte(cfg.AdminSecret),
		issuer:     cfg.Issuer,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

// Issue signs a token for subject. A non-positive ttl uses the configured expiration.
func (s *TokenService) Issue(subject string, scopes []Scope, ttl time.Duration) (*IssuedToken, error) {
	if subject == "" {
		return nil, ErrMissingSubject
	}
	if ttl <= 0 {
		ttl = s.expiration
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scopes: scopes,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// Validate verifies a token and returns its claims
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Expiration returns the default token lifetime
func (s *TokenService) Expiration() time.Duration {
	return s.expiration
}
