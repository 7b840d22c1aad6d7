package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sync Errors
// ---------------------------------------------------------------------------

var (
	// Remote store errors
	ErrRemoteNotConfigured   = errors.New("integration: remote record store not configured")
	ErrRemoteUnavailable     = errors.New("integration: remote record store temporarily unavailable")
	ErrRemoteRequestFailed   = errors.New("integration: remote request failed")
	ErrRemoteInvalidResponse = errors.New("integration: invalid remote response")
	ErrRemoteAuthFailed      = errors.New("integration: remote authentication failed")
	ErrRemoteRateLimited     = errors.New("integration: remote rate limited")

	// Schema errors
	ErrUnknownEntityType     = errors.New("integration: unknown entity type")
	ErrTableNotConfigured    = errors.New("integration: no remote table configured for entity type")
	ErrInvalidFieldMapping   = errors.New("integration: invalid field mapping")
	ErrDuplicateFieldMapping = errors.New("integration: duplicate local field in profile")
	ErrInvalidValidationRule = errors.New("integration: invalid validation rule")

	// Entity and correlation errors
	ErrEntityNotFound        = errors.New("integration: local entity not found")
	ErrInvalidEntityType     = errors.New("integration: entity type is required")
	ErrInvalidRecordID       = errors.New("integration: remote record ID is required")
	ErrCorrelationConflict   = errors.New("integration: entity already linked to a different remote record")
	ErrCorrelationAmbiguous  = errors.New("integration: more than one local entity linked to the remote record")
	ErrReadOnlyField         = errors.New("integration: field is read-only")
	ErrSyncAlreadyInProgress = errors.New("integration: sync pass already in progress")
	ErrRetryItemNotFound     = errors.New("integration: retry item not found")

	// ErrCorrelationNotPersisted means a remote record was created but its id
	// could not be stored locally. Pushing the entity again would create a
	// second record, so it is never retried automatically.
	ErrCorrelationNotPersisted = errors.New("integration: remote record created but correlation not persisted")
)

// ---------------------------------------------------------------------------
// TransportError
// ---------------------------------------------------------------------------

// TransportError reports that the remote store was unreachable or answered
// with a non-success status. It aborts the pass that raised it.
type TransportError struct {
	// StatusCode is the HTTP status, 0 when the request never got a response
	StatusCode int
	// Body is the (truncated) response body
	Body string
	// Err is the classified sentinel (ErrRemoteUnavailable, ErrRemoteRequestFailed, ...)
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", e.Err, e.Body)
	}
	if e.Body == "" {
		return fmt.Sprintf("%v: HTTP %d", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%v: HTTP %d: %s", e.Err, e.StatusCode, e.Body)
}

// Unwrap exposes the classified sentinel
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransportError reports whether err carries a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ---------------------------------------------------------------------------
// UnknownEntityTypeError
// ---------------------------------------------------------------------------

// UnknownEntityTypeError is returned when no profile is registered for a type.
type UnknownEntityTypeError struct {
	EntityType string
}

// Error implements the error interface
func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownEntityType, e.EntityType)
}

// Is matches ErrUnknownEntityType
func (e *UnknownEntityTypeError) Is(target error) bool {
	return target == ErrUnknownEntityType
}
