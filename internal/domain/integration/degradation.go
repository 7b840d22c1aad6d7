package integration

import (
	"time"

	"github.com/google/uuid"
)

// DegradationReason classifies a degraded conversion
type DegradationReason string

const (
	DegradationNotANumber       DegradationReason = "not_a_number"
	DegradationNotASequence     DegradationReason = "not_a_sequence"
	DegradationInvalidEmail     DegradationReason = "invalid_email"
	DegradationInvalidURL       DegradationReason = "invalid_url"
	DegradationUnparsableDate   DegradationReason = "unparsable_date"
	DegradationUnmatchedOption  DegradationReason = "unmatched_option"
	DegradationUnresolvedLookup DegradationReason = "unresolved_lookup"
	DegradationUnlinkedLookup   DegradationReason = "unlinked_reference"
	DegradationUnresolvedMedia  DegradationReason = "unresolved_media"
	DegradationInvalidField     DegradationReason = "validation_failed"
)

// SyncDirection is the direction of a pass
type SyncDirection string

const (
	SyncDirectionPull SyncDirection = "pull"
	SyncDirectionPush SyncDirection = "push"
)

// DegradationEvent reports one field whose value was replaced by a neutral one.
type DegradationEvent struct {
	ID          uuid.UUID
	EntityType  string
	EntityID    string
	RecordID    string
	LocalField  string
	RemoteField string
	ValueType   ValueType
	Direction   SyncDirection
	Value       string
	Reason      DegradationReason
	OccurredAt  time.Time
}

// DegradationFilter selects persisted degradation events
type DegradationFilter struct {
	EntityType string
	Reason     DegradationReason
	Since      time.Time
	Page       int
	PageSize   int
}
