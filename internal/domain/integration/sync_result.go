package integration

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of a pass
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncSummary
// ---------------------------------------------------------------------------

// SyncFailure is one record that could not be reconciled
type SyncFailure struct {
	EntityID string `json:"entity_id,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error"`
}

// SyncSummary holds the counters of one pull or push pass.
type SyncSummary struct {
	EntityType string
	Direction  SyncDirection
	Status     SyncStatus
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	// Queued counts records handed to the retry queue
	Queued int
	// Invalid counts field values rejected by validation, including those not kept
	Invalid          int
	Failures         []SyncFailure
	ValidationErrors []ValidationError
	Message          string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// MaxSummaryErrors bounds the failures and validation errors kept on a summary
const MaxSummaryErrors = 100

// NewSyncSummary starts a summary for a pass
func NewSyncSummary(entityType string, direction SyncDirection) *SyncSummary {
	return &SyncSummary{
		EntityType: entityType,
		Direction:  direction,
		StartedAt:  time.Now(),
	}
}

// AddFailure counts a record that could not be reconciled
func (s *SyncSummary) AddFailure(entityID, recordID string, err error) {
	s.Failed++
	if len(s.Failures) < MaxSummaryErrors {
		s.Failures = append(s.Failures, SyncFailure{EntityID: entityID, RecordID: recordID, Error: err.Error()})
	}
}

// AddValidationError records a field value dropped by validation
func (s *SyncSummary) AddValidationError(verr ValidationError) {
	s.Invalid++
	if len(s.ValidationErrors) < MaxSummaryErrors {
		s.ValidationErrors = append(s.ValidationErrors, verr)
	}
}

// Total returns the number of records the pass touched
func (s *SyncSummary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// Duration returns the pass duration
func (s *SyncSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Finish sets the status and message
func (s *SyncSummary) Finish() {
	s.FinishedAt = time.Now()
	switch {
	case s.Failed == 0:
		s.Status = SyncStatusSuccess
	case s.Created+s.Updated > 0:
		s.Status = SyncStatusPartial
	default:
		s.Status = SyncStatusFailed
	}
	verb := "Pulled"
	if s.Direction == SyncDirectionPush {
		verb = "Pushed"
	}
	s.Message = fmt.Sprintf("%s %d %s record(s): %d created, %d updated", verb, s.Created+s.Updated, s.EntityType, s.Created, s.Updated)
	if s.Failed > 0 {
		s.Message += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Invalid > 0 {
		s.Message += fmt.Sprintf(", %d invalid field value(s) dropped", s.Invalid)
	}
	if s.Queued > 0 {
		s.Message += fmt.Sprintf(", %d queued for retry", s.Queued)
	}
}

// ---------------------------------------------------------------------------
// DiagnosticReport
// ---------------------------------------------------------------------------

// DiagnosticReport is the result of a remote type-drift check
type DiagnosticReport struct {
	EntityType    string
	Table         string
	RecordID      string
	CheckedFields int
	Warnings      []string
	Message       string
}
