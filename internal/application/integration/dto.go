package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Sync DTOs
// ---------------------------------------------------------------------------

// SyncSummaryResponse is the operator-facing result of a pass
type SyncSummaryResponse struct {
	Message          string                        `json:"message"`
	EntityType       string                        `json:"entity_type"`
	Direction        integration.SyncDirection     `json:"direction"`
	Status           integration.SyncStatus        `json:"status"`
	Created          int                           `json:"created"`
	Updated          int                           `json:"updated"`
	Failed           int                           `json:"failed"`
	Queued           int                           `json:"queued,omitempty"`
	Invalid          int                           `json:"invalid,omitempty"`
	Failures         []integration.SyncFailure     `json:"failures,omitempty"`
	ValidationErrors []integration.ValidationError `json:"validation_errors,omitempty"`
	DurationMS       int64                         `json:"duration_ms"`
}

// DiagnosticResponse is the result of a type-drift check
type DiagnosticResponse struct {
	Message       string   `json:"message"`
	Warnings      []string `json:"warnings"`
	Table         string   `json:"table"`
	RecordID      string   `json:"record_id,omitempty"`
	CheckedFields int      `json:"checked_fields"`
}

// MessageResponse carries a human-readable message only
type MessageResponse struct {
	Message string `json:"message"`
}

// ToSyncSummaryResponse converts a summary
func ToSyncSummaryResponse(s *integration.SyncSummary) SyncSummaryResponse {
	return SyncSummaryResponse{
		Message:          s.Message,
		EntityType:       s.EntityType,
		Direction:        s.Direction,
		Status:           s.Status,
		Created:          s.Created,
		Updated:          s.Updated,
		Failed:           s.Failed,
		Queued:           s.Queued,
		Invalid:          s.Invalid,
		Failures:         s.Failures,
		ValidationErrors: s.ValidationErrors,
		DurationMS:       s.Duration().Milliseconds(),
	}
}

// ToSyncSummaryResponses converts summaries
func ToSyncSummaryResponses(summaries []*integration.SyncSummary) []SyncSummaryResponse {
	out := make([]SyncSummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = ToSyncSummaryResponse(s)
	}
	return out
}

// ToDiagnosticResponse converts a diagnostic report
func ToDiagnosticResponse(r *integration.DiagnosticReport) DiagnosticResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return DiagnosticResponse{
		Message:       r.Message,
		Warnings:      warnings,
		Table:         r.Table,
		RecordID:      r.RecordID,
		CheckedFields: r.CheckedFields,
	}
}

// ---------------------------------------------------------------------------
// Entity DTOs
// ---------------------------------------------------------------------------

// EntityResponse represents a local entity in API responses
type EntityResponse struct {
	ID               uuid.UUID           `json:"id"`
	EntityType       string              `json:"entity_type"`
	Title            string              `json:"title"`
	Body             string              `json:"body,omitempty"`
	Status           string              `json:"status"`
	Attributes       map[string]any      `json:"attributes"`
	Terms            map[string][]string `json:"terms,omitempty"`
	ExternalRecordID string              `json:"external_record_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// SaveEntityRequest creates or replaces an entity's content
type SaveEntityRequest struct {
	EntityType string              `json:"entity_type" binding:"required,max=50"`
	Title      string              `json:"title" binding:"max=500"`
	Body       string              `json:"body"`
	Status     string              `json:"status" binding:"omitempty,oneof=draft publish pending private"`
	Attributes map[string]any      `json:"attributes"`
	Terms      map[string][]string `json:"terms"`
}

// ToEntityResponse converts a local entity
func ToEntityResponse(e *integration.LocalEntity) EntityResponse {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return EntityResponse{
		ID:               e.ID,
		EntityType:       e.EntityType,
		Title:            e.Title,
		Body:             e.Body,
		Status:           e.Status,
		Attributes:       attrs,
		Terms:            e.Terms,
		ExternalRecordID: e.ExternalRecordID,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Retry and degradation DTOs
// ---------------------------------------------------------------------------

// RetryItemResponse represents a queued retry
type RetryItemResponse struct {
	ID            uuid.UUID               `json:"id"`
	EntityID      uuid.UUID               `json:"entity_id"`
	EntityType    string                  `json:"entity_type"`
	Status        integration.RetryStatus `json:"status"`
	Attempts      int                     `json:"attempts"`
	MaxAttempts   int                     `json:"max_attempts"`
	LastError     string                  `json:"last_error,omitempty"`
	NextAttemptAt time.Time               `json:"next_attempt_at"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ToRetryItemResponses converts retry items
func ToRetryItemResponses(items []integration.RetryItem) []RetryItemResponse {
	out := make([]RetryItemResponse, len(items))
	for i, it := range items {
		out[i] = RetryItemResponse{
			ID:            it.ID,
			EntityID:      it.EntityID,
			EntityType:    it.EntityType,
			Status:        it.Status,
			Attempts:      it.Attempts,
			MaxAttempts:   it.MaxAttempts,
			LastError:     it.LastError,
			NextAttemptAt: it.NextAttemptAt,
			CreatedAt:     it.CreatedAt,
		}
	}
	return out
}

// DegradationResponse represents a persisted degradation event
type DegradationResponse struct {
	ID          uuid.UUID                     `json:"id"`
	EntityType  string                        `json:"entity_type"`
	EntityID    string                        `json:"entity_id,omitempty"`
	RecordID    string                        `json:"record_id,omitempty"`
	LocalField  string                        `json:"local_field,omitempty"`
	RemoteField string                        `json:"remote_field,omitempty"`
	ValueType   integration.ValueType         `json:"value_type"`
	Direction   integration.SyncDirection     `json:"direction"`
	Value       string                        `json:"value,omitempty"`
	Reason      integration.DegradationReason `json:"reason"`
	OccurredAt  time.Time                     `json:"occurred_at"`
}

// ToDegradationResponses converts degradation events
func ToDegradationResponses(events []integration.DegradationEvent) []DegradationResponse {
	out := make([]DegradationResponse, len(events))
	for i, e := range events {
		out[i] = DegradationResponse{
			ID:          e.ID,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			RecordID:    e.RecordID,
			LocalField:  e.LocalField,
			RemoteField: e.RemoteField,
			ValueType:   e.ValueType,
			Direction:   e.Direction,
			Value:       e.Value,
			Reason:      e.Reason,
			OccurredAt:  e.OccurredAt,
		}
	}
	return out
}
