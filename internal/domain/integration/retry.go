package integration

import (
	"time"

	"github.com/google/uuid"
)

// MaxRetryDelay caps the exponential backoff of retry items
const MaxRetryDelay = 30 * time.Minute

// RetryStatus is the state of a retry item
type RetryStatus string

const (
	RetryStatusPending RetryStatus = "PENDING"
	RetryStatusDead    RetryStatus = "DEAD"
)

// RetryItem is a single-entity push waiting to be retried.
type RetryItem struct {
	ID            uuid.UUID
	EntityID      uuid.UUID
	EntityType    string
	Status        RetryStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRetryItem creates a pending item for a push that already failed once
func NewRetryItem(entityID uuid.UUID, entityType, cause string, maxAttempts int, baseDelay time.Duration) *RetryItem {
	now := time.Now()
	item := &RetryItem{
		ID:          uuid.New(),
		EntityID:    entityID,
		EntityType:  entityType,
		Status:      RetryStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
	}
	item.RecordFailure(cause, baseDelay, now)
	return item
}

// RecordFailure counts a failed attempt and schedules the next one with
// exponential backoff (baseDelay * 2^(attempts-1), capped at MaxRetryDelay).
// The item goes dead once MaxAttempts is reached.
func (r *RetryItem) RecordFailure(cause string, baseDelay time.Duration, now time.Time) {
	r.Attempts++
	r.LastError = cause
	r.UpdatedAt = now
	if r.MaxAttempts > 0 && r.Attempts >= r.MaxAttempts {
		r.Status = RetryStatusDead
		return
	}
	delay := baseDelay * time.Duration(1<<(r.Attempts-1))
	if delay > MaxRetryDelay || delay <= 0 {
		delay = MaxRetryDelay
	}
	r.Status = RetryStatusPending
	r.NextAttemptAt = now.Add(delay)
}

// MarkDead stops retrying the item
func (r *RetryItem) MarkDead(cause string, now time.Time) {
	r.Attempts++
	r.LastError = cause
	r.UpdatedAt = now
	r.Status = RetryStatusDead
}

// IsDue reports whether the item should be attempted at now
func (r *RetryItem) IsDue(now time.Time) bool {
	return r.Status == RetryStatusPending && !r.NextAttemptAt.After(now)
}

// RetryFilter selects retry items for listing
type RetryFilter struct {
	EntityType string
	Status     RetryStatus
	Page       int
	PageSize   int
}
