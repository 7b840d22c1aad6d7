package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// RecordStore Port
// ---------------------------------------------------------------------------

// RecordStore is the port to the external tabular record store.
// Implementations return *TransportError for unreachable or non-2xx responses.
type RecordStore interface {
	// ListRecords fetches one page of a table
	ListRecords(ctx context.Context, req ListRecordsRequest) (*RecordPage, error)
	// CreateRecord creates a row and returns it with its new ID
	CreateRecord(ctx context.Context, table string, fields map[string]any) (*RemoteRecord, error)
	// UpdateRecord applies a partial update to an existing row
	UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) (*RemoteRecord, error)
}

// ---------------------------------------------------------------------------
// EntityStore Port
// ---------------------------------------------------------------------------

// EntityStore is the port to the local content store.
type EntityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LocalEntity, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]LocalEntity, error)
	// FindByExternalRecordID returns the entity correlated with a remote record,
	// ErrEntityNotFound when none is, ErrCorrelationAmbiguous when several are
	FindByExternalRecordID(ctx context.Context, entityType, recordID string) (*LocalEntity, error)
	// List returns entities of any status, with the total count
	List(ctx context.Context, filter EntityFilter) ([]LocalEntity, int64, error)
	// Save creates or updates the entity
	Save(ctx context.Context, entity *LocalEntity) error
	// LinkRecord persists only the correlation of an entity
	LinkRecord(ctx context.Context, entityID uuid.UUID, recordID string) error
}

// ---------------------------------------------------------------------------
// RetryQueue Port
// ---------------------------------------------------------------------------

// RetryQueue is the durable queue of single-entity pushes to retry.
type RetryQueue interface {
	// Enqueue stores the item; an existing pending item for the same entity is refreshed instead
	Enqueue(ctx context.Context, item *RetryItem) error
	// Due returns pending items whose next attempt is at or before now
	Due(ctx context.Context, now time.Time, limit int) ([]RetryItem, error)
	Update(ctx context.Context, item *RetryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter RetryFilter) ([]RetryItem, int64, error)
}

// ---------------------------------------------------------------------------
// Degradation Ports
// ---------------------------------------------------------------------------

// DegradationSink receives conversions that replaced a value with a neutral one.
// Implementations must not block the sync pass.
type DegradationSink interface {
	Degraded(ctx context.Context, event DegradationEvent)
}

// DegradationLog persists degradation events for operator review
type DegradationLog interface {
	Append(ctx context.Context, event DegradationEvent) error
	List(ctx context.Context, filter DegradationFilter) ([]DegradationEvent, int64, error)
}

// ---------------------------------------------------------------------------
// Supporting Ports
// ---------------------------------------------------------------------------

// MediaURLResolver turns a local storage key into a URL the remote store can fetch
type MediaURLResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// PassLock prevents overlapping passes for the same key
type PassLock interface {
	// Acquire returns false when the key is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// FieldValidator checks locally destined values against a profile's rules.
// Fields without a rule always pass.
type FieldValidator interface {
	ValidateField(profile *EntityTypeProfile, field string, value any) *ValidationError
}
