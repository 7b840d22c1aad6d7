package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalEntity(t *testing.T) {
	e, err := NewLocalEntity(EntityTypeListing)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.IsLinked())
	assert.NotNil(t, e.Attributes)

	_, err = NewLocalEntity("")
	assert.ErrorIs(t, err, ErrInvalidEntityType)
}

func TestLocalEntity_Fields(t *testing.T) {
	e, _ := NewLocalEntity(EntityTypeListing)

	require.NoError(t, e.SetField(FieldTitle, "123 Main St"))
	require.NoError(t, e.SetField("price", 450000.0))
	require.NoError(t, e.SetField(FieldStatus, nil))

	v, ok := e.Field(FieldTitle)
	assert.True(t, ok)
	assert.Equal(t, "123 Main St", v)
	assert.Equal(t, "123 Main St", e.Title)

	v, ok = e.Field("price")
	assert.True(t, ok)
	assert.Equal(t, 450000.0, v)
	assert.Equal(t, "", e.Status)

	v, _ = e.Field(FieldID)
	assert.Equal(t, e.ID.String(), v)
	assert.ErrorIs(t, e.SetField(FieldID, "x"), ErrReadOnlyField)

	require.NoError(t, e.SetField("price", nil))
	_, ok = e.Field("price")
	assert.False(t, ok)
}

func TestLocalEntity_Link(t *testing.T) {
	e, _ := NewLocalEntity(EntityTypeAgent)

	assert.ErrorIs(t, e.Link(""), ErrInvalidRecordID)
	require.NoError(t, e.Link("rec1"))
	assert.True(t, e.IsLinked())
	assert.NoError(t, e.Link("rec1"), "relinking to the same record is a no-op")
	assert.ErrorIs(t, e.Link("rec2"), ErrCorrelationConflict)
	assert.Equal(t, "rec1", e.ExternalRecordID)
}

func TestLocalEntity_Terms(t *testing.T) {
	e, _ := NewLocalEntity(EntityTypeListing)
	e.SetTerms("listing_status", "active")
	assert.Equal(t, []string{"active"}, e.Terms["listing_status"])
	e.SetTerms("listing_status")
	_, ok := e.Terms["listing_status"]
	assert.False(t, ok)
}

func TestListRecordsRequest_Validate(t *testing.T) {
	req := ListRecordsRequest{}
	assert.ErrorIs(t, req.Validate(), ErrTableNotConfigured)

	req = ListRecordsRequest{Table: "Listings"}
	require.NoError(t, req.Validate())
	assert.Equal(t, DefaultPageSize, req.PageSize)

	req = ListRecordsRequest{Table: "Listings", PageSize: 500}
	require.NoError(t, req.Validate())
	assert.Equal(t, MaxPageSize, req.PageSize)
}

func TestRetryItem_Backoff(t *testing.T) {
	now := time.Now()
	item := NewRetryItem(uuid.New(), EntityTypeListing, "timeout", 4, time.Minute)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, RetryStatusPending, item.Status)
	assert.False(t, item.IsDue(now))

	item.RecordFailure("timeout", time.Minute, now)
	assert.Equal(t, now.Add(2*time.Minute), item.NextAttemptAt)

	item.RecordFailure("timeout", time.Minute, now)
	assert.Equal(t, now.Add(4*time.Minute), item.NextAttemptAt)
	assert.True(t, item.IsDue(now.Add(5*time.Minute)))

	item.RecordFailure("HTTP 500", time.Minute, now)
	assert.Equal(t, RetryStatusDead, item.Status)
	assert.False(t, item.IsDue(now.Add(time.Hour)))
}

func TestRetryItem_BackoffCap(t *testing.T) {
	now := time.Now()
	item := &RetryItem{Status: RetryStatusPending, Attempts: 9}
	item.RecordFailure("x", time.Minute, now)
	assert.Equal(t, now.Add(MaxRetryDelay), item.NextAttemptAt)
}

func TestRetryItem_MarkDead(t *testing.T) {
	now := time.Now()
	item := NewRetryItem(uuid.New(), EntityTypeListing, "timeout", 5, time.Minute)
	item.MarkDead("correlation lost", now.Add(time.Minute))
	assert.Equal(t, 2, item.Attempts)
	assert.Equal(t, RetryStatusDead, item.Status)
	assert.Equal(t, "correlation lost", item.LastError)
	assert.False(t, item.IsDue(now.Add(time.Hour)))
}

func TestSyncSummary_Finish(t *testing.T) {
	s := NewSyncSummary(EntityTypeListing, SyncDirectionPull)
	s.Created, s.Updated = 1, 2
	s.Finish()
	assert.Equal(t, SyncStatusSuccess, s.Status)
	assert.Equal(t, "Pulled 3 listing record(s): 1 created, 2 updated", s.Message)

	s = NewSyncSummary(EntityTypeAgent, SyncDirectionPush)
	s.Updated = 1
	s.AddFailure("e1", "", assert.AnError)
	s.Queued = 1
	s.Finish()
	assert.Equal(t, SyncStatusPartial, s.Status)
	assert.Contains(t, s.Message, "1 failed")
	assert.Contains(t, s.Message, "1 queued for retry")

	s = NewSyncSummary(EntityTypeAgent, SyncDirectionPush)
	s.AddFailure("e1", "", assert.AnError)
	s.Finish()
	assert.Equal(t, SyncStatusFailed, s.Status)
}

func TestTransportError(t *testing.T) {
	err := &TransportError{StatusCode: 422, Body: `{"error":"INVALID"}`, Err: ErrRemoteRequestFailed}
	assert.ErrorIs(t, err, ErrRemoteRequestFailed)
	assert.Contains(t, err.Error(), "HTTP 422")
	assert.False(t, err.Retryable())
	assert.True(t, IsTransportError(err))

	assert.True(t, (&TransportError{StatusCode: 503, Err: ErrRemoteUnavailable}).Retryable())
	assert.True(t, (&TransportError{Err: ErrRemoteUnavailable, Body: "dial tcp"}).Retryable())

	unknown := &UnknownEntityTypeError{EntityType: "boat"}
	assert.ErrorIs(t, unknown, ErrUnknownEntityType)
	assert.Contains(t, unknown.Error(), `"boat"`)
}

func TestSyncSummary_ErrorCap(t *testing.T) {
	s := NewSyncSummary(EntityTypeListing, SyncDirectionPull)
	for i := 0; i < MaxSummaryErrors+5; i++ {
		s.AddValidationError(ValidationError{Field: "email", Code: ValidationCodeInvalidEmail})
		s.AddFailure("", "rec", assert.AnError)
	}
	assert.Len(t, s.ValidationErrors, MaxSummaryErrors)
	assert.Len(t, s.Failures, MaxSummaryErrors)
	assert.Equal(t, MaxSummaryErrors+5, s.Invalid)
	assert.Equal(t, MaxSummaryErrors+5, s.Failed)
}
