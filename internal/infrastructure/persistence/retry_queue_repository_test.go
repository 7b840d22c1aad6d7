package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

func newTestRetryItem(entityID uuid.UUID, next time.Time) *integration.RetryItem {
	now := next.Add(-time.Minute)
	return &integration.RetryItem{
		ID:            uuid.New(),
		EntityID:      entityID,
		EntityType:    integration.EntityTypeListing,
		Status:        integration.RetryStatusPending,
		Attempts:      1,
		MaxAttempts:   5,
		LastError:     "timeout",
		NextAttemptAt: next,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestGormRetryQueueRepository_Enqueue(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormRetryQueueRepository(db)
	ctx := context.Background()
	base := mustTime(t, "2026-03-01T10:00:00Z")

	entityID := uuid.New()
	first := newTestRetryItem(entityID, base)
	require.NoError(t, repo.Enqueue(ctx, first))

	t.Run("refreshes the pending item of the same entity", func(t *testing.T) {
		second := newTestRetryItem(entityID, base.Add(time.Hour))
		second.LastError = "503 unavailable"
		require.NoError(t, repo.Enqueue(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		items, total, err := repo.List(ctx, integration.RetryFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, "503 unavailable", items[0].LastError)
		assert.True(t, items[0].NextAttemptAt.Equal(base.Add(time.Hour)))
	})

	t.Run("dead items do not absorb new failures", func(t *testing.T) {
		other := uuid.New()
		dead := newTestRetryItem(other, base)
		dead.Status = integration.RetryStatusDead
		require.NoError(t, repo.Enqueue(ctx, dead))

		fresh := newTestRetryItem(other, base)
		require.NoError(t, repo.Enqueue(ctx, fresh))
		assert.NotEqual(t, dead.ID, fresh.ID)
	})
}

func TestGormRetryQueueRepository_DueUpdateDelete(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormRetryQueueRepository(db)
	ctx := context.Background()
	now := mustTime(t, "2026-03-01T12:00:00Z")

	overdue := newTestRetryItem(uuid.New(), now.Add(-2*time.Hour))
	due := newTestRetryItem(uuid.New(), now.Add(-time.Hour))
	later := newTestRetryItem(uuid.New(), now.Add(time.Hour))
	for _, item := range []*integration.RetryItem{later, due, overdue} {
		require.NoError(t, repo.Enqueue(ctx, item))
	}

	t.Run("returns due items oldest first", func(t *testing.T) {
		items, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, overdue.ID, items[0].ID)
		assert.Equal(t, due.ID, items[1].ID)
	})

	t.Run("respects the limit", func(t *testing.T) {
		items, err := repo.Due(ctx, now, 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("dead items are never due", func(t *testing.T) {
		overdue.Status = integration.RetryStatusDead
		overdue.Attempts = 5
		overdue.UpdatedAt = now
		require.NoError(t, repo.Update(ctx, overdue))

		items, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, due.ID, items[0].ID)

		pending, dead, err := repo.RetryQueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), pending)
		assert.Equal(t, int64(1), dead)
	})

	t.Run("filters by status", func(t *testing.T) {
		items, total, err := repo.List(ctx, integration.RetryFilter{Status: integration.RetryStatusDead})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, overdue.ID, items[0].ID)
	})

	t.Run("update of a missing item", func(t *testing.T) {
		err := repo.Update(ctx, newTestRetryItem(uuid.New(), now))
		assert.ErrorIs(t, err, integration.ErrRetryItemNotFound)
	})

	t.Run("delete removes the item", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, due.ID))
		items, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.NoError(t, repo.Delete(ctx, due.ID))
	})
}
