package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func newTestEntity(t *testing.T, entityType, title string, createdAt time.Time) *integration.LocalEntity {
	t.Helper()
	e, err := integration.NewLocalEntity(entityType)
	require.NoError(t, err)
	e.Title = title
	e.CreatedAt = createdAt
	e.UpdatedAt = createdAt
	return e
}

func TestGormEntityRepository_SaveAndFind(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormEntityRepository(db)
	ctx := context.Background()

	t.Run("round-trips attributes and terms", func(t *testing.T) {
		e := newTestEntity(t, integration.EntityTypeListing, "123 Main St", time.Now().UTC())
		e.Attributes["price"] = 450000.0
		e.Attributes["features"] = []any{"pool", "garage"}
		e.SetTerms("listing_status", "active")

		require.NoError(t, repo.Save(ctx, e))

		found, err := repo.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "123 Main St", found.Title)
		assert.Equal(t, 450000.0, found.Attributes["price"])
		assert.Equal(t, []any{"pool", "garage"}, found.Attributes["features"])
		assert.Equal(t, []string{"active"}, found.Terms["listing_status"])
	})

	t.Run("save overwrites an existing row", func(t *testing.T) {
		e := newTestEntity(t, integration.EntityTypeAgent, "Jane Doe", time.Now().UTC())
		require.NoError(t, repo.Save(ctx, e))

		e.Title = "Jane Smith"
		e.Attributes["email"] = "jane@example.com"
		require.NoError(t, repo.Save(ctx, e))

		found, err := repo.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", found.Title)
		assert.Equal(t, "jane@example.com", found.Attributes["email"])
	})

	t.Run("save assigns an ID when missing", func(t *testing.T) {
		e := &integration.LocalEntity{EntityType: integration.EntityTypeCommunity, Title: "Oak Hills"}
		require.NoError(t, repo.Save(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("save rejects missing entity type", func(t *testing.T) {
		err := repo.Save(ctx, &integration.LocalEntity{ID: uuid.New()})
		assert.ErrorIs(t, err, integration.ErrInvalidEntityType)
	})

	t.Run("missing ID returns ErrEntityNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrEntityNotFound)
	})
}

func TestGormEntityRepository_FindByIDs(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormEntityRepository(db)
	ctx := context.Background()

	a := newTestEntity(t, integration.EntityTypeAgent, "A", time.Now().UTC())
	b := newTestEntity(t, integration.EntityTypeAgent, "B", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	found, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, uuid.New(), b.ID})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormEntityRepository_Correlation(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormEntityRepository(db)
	ctx := context.Background()

	e := newTestEntity(t, integration.EntityTypeListing, "123 Main St", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, e))

	t.Run("links and finds by record ID", func(t *testing.T) {
		require.NoError(t, repo.LinkRecord(ctx, e.ID, "rec1"))

		found, err := repo.FindByExternalRecordID(ctx, integration.EntityTypeListing, "rec1")
		require.NoError(t, err)
		assert.Equal(t, e.ID, found.ID)
		assert.Equal(t, "rec1", found.ExternalRecordID)
	})

	t.Run("saving a stale copy keeps the correlation", func(t *testing.T) {
		stale := newTestEntity(t, integration.EntityTypeListing, "456 Oak Ave", time.Now().UTC())
		require.NoError(t, repo.Save(ctx, stale))
		editorCopy, err := repo.FindByID(ctx, stale.ID)
		require.NoError(t, err)

		require.NoError(t, repo.LinkRecord(ctx, stale.ID, "recStale"))

		editorCopy.Title = "456 Oak Avenue"
		require.NoError(t, repo.Save(ctx, editorCopy))

		found, err := repo.FindByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, "456 Oak Avenue", found.Title)
		assert.Equal(t, "recStale", found.ExternalRecordID)
	})

	t.Run("relinking to the same record is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.LinkRecord(ctx, e.ID, "rec1"))
	})

	t.Run("relinking to a different record conflicts", func(t *testing.T) {
		err := repo.LinkRecord(ctx, e.ID, "rec2")
		assert.ErrorIs(t, err, integration.ErrCorrelationConflict)
	})

	t.Run("linking a missing entity", func(t *testing.T) {
		err := repo.LinkRecord(ctx, uuid.New(), "rec3")
		assert.ErrorIs(t, err, integration.ErrEntityNotFound)
	})

	t.Run("record ID is scoped by entity type", func(t *testing.T) {
		_, err := repo.FindByExternalRecordID(ctx, integration.EntityTypeAgent, "rec1")
		assert.ErrorIs(t, err, integration.ErrEntityNotFound)
	})

	t.Run("empty record ID is rejected", func(t *testing.T) {
		_, err := repo.FindByExternalRecordID(ctx, integration.EntityTypeListing, "")
		assert.ErrorIs(t, err, integration.ErrInvalidRecordID)
	})

	t.Run("two entities with the same record ID are ambiguous", func(t *testing.T) {
		dup := newTestEntity(t, integration.EntityTypeListing, "123 Main St (copy)", time.Now().UTC())
		dup.ExternalRecordID = "rec1"
		require.NoError(t, repo.Save(ctx, dup))

		_, err := repo.FindByExternalRecordID(ctx, integration.EntityTypeListing, "rec1")
		assert.ErrorIs(t, err, integration.ErrCorrelationAmbiguous)
	})
}

func TestGormEntityRepository_List(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormEntityRepository(db)
	ctx := context.Background()

	base := mustTime(t, "2026-03-01T10:00:00Z")
	for i, title := range []string{"first", "second", "third"} {
		e := newTestEntity(t, integration.EntityTypeListing, title, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Save(ctx, e))
	}
	require.NoError(t, repo.Save(ctx, newTestEntity(t, integration.EntityTypeAgent, "agent", base)))

	t.Run("returns every match in creation order without page size", func(t *testing.T) {
		items, total, err := repo.List(ctx, integration.EntityFilter{EntityType: integration.EntityTypeListing})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 3)
		assert.Equal(t, "first", items[0].Title)
		assert.Equal(t, "third", items[2].Title)
	})

	t.Run("pages", func(t *testing.T) {
		items, total, err := repo.List(ctx, integration.EntityFilter{
			EntityType: integration.EntityTypeListing,
			Page:       2,
			PageSize:   2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "third", items[0].Title)
	})
}

func TestGormEntityRepository_FindByExternalRecordID_SQL(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := NewGormEntityRepository(gormDB)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "local_entities" WHERE entity_type = $1 AND external_record_id = $2 LIMIT $3`)).
		WithArgs("listing", "recABC", 2).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entity_type", "title", "body", "status", "attributes", "terms", "external_record_id", "created_at", "updated_at",
		}).AddRow(id, "listing", "123 Main St", "", "publish", `{"price":450000}`, `{}`, "recABC", now, now))

	found, err := repo.FindByExternalRecordID(context.Background(), "listing", "recABC")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, 450000.0, found.Attributes["price"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
