package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/persistence/models"
)

// GormRetryQueueRepository implements integration.RetryQueue using GORM
type GormRetryQueueRepository struct {
	db *gorm.DB
}

var _ integration.RetryQueue = (*GormRetryQueueRepository)(nil)

// NewGormRetryQueueRepository creates a new GormRetryQueueRepository
func NewGormRetryQueueRepository(db *gorm.DB) *GormRetryQueueRepository {
	return &GormRetryQueueRepository{db: db}
}

// Enqueue stores a new item. When the entity already has a pending item,
// that item takes the new error and schedule and item.ID is set to it.
func (r *GormRetryQueueRepository) Enqueue(ctx context.Context, item *integration.RetryItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.SyncRetryModel
		err := tx.Where("entity_id = ? AND status = ?", item.EntityID, integration.RetryStatusPending).
			First(&existing).Error
		switch {
		case err == nil:
			item.ID = existing.ID
			item.Attempts = existing.Attempts
			item.CreatedAt = existing.CreatedAt
			return tx.Model(&existing).Updates(map[string]any{
				"last_error":      item.LastError,
				"next_attempt_at": item.NextAttemptAt,
				"updated_at":      time.Now(),
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			var model models.SyncRetryModel
			model.FromDomain(item)
			return tx.Create(&model).Error
		default:
			return err
		}
	})
}

// Due returns pending items whose next attempt is at or before now, oldest first
func (r *GormRetryQueueRepository) Due(ctx context.Context, now time.Time, limit int) ([]integration.RetryItem, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", integration.RetryStatusPending, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.SyncRetryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRetryItems(rows), nil
}

// Update persists the attempt state of an item
func (r *GormRetryQueueRepository) Update(ctx context.Context, item *integration.RetryItem) error {
	result := r.db.WithContext(ctx).Model(&models.SyncRetryModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":          item.Status,
			"attempts":        item.Attempts,
			"last_error":      item.LastError,
			"next_attempt_at": item.NextAttemptAt,
			"updated_at":      item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrRetryItemNotFound
	}
	return nil
}

// Delete removes an item; deleting a missing item is not an error
func (r *GormRetryQueueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SyncRetryModel{}, "id = ?", id).Error
}

// List returns a page of items, newest first, with the total count
func (r *GormRetryQueueRepository) List(ctx context.Context, filter integration.RetryFilter) ([]integration.RetryItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRetryModel{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	var rows []models.SyncRetryModel
	if err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toRetryItems(rows), total, nil
}

// RetryQueueDepth counts pending and dead items
func (r *GormRetryQueueRepository) RetryQueueDepth(ctx context.Context) (int64, int64, error) {
	var rows []struct {
		Status integration.RetryStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.SyncRetryModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return 0, 0, err
	}
	var pending, dead int64
	for _, row := range rows {
		switch row.Status {
		case integration.RetryStatusPending:
			pending = row.Count
		case integration.RetryStatusDead:
			dead = row.Count
		}
	}
	return pending, dead, nil
}

func toRetryItems(rows []models.SyncRetryModel) []integration.RetryItem {
	out := make([]integration.RetryItem, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// normalizePage applies the admin listing defaults: page 1, 20 per page, at most 100
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
