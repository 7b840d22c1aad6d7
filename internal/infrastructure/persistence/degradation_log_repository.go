package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/persistence/models"
)

// GormDegradationLog implements integration.DegradationLog using GORM
type GormDegradationLog struct {
	db *gorm.DB
}

var _ integration.DegradationLog = (*GormDegradationLog)(nil)

// NewGormDegradationLog creates a new GormDegradationLog
func NewGormDegradationLog(db *gorm.DB) *GormDegradationLog {
	return &GormDegradationLog{db: db}
}

// Append stores an event, assigning an ID and timestamp when missing
func (l *GormDegradationLog) Append(ctx context.Context, event integration.DegradationEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	var model models.DegradationEventModel
	model.FromDomain(event)
	return l.db.WithContext(ctx).Create(&model).Error
}

// List returns a page of events, newest first, with the total count
func (l *GormDegradationLog) List(ctx context.Context, filter integration.DegradationFilter) ([]integration.DegradationEvent, int64, error) {
	query := l.db.WithContext(ctx).Model(&models.DegradationEventModel{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if !filter.Since.IsZero() {
		query = query.Where("occurred_at >= ?", filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	var rows []models.DegradationEventModel
	if err := query.Order("occurred_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]integration.DegradationEvent, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Prune deletes events older than cutoff and returns how many were removed
func (l *GormDegradationLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result := l.db.WithContext(ctx).Where("occurred_at < ?", cutoff).Delete(&models.DegradationEventModel{})
	return result.RowsAffected, result.Error
}
