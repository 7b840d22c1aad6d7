package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/persistence/models"
)

// GormEntityRepository implements integration.EntityStore using GORM
type GormEntityRepository struct {
	db *gorm.DB
}

var _ integration.EntityStore = (*GormEntityRepository)(nil)

// NewGormEntityRepository creates a new GormEntityRepository
func NewGormEntityRepository(db *gorm.DB) *GormEntityRepository {
	return &GormEntityRepository{db: db}
}

// FindByID finds an entity by its ID
func (r *GormEntityRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.LocalEntity, error) {
	var model models.LocalEntityModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrEntityNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the entities that exist among ids; missing IDs are skipped
func (r *GormEntityRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.LocalEntity, error) {
	if len(ids) == 0 {
		return []integration.LocalEntity{}, nil
	}
	var rows []models.LocalEntityModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntities(rows), nil
}

// FindByExternalRecordID finds the entity of entityType correlated with recordID
func (r *GormEntityRepository) FindByExternalRecordID(ctx context.Context, entityType, recordID string) (*integration.LocalEntity, error) {
	if recordID == "" {
		return nil, integration.ErrInvalidRecordID
	}
	var rows []models.LocalEntityModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND external_record_id = ?", entityType, recordID).
		Limit(2).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, integration.ErrEntityNotFound
	case 1:
		return rows[0].ToDomain(), nil
	default:
		return nil, integration.ErrCorrelationAmbiguous
	}
}

// List returns a page of entities in creation order with the total count.
// A zero PageSize returns every match.
func (r *GormEntityRepository) List(ctx context.Context, filter integration.EntityFilter) ([]integration.LocalEntity, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LocalEntityModel{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at ASC").Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.LocalEntityModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toEntities(rows), total, nil
}

// Save inserts the entity or overwrites the content columns of an existing
// row. The correlation of an existing row is only changed through LinkRecord.
func (r *GormEntityRepository) Save(ctx context.Context, entity *integration.LocalEntity) error {
	if entity.EntityType == "" {
		return integration.ErrInvalidEntityType
	}
	now := time.Now()
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	if entity.UpdatedAt.IsZero() {
		entity.UpdatedAt = now
	}

	var model models.LocalEntityModel
	if err := model.FromDomain(entity); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "body", "status", "attributes", "terms", "updated_at",
		}),
	}).Create(&model).Error
}

// LinkRecord stores the correlation of an entity. Relinking to a different
// record returns ErrCorrelationConflict.
func (r *GormEntityRepository) LinkRecord(ctx context.Context, entityID uuid.UUID, recordID string) error {
	if recordID == "" {
		return integration.ErrInvalidRecordID
	}
	result := r.db.WithContext(ctx).Model(&models.LocalEntityModel{}).
		Where("id = ? AND (external_record_id = '' OR external_record_id IS NULL OR external_record_id = ?)", entityID, recordID).
		Updates(map[string]any{
			"external_record_id": recordID,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.LocalEntityModel{}).Where("id = ?", entityID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return integration.ErrEntityNotFound
	}
	return integration.ErrCorrelationConflict
}

func toEntities(rows []models.LocalEntityModel) []integration.LocalEntity {
	out := make([]integration.LocalEntity, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
