package integration

import (
	"context"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/shared"
)

// SaveHook is notified after an entity is saved
type SaveHook interface {
	OnEntitySaved(ctx context.Context, entity *integration.LocalEntity)
}

// EntityService is the content-authoring side of the local store. Every save
// fires the auto-sync hook inline, so its latency is added to the save.
type EntityService struct {
	entities integration.EntityStore
	hook     SaveHook
}

// NewEntityService creates a new EntityService. hook may be nil.
func NewEntityService(entities integration.EntityStore, hook SaveHook) *EntityService {
	return &EntityService{entities: entities, hook: hook}
}

// Get returns an entity by ID
func (s *EntityService) Get(ctx context.Context, id uuid.UUID) (*integration.LocalEntity, error) {
	return s.entities.FindByID(ctx, id)
}

// List returns entities of a type
func (s *EntityService) List(ctx context.Context, filter integration.EntityFilter) ([]integration.LocalEntity, int64, error) {
	return s.entities.List(ctx, filter)
}

// Create stores a new entity and fires the save hook
func (s *EntityService) Create(ctx context.Context, req SaveEntityRequest) (*integration.LocalEntity, error) {
	entity, err := integration.NewLocalEntity(req.EntityType)
	if err != nil {
		return nil, shared.InvalidInput(err.Error())
	}
	if err := applySaveRequest(entity, req); err != nil {
		return nil, err
	}
	if err := s.entities.Save(ctx, entity); err != nil {
		return nil, err
	}
	s.afterSave(ctx, entity)
	return entity, nil
}

// Update replaces an entity's content, keeping its correlation, and fires the save hook
func (s *EntityService) Update(ctx context.Context, id uuid.UUID, req SaveEntityRequest) (*integration.LocalEntity, error) {
	entity, err := s.entities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EntityType != "" && req.EntityType != entity.EntityType {
		return nil, shared.InvalidInput("entity type cannot be changed")
	}
	entity.Attributes = make(map[string]any)
	entity.Terms = make(map[string][]string)
	if err := applySaveRequest(entity, req); err != nil {
		return nil, err
	}
	entity.Touch()
	if err := s.entities.Save(ctx, entity); err != nil {
		return nil, err
	}
	s.afterSave(ctx, entity)
	return entity, nil
}

func (s *EntityService) afterSave(ctx context.Context, entity *integration.LocalEntity) {
	if s.hook != nil {
		s.hook.OnEntitySaved(ctx, entity)
	}
}

func applySaveRequest(entity *integration.LocalEntity, req SaveEntityRequest) error {
	entity.Title = req.Title
	entity.Body = req.Body
	if req.Status != "" {
		entity.Status = req.Status
	}
	for name, value := range req.Attributes {
		if err := entity.SetField(name, value); err != nil {
			return shared.InvalidInput(err.Error())
		}
	}
	for taxonomy, terms := range req.Terms {
		entity.SetTerms(taxonomy, terms...)
	}
	return nil
}
