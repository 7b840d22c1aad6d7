package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appintegration "github.com/overviewcreative/happyplacev2-sub013/internal/application/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
)

// EntityAuthoring creates, updates and reads local content
type EntityAuthoring interface {
	Get(ctx context.Context, id uuid.UUID) (*integration.LocalEntity, error)
	List(ctx context.Context, filter integration.EntityFilter) ([]integration.LocalEntity, int64, error)
	Create(ctx context.Context, req appintegration.SaveEntityRequest) (*integration.LocalEntity, error)
	Update(ctx context.Context, id uuid.UUID, req appintegration.SaveEntityRequest) (*integration.LocalEntity, error)
}

// EntityHandler serves the entity save endpoints. Saves fire the auto-sync hook.
type EntityHandler struct {
	BaseHandler
	entities EntityAuthoring
}

// NewEntityHandler creates a new EntityHandler
func NewEntityHandler(entities EntityAuthoring) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// Get returns one entity
// GET /entities/:id
func (h *EntityHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	entity, err := h.entities.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToEntityResponse(entity))
}

// EntityListQuery filters the entity listing
type EntityListQuery struct {
	dto.PageRequest
	EntityType string `form:"entity_type" binding:"required,max=50"`
}

// List returns entities of a type
// GET /entities
func (h *EntityHandler) List(c *gin.Context) {
	var q EntityListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()

	entities, total, err := h.entities.List(c.Request.Context(), integration.EntityFilter{
		EntityType: q.EntityType,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]appintegration.EntityResponse, len(entities))
	for i := range entities {
		out[i] = appintegration.ToEntityResponse(&entities[i])
	}
	h.SuccessWithMeta(c, out, total, q.Page, q.PageSize)
}

// Create stores a new entity
// POST /entities
func (h *EntityHandler) Create(c *gin.Context) {
	var req appintegration.SaveEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entity, err := h.entities.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appintegration.ToEntityResponse(entity))
}

// Update replaces an entity's content
// PUT /entities/:id
func (h *EntityHandler) Update(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appintegration.SaveEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entity, err := h.entities.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToEntityResponse(entity))
}
