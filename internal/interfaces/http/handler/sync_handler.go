package handler

import (
	"context"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appintegration "github.com/overviewcreative/happyplacev2-sub013/internal/application/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/scheduler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
)

// SyncRunner is the reconciliation engine as seen by the admin API
type SyncRunner interface {
	EntityTypes() []string
	AutoSyncEnabled() bool
	Pull(ctx context.Context, entityType string) (*integration.SyncSummary, error)
	PullAll(ctx context.Context) ([]*integration.SyncSummary, error)
	Push(ctx context.Context, entityType string) (*integration.SyncSummary, error)
	PushEntity(ctx context.Context, entityID uuid.UUID) (*integration.SyncSummary, error)
	Diagnose(ctx context.Context, entityType string) (*integration.DiagnosticReport, error)
	TestConnection(ctx context.Context, entityType string) (string, error)
}

// JobQueue accepts asynchronous sync jobs
type JobQueue interface {
	Submit(ctx context.Context, kind scheduler.SyncJobKind, entityType string) (*scheduler.SyncJob, error)
	GetJob(id uuid.UUID) (*scheduler.SyncJob, error)
	GetJobHistory(limit int) []*scheduler.SyncJob
}

// RetryLister lists queued retries
type RetryLister interface {
	List(ctx context.Context, filter integration.RetryFilter) ([]integration.RetryItem, int64, error)
}

// DegradationLister lists persisted degradation events
type DegradationLister interface {
	ListDegradations(ctx context.Context, filter integration.DegradationFilter) ([]integration.DegradationEvent, int64, error)
}

// SyncHandler serves the admin sync surface
type SyncHandler struct {
	BaseHandler
	runner       SyncRunner
	jobs         JobQueue
	retries      RetryLister
	degradations DegradationLister
}

// NewSyncHandler creates a new SyncHandler. jobs, retries and degradations may be nil,
// which disables the matching endpoints.
func NewSyncHandler(runner SyncRunner, jobs JobQueue, retries RetryLister, degradations DegradationLister) *SyncHandler {
	return &SyncHandler{runner: runner, jobs: jobs, retries: retries, degradations: degradations}
}

// StatusResponse describes the sync configuration
type StatusResponse struct {
	EntityTypes     []string `json:"entity_types"`
	AutoSyncEnabled bool     `json:"auto_sync_enabled"`
	JobsEnabled     bool     `json:"jobs_enabled"`
}

// Status returns the synchronized entity types
// GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	h.Success(c, StatusResponse{
		EntityTypes:     h.runner.EntityTypes(),
		AutoSyncEnabled: h.runner.AutoSyncEnabled(),
		JobsEnabled:     h.jobs != nil,
	})
}

// Pull runs a synchronous pull pass for one type
// POST /sync/:entityType/pull
func (h *SyncHandler) Pull(c *gin.Context) {
	summary, err := h.runner.Pull(c.Request.Context(), c.Param("entityType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToSyncSummaryResponse(summary))
}

// PullAll pulls every type in dependency order
// POST /sync/pull-all
func (h *SyncHandler) PullAll(c *gin.Context) {
	summaries, err := h.runner.PullAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToSyncSummaryResponses(summaries))
}

// Push runs a synchronous push pass for one type
// POST /sync/:entityType/push
func (h *SyncHandler) Push(c *gin.Context) {
	summary, err := h.runner.Push(c.Request.Context(), c.Param("entityType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToSyncSummaryResponse(summary))
}

// PushEntity pushes a single entity
// POST /sync/entities/:id/push
func (h *SyncHandler) PushEntity(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.runner.PushEntity(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToSyncSummaryResponse(summary))
}

// TestConnection proves the remote table of a type is reachable
// POST /sync/:entityType/test-connection
func (h *SyncHandler) TestConnection(c *gin.Context) {
	message, err := h.runner.TestConnection(c.Request.Context(), c.Param("entityType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.MessageResponse{Message: message})
}

// ValidateFieldTypes reports drift between the remote schema and the field mapping
// POST /sync/:entityType/validate-field-types
func (h *SyncHandler) ValidateFieldTypes(c *gin.Context) {
	report, err := h.runner.Diagnose(c.Request.Context(), c.Param("entityType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToDiagnosticResponse(report))
}

// ---------------------------------------------------------------------------
// Async jobs
// ---------------------------------------------------------------------------

// SubmitJobRequest queues a pass
type SubmitJobRequest struct {
	Kind       scheduler.SyncJobKind `json:"kind" binding:"required,oneof=pull push pull_all"`
	EntityType string                `json:"entity_type" binding:"max=50"`
}

// JobResponse represents an async sync job
type JobResponse struct {
	ID          uuid.UUID                            `json:"id"`
	Kind        scheduler.SyncJobKind                `json:"kind"`
	EntityType  string                               `json:"entity_type,omitempty"`
	Status      scheduler.SyncJobStatus              `json:"status"`
	Error       string                               `json:"error,omitempty"`
	SubmittedBy string                               `json:"submitted_by,omitempty"`
	RetryCount  int                                  `json:"retry_count"`
	Created     int                                  `json:"created"`
	Updated     int                                  `json:"updated"`
	Failed      int                                  `json:"failed"`
	Summaries   []appintegration.SyncSummaryResponse `json:"summaries,omitempty"`
	CreatedAt   time.Time                            `json:"created_at"`
	StartedAt   *time.Time                           `json:"started_at,omitempty"`
	CompletedAt *time.Time                           `json:"completed_at,omitempty"`
	NextRetryAt *time.Time                           `json:"next_retry_at,omitempty"`
}

func toJobResponse(j *scheduler.SyncJob) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Kind:        j.Kind,
		EntityType:  j.EntityType,
		Status:      j.Status,
		Error:       j.Error,
		SubmittedBy: j.SubmittedBy,
		RetryCount:  j.RetryCount,
		Created:     j.Created,
		Updated:     j.Updated,
		Failed:      j.Failed,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		NextRetryAt: j.NextRetryAt,
	}
	if len(j.Summaries) > 0 {
		resp.Summaries = appintegration.ToSyncSummaryResponses(j.Summaries)
	}
	return resp
}

// SubmitJob queues a pull, push or pull_all pass
// POST /sync/jobs
func (h *SyncHandler) SubmitJob(c *gin.Context) {
	if h.jobs == nil {
		h.HandleError(c, scheduler.ErrSchedulerNotRunning)
		return
	}
	var req SubmitJobRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Kind != scheduler.SyncJobKindPullAll && !slices.Contains(h.runner.EntityTypes(), req.EntityType) {
		h.ErrorWithCode(c, dto.ErrCodeUnknownEntityType, "Unknown entity type: "+req.EntityType)
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), req.Kind, req.EntityType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toJobResponse(job))
}

// GetJob returns one job
// GET /sync/jobs/:id
func (h *SyncHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		h.HandleError(c, scheduler.ErrJobNotFound)
		return
	}
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJobResponse(job))
}

// JobHistoryQuery bounds the job history listing
type JobHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// JobHistory lists recent jobs, newest first
// GET /sync/jobs
func (h *SyncHandler) JobHistory(c *gin.Context) {
	var q JobHistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	out := []JobResponse{}
	if h.jobs != nil {
		for _, j := range h.jobs.GetJobHistory(q.Limit) {
			out = append(out, toJobResponse(j))
		}
	}
	h.Success(c, out)
}

// ---------------------------------------------------------------------------
// Retry queue and degradation log
// ---------------------------------------------------------------------------

// RetryListQuery filters the retry queue listing
type RetryListQuery struct {
	dto.PageRequest
	EntityType string `form:"entity_type" binding:"max=50"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING DEAD"`
}

// ListRetries lists queued retries
// GET /sync/retries
func (h *SyncHandler) ListRetries(c *gin.Context) {
	var q RetryListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()
	if h.retries == nil {
		h.SuccessWithMeta(c, []appintegration.RetryItemResponse{}, 0, q.Page, q.PageSize)
		return
	}

	items, total, err := h.retries.List(c.Request.Context(), integration.RetryFilter{
		EntityType: q.EntityType,
		Status:     integration.RetryStatus(q.Status),
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToRetryItemResponses(items), total, q.Page, q.PageSize)
}

// DegradationListQuery filters the degradation listing
type DegradationListQuery struct {
	dto.PageRequest
	EntityType string    `form:"entity_type" binding:"max=50"`
	Reason     string    `form:"reason" binding:"max=50"`
	Since      time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ListDegradations lists degraded conversions, newest first
// GET /sync/degradations
func (h *SyncHandler) ListDegradations(c *gin.Context) {
	var q DegradationListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Normalize()
	if h.degradations == nil {
		h.SuccessWithMeta(c, []appintegration.DegradationResponse{}, 0, q.Page, q.PageSize)
		return
	}

	events, total, err := h.degradations.ListDegradations(c.Request.Context(), integration.DegradationFilter{
		EntityType: q.EntityType,
		Reason:     integration.DegradationReason(q.Reason),
		Since:      q.Since,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToDegradationResponses(events), total, q.Page, q.PageSize)
}
