package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

// Status given to entities created by a pull
const pulledEntityStatus = "publish"

// ---------------------------------------------------------------------------
// SyncConfig
// ---------------------------------------------------------------------------

// SyncConfig holds the tunables of the reconciliation engine
type SyncConfig struct {
	// AutoSyncEnabled gates the push triggered by an entity save
	AutoSyncEnabled bool
	// PageSize is the page size of remote list calls and local entity scans
	PageSize int
	// PushWorkers bounds concurrent record pushes within a pass
	PushWorkers int
	// RecordTimeout bounds the work spent on one record
	RecordTimeout time.Duration
	// PassLockTTL is how long a pass lock survives a crashed holder
	PassLockTTL time.Duration
	// RetryBaseDelay is the first backoff delay of a queued retry
	RetryBaseDelay time.Duration
	// RetryMaxAttempts is the number of failures before a retry item goes dead
	RetryMaxAttempts int
	// Tables overrides the remote table of an entity type
	Tables map[string]string
}

// Validate validates the configuration and fills defaults
func (c *SyncConfig) Validate() error {
	if c.PageSize <= 0 || c.PageSize > integration.MaxPageSize {
		c.PageSize = integration.DefaultPageSize
	}
	if c.PushWorkers <= 0 {
		c.PushWorkers = 4
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = 30 * time.Second
	}
	if c.PassLockTTL <= 0 {
		c.PassLockTTL = 30 * time.Minute
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Minute
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 5
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncService
// ---------------------------------------------------------------------------

// SyncService is the reconciliation engine. One instance is built at startup
// and shared by the HTTP handlers, the scheduler and the retry worker.
type SyncService struct {
	registry  *MapperRegistry
	records   integration.RecordStore
	entities  integration.EntityStore
	validator integration.FieldValidator
	retries   integration.RetryQueue
	lock      integration.PassLock
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	cfg       SyncConfig
}

// SyncServiceOption configures optional collaborators
type SyncServiceOption func(*SyncService)

// WithRetryQueue enables durable retries of failed record pushes
func WithRetryQueue(q integration.RetryQueue) SyncServiceOption {
	return func(s *SyncService) { s.retries = q }
}

// WithPassLock prevents overlapping passes across processes
func WithPassLock(l integration.PassLock) SyncServiceOption {
	return func(s *SyncService) { s.lock = l }
}

// WithSyncMetrics records pass outcomes as metrics
func WithSyncMetrics(m *telemetry.SyncMetrics) SyncServiceOption {
	return func(s *SyncService) { s.metrics = m }
}

// NewSyncService creates a new SyncService
func NewSyncService(
	registry *MapperRegistry,
	records integration.RecordStore,
	entities integration.EntityStore,
	validator integration.FieldValidator,
	cfg SyncConfig,
	zl *zap.Logger,
	opts ...SyncServiceOption,
) *SyncService {
	_ = cfg.Validate()
	if zl == nil {
		zl = zap.NewNop()
	}
	s := &SyncService{
		registry:  registry,
		records:   records,
		entities:  entities,
		validator: validator,
		logger:    zl,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntityTypes returns the synchronized entity types in pull order
func (s *SyncService) EntityTypes() []string {
	return s.registry.EntityTypes()
}

// AutoSyncEnabled reports whether saves trigger a push
func (s *SyncService) AutoSyncEnabled() bool {
	return s.cfg.AutoSyncEnabled
}

// ---------------------------------------------------------------------------
// Pull (remote -> local)
// ---------------------------------------------------------------------------

// Pull copies every remote record of the type into the local store, page by
// page. A transport failure aborts the pass; per-record problems are counted
// in the summary.
func (s *SyncService) Pull(ctx context.Context, entityType string) (*integration.SyncSummary, error) {
	mapper, table, err := s.resolve(entityType)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "pull",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, entityType),
		telemetry.WithAttribute(telemetry.SpanAttrTable, table),
	)
	defer span.End()

	release, err := s.acquire(ctx, passLockKey(entityType))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	log := s.passLogger(ctx, entityType, integration.SyncDirectionPull)
	summary := integration.NewSyncSummary(entityType, integration.SyncDirectionPull)

	offset := ""
	pages := 0
	for {
		page, err := s.records.ListRecords(ctx, integration.ListRecordsRequest{
			Table:    table,
			PageSize: s.cfg.PageSize,
			Offset:   offset,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			s.metrics.RecordPassError(ctx, entityType, integration.SyncDirectionPull)
			log.Error("Pull aborted", zap.Int("pages", pages), zap.Error(err))
			return nil, fmt.Errorf("pull %s: %w", entityType, err)
		}
		pages++

		for _, record := range page.Records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.pullRecord(ctx, mapper, record, summary, log)
		}

		if !page.HasMore() {
			break
		}
		offset = page.Offset
	}

	summary.Finish()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreated, summary.Created,
		telemetry.SpanAttrUpdated, summary.Updated,
		telemetry.SpanAttrFailed, summary.Failed,
	)
	s.metrics.RecordPass(ctx, summary)
	log.Info("Pull completed",
		zap.Int("pages", pages),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
		zap.Int("invalid", summary.Invalid),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

func (s *SyncService) pullRecord(ctx context.Context, mapper integration.EntityMapper, record integration.RemoteRecord, summary *integration.SyncSummary, log *logger.ContextLogger) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RecordTimeout)
	defer cancel()

	created, err := s.reconcileRecord(ctx, mapper, record, summary)
	if err != nil {
		log.Warn("Failed to reconcile remote record", zap.String("record_id", record.ID), zap.Error(err))
		summary.AddFailure("", record.ID, err)
		return
	}
	if created {
		summary.Created++
	} else {
		summary.Updated++
	}
}

// reconcileRecord applies one remote record to its correlated local entity,
// creating and linking the entity when none exists.
func (s *SyncService) reconcileRecord(ctx context.Context, mapper integration.EntityMapper, record integration.RemoteRecord, summary *integration.SyncSummary) (bool, error) {
	fields, err := mapper.ToLocal(ctx, record)
	if err != nil {
		return false, err
	}

	entityType := mapper.EntityType()
	entity, err := s.entities.FindByExternalRecordID(ctx, entityType, record.ID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, integration.ErrEntityNotFound):
		entity, err = integration.NewLocalEntity(entityType)
		if err != nil {
			return false, err
		}
		entity.Status = pulledEntityStatus
		if err := entity.Link(record.ID); err != nil {
			return false, err
		}
		created = true
	default:
		return false, err
	}
	if entity.Attributes == nil {
		entity.Attributes = make(map[string]any)
	}

	profile := mapper.FieldMapping()
	for _, name := range sortedKeys(fields) {
		value := fields[name]
		if s.validator != nil {
			if verr := s.validator.ValidateField(profile, name, value); verr != nil {
				verr.RecordID = record.ID
				summary.AddValidationError(*verr)
				continue
			}
		}
		if err := entity.SetField(name, value); err != nil {
			return false, err
		}
	}

	if err := mapper.SyncDeepFields(ctx, entity, record); err != nil {
		return false, err
	}
	entity.Touch()
	if err := s.entities.Save(ctx, entity); err != nil {
		return false, err
	}
	return created, nil
}

// PullAll pulls every registered type in registration order, so referenced
// types are indexed before the types that look them up. It stops at the
// first aborted pass and returns the summaries gathered so far.
func (s *SyncService) PullAll(ctx context.Context) ([]*integration.SyncSummary, error) {
	var summaries []*integration.SyncSummary
	for _, entityType := range s.registry.EntityTypes() {
		if _, _, err := s.resolve(entityType); errors.Is(err, integration.ErrTableNotConfigured) {
			continue
		}
		summary, err := s.Pull(ctx, entityType)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ---------------------------------------------------------------------------
// Push (local -> remote)
// ---------------------------------------------------------------------------

// passTally guards a summary shared by push workers
type passTally struct {
	mu      sync.Mutex
	summary *integration.SyncSummary
}

func (t *passTally) record(fn func(s *integration.SyncSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.summary)
}

// Push sends every local entity of the type, any status, to the remote store.
// Records are pushed by a bounded worker pool. A transport failure aborts the
// pass and queues the failing record for retry; a per-record timeout only
// queues the record.
func (s *SyncService) Push(ctx context.Context, entityType string) (*integration.SyncSummary, error) {
	mapper, table, err := s.resolve(entityType)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "push",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, entityType),
		telemetry.WithAttribute(telemetry.SpanAttrTable, table),
	)
	defer span.End()

	release, err := s.acquire(ctx, passLockKey(entityType))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	log := s.passLogger(ctx, entityType, integration.SyncDirectionPush)
	tally := &passTally{summary: integration.NewSyncSummary(entityType, integration.SyncDirectionPush)}

	for page := 1; ; page++ {
		batch, total, err := s.entities.List(ctx, integration.EntityFilter{
			EntityType: entityType,
			Page:       page,
			PageSize:   s.cfg.PageSize,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("push %s: list local entities: %w", entityType, err)
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.PushWorkers)
		for i := range batch {
			entity := &batch[i]
			g.Go(func() error {
				return s.pushRecord(gctx, mapper, table, entity, tally, log)
			})
		}
		if err := g.Wait(); err != nil {
			telemetry.RecordError(span, err)
			s.metrics.RecordPassError(ctx, entityType, integration.SyncDirectionPush)
			log.Error("Push aborted", zap.Int("page", page), zap.Error(err))
			return nil, fmt.Errorf("push %s: %w", entityType, err)
		}

		if int64(page*s.cfg.PageSize) >= total {
			break
		}
	}

	summary := tally.summary
	summary.Finish()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreated, summary.Created,
		telemetry.SpanAttrUpdated, summary.Updated,
		telemetry.SpanAttrFailed, summary.Failed,
	)
	s.metrics.RecordPass(ctx, summary)
	log.Info("Push completed",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
		zap.Int("queued", summary.Queued),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// pushRecord pushes one entity inside a pass. Only a transport failure is
// returned, which cancels the rest of the pass.
func (s *SyncService) pushRecord(ctx context.Context, mapper integration.EntityMapper, table string, entity *integration.LocalEntity, tally *passTally, log *logger.ContextLogger) error {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecordTimeout)
	defer cancel()

	created, err := s.pushEntity(rctx, mapper, table, entity)
	if err == nil {
		tally.record(func(sum *integration.SyncSummary) {
			if created {
				sum.Created++
			} else {
				sum.Updated++
			}
		})
		return nil
	}

	if ctx.Err() != nil {
		// the pass itself was cancelled
		return ctx.Err()
	}

	queued := false
	if errors.Is(err, context.DeadlineExceeded) || integration.IsTransportError(err) {
		queued = s.enqueueRetry(ctx, entity, err)
	}
	tally.record(func(sum *integration.SyncSummary) {
		sum.AddFailure(entity.ID.String(), entity.ExternalRecordID, err)
		if queued {
			sum.Queued++
		}
	})
	log.Warn("Failed to push entity",
		zap.String("entity_id", entity.ID.String()),
		zap.String("record_id", entity.ExternalRecordID),
		zap.Bool("queued", queued),
		zap.Error(err),
	)

	if integration.IsTransportError(err) {
		return err
	}
	return nil
}

// pushEntity sends one entity: an update when linked, otherwise a create
// followed by persisting the new correlation.
func (s *SyncService) pushEntity(ctx context.Context, mapper integration.EntityMapper, table string, entity *integration.LocalEntity) (bool, error) {
	fields, err := mapper.ToRemote(ctx, entity)
	if err != nil {
		return false, err
	}

	if entity.IsLinked() {
		if _, err := s.records.UpdateRecord(ctx, table, entity.ExternalRecordID, fields); err != nil {
			return false, err
		}
		return false, nil
	}

	record, err := s.records.CreateRecord(ctx, table, fields)
	if err != nil {
		return false, err
	}
	if err := entity.Link(record.ID); err != nil {
		return true, err
	}
	if err := s.entities.LinkRecord(context.WithoutCancel(ctx), entity.ID, record.ID); err != nil {
		logger.WithLogger(ctx, s.logger).Error("Remote record created but correlation not persisted; link it manually",
			zap.String("entity_type", entity.EntityType),
			zap.String("entity_id", entity.ID.String()),
			zap.String("table", table),
			zap.String("orphaned_record_id", record.ID),
			zap.Error(err),
		)
		return true, fmt.Errorf("%w: %s -> %s: %w", integration.ErrCorrelationNotPersisted, entity.ID, record.ID, err)
	}
	return true, nil
}

// PushEntity pushes a single entity synchronously
func (s *SyncService) PushEntity(ctx context.Context, entityID uuid.UUID) (*integration.SyncSummary, error) {
	entity, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	mapper, table, err := s.resolve(entity.EntityType)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "push_entity",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, entity.EntityType),
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, entityID.String()),
	)
	defer span.End()

	release, err := s.acquire(ctx, entityLockKey(entityID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	summary := integration.NewSyncSummary(entity.EntityType, integration.SyncDirectionPush)
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecordTimeout)
	defer cancel()

	created, err := s.pushEntity(rctx, mapper, table, entity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if created {
		summary.Created = 1
	} else {
		summary.Updated = 1
	}
	summary.Finish()
	return summary, nil
}

// OnEntitySaved is the auto-sync hook fired after an entity save. Failures
// are logged and queued for retry, never returned to the editor.
func (s *SyncService) OnEntitySaved(ctx context.Context, entity *integration.LocalEntity) {
	if !s.cfg.AutoSyncEnabled || entity == nil {
		return
	}
	if _, err := s.registry.Mapper(entity.EntityType); err != nil {
		return
	}
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("entity_type", entity.EntityType),
		zap.String("entity_id", entity.ID.String()),
	)
	summary, err := s.PushEntity(ctx, entity.ID)
	if err != nil {
		queued := false
		if !errors.Is(err, integration.ErrSyncAlreadyInProgress) && !errors.Is(err, integration.ErrCorrelationNotPersisted) {
			queued = s.enqueueRetry(ctx, entity, err)
		}
		log.Warn("Auto-sync failed", zap.Bool("queued", queued), zap.Error(err))
		return
	}
	log.Debug("Auto-sync completed", zap.String("message", summary.Message))
}

// ---------------------------------------------------------------------------
// Retry queue
// ---------------------------------------------------------------------------

func (s *SyncService) enqueueRetry(ctx context.Context, entity *integration.LocalEntity, cause error) bool {
	if s.retries == nil {
		return false
	}
	item := integration.NewRetryItem(entity.ID, entity.EntityType, cause.Error(), s.cfg.RetryMaxAttempts, s.cfg.RetryBaseDelay)
	if err := s.retries.Enqueue(context.WithoutCancel(ctx), item); err != nil {
		s.logger.Error("Failed to enqueue retry", zap.String("entity_id", entity.ID.String()), zap.Error(err))
		return false
	}
	s.metrics.RecordRetry(ctx, entity.EntityType, "queued")
	telemetry.AddEvent(trace.SpanFromContext(ctx), "retry_enqueued",
		"entity_id", entity.ID.String(),
		"next_attempt_at", item.NextAttemptAt.Format(time.RFC3339),
	)
	return true
}

// ProcessRetries re-pushes due retry items. Successful and orphaned items are
// removed; failures are rescheduled with backoff until they go dead.
func (s *SyncService) ProcessRetries(ctx context.Context, limit int) (int, error) {
	if s.retries == nil {
		return 0, nil
	}
	items, err := s.retries.Due(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		item := &items[i]
		_, pushErr := s.PushEntity(ctx, item.EntityID)
		processed++

		switch {
		case pushErr == nil:
			s.metrics.RecordRetry(ctx, item.EntityType, "succeeded")
			if err := s.retries.Delete(ctx, item.ID); err != nil {
				return processed, err
			}
		case errors.Is(pushErr, integration.ErrEntityNotFound), errors.Is(pushErr, integration.ErrUnknownEntityType):
			s.metrics.RecordRetry(ctx, item.EntityType, "dropped")
			if err := s.retries.Delete(ctx, item.ID); err != nil {
				return processed, err
			}
		case errors.Is(pushErr, integration.ErrSyncAlreadyInProgress):
			// another push holds the entity; try again on the next tick
		case errors.Is(pushErr, integration.ErrCorrelationNotPersisted):
			item.MarkDead(pushErr.Error(), time.Now())
			s.metrics.RecordRetry(ctx, item.EntityType, "dead")
			if err := s.retries.Update(ctx, item); err != nil {
				return processed, err
			}
		default:
			item.RecordFailure(pushErr.Error(), s.cfg.RetryBaseDelay, time.Now())
			outcome := "rescheduled"
			if item.Status == integration.RetryStatusDead {
				outcome = "dead"
				s.logger.Error("Retry item exhausted",
					zap.String("entity_id", item.EntityID.String()),
					zap.Int("attempts", item.Attempts),
					zap.Error(pushErr),
				)
			}
			s.metrics.RecordRetry(ctx, item.EntityType, outcome)
			if err := s.retries.Update(ctx, item); err != nil {
				return processed, err
			}
		}
	}
	return processed, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// resolve returns the mapper and remote table of a type. Unknown types are
// rejected here, before any I/O.
func (s *SyncService) resolve(entityType string) (integration.EntityMapper, string, error) {
	mapper, err := s.registry.Mapper(entityType)
	if err != nil {
		return nil, "", err
	}
	table := s.cfg.Tables[entityType]
	if table == "" {
		table = mapper.FieldMapping().TableName()
	}
	if table == "" {
		return nil, "", fmt.Errorf("%w: %s", integration.ErrTableNotConfigured, entityType)
	}
	return mapper, table, nil
}

func (s *SyncService) acquire(ctx context.Context, key string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	ok, err := s.lock.Acquire(ctx, key, s.cfg.PassLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrSyncAlreadyInProgress, key)
	}
	return func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("Failed to release sync lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *SyncService) passLogger(ctx context.Context, entityType string, dir integration.SyncDirection) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger).With(
		zap.String("entity_type", entityType),
		zap.String("direction", string(dir)),
		zap.String("pass_id", uuid.NewString()),
	)
}

func passLockKey(entityType string) string {
	return "sync:pass:" + entityType
}

func entityLockKey(id uuid.UUID) string {
	return "sync:entity:" + id.String()
}
