package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
)

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// MaxConcurrentJobs is the number of passes that may run at once
	MaxConcurrentJobs int
	// QueueSize bounds the number of jobs waiting for a worker
	QueueSize int
	// JobTimeout bounds a whole pass
	JobTimeout time.Duration
	// RetryAttempts is how often a failed job is resubmitted
	RetryAttempts int
	// RetryDelay is the base delay of the job retry backoff
	RetryDelay time.Duration
	// HistoryLimit caps the finished jobs kept in memory
	HistoryLimit int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		MaxConcurrentJobs: 2,
		QueueSize:         100,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Minute,
		HistoryLimit:      100,
	}
}

// Validate validates the configuration and fills optional defaults
func (c *SyncSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler runs pull and push passes on a bounded worker pool and keeps
// an in-memory record of submitted jobs.
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	queue     chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	timers    map[uuid.UUID]*time.Timer

	jobsMu   sync.RWMutex
	jobs     map[uuid.UUID]*SyncJob
	finished []uuid.UUID // newest first
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, zl *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if zl == nil {
		zl = zap.NewNop()
	}

	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   zl,
		queue:    make(chan *SyncJob, config.QueueSize),
		timers:   make(map[uuid.UUID]*time.Timer),
		jobs:     make(map[uuid.UUID]*SyncJob),
		finished: make([]uuid.UUID, 0, config.HistoryLimit),
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running passes and waits for the workers to exit
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Submit creates a job for the given pass and queues it. The actor stored
// in ctx is recorded as the submitter.
func (s *SyncScheduler) Submit(ctx context.Context, kind SyncJobKind, entityType string) (*SyncJob, error) {
	job, err := NewSyncJob(kind, entityType, s.config.RetryAttempts)
	if err != nil {
		return nil, err
	}
	job.SubmittedBy = logger.GetActor(ctx)

	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return s.GetJob(job.ID)
}

// SubmitJob queues a job for execution
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.queue <- job:
	default:
		return ErrJobQueueFull
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	s.logger.Debug("Sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("entity_type", job.EntityType),
	)
	return nil
}

// GetJob returns a snapshot of a job
func (s *SyncScheduler) GetJob(id uuid.UUID) (*SyncJob, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.snapshot(), nil
}

// GetJobHistory returns snapshots of recently finished jobs, newest first
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	if limit <= 0 || limit > len(s.finished) {
		limit = len(s.finished)
	}

	result := make([]*SyncJob, 0, limit)
	for _, id := range s.finished[:limit] {
		result = append(result, s.jobs[id].snapshot())
	}
	return result
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	s.jobsMu.Lock()
	job.Start()
	s.jobsMu.Unlock()

	jobCtx := logger.WithJobID(ctx, job.ID.String())
	if job.SubmittedBy != "" {
		jobCtx = logger.WithActor(jobCtx, job.SubmittedBy)
	}
	jobCtx, cancel := context.WithTimeout(jobCtx, s.config.JobTimeout)
	defer cancel()

	log := logger.WithLogger(jobCtx, s.logger).With(
		zap.Int("worker_id", workerID),
		zap.String("kind", string(job.Kind)),
		zap.String("entity_type", job.EntityType),
	)
	log.Info("Processing sync job")

	summaries, err := s.executor.Execute(jobCtx, job)

	s.jobsMu.Lock()
	if err != nil {
		job.Fail(err.Error())
	} else {
		job.Complete(summaries)
	}
	s.jobsMu.Unlock()

	if err == nil {
		log.Info("Sync job completed",
			zap.String("status", string(job.Status)),
			zap.Int("created", job.Created),
			zap.Int("updated", job.Updated),
			zap.Int("failed", job.Failed),
		)
		s.finish(job)
		return
	}

	log.Error("Sync job failed", zap.Error(err))
	if retryable(ctx, err) && job.ShouldRetry() {
		s.jobsMu.Lock()
		delay := job.ScheduleRetry(s.config.RetryDelay)
		s.jobsMu.Unlock()
		if s.scheduleRetry(job, delay) {
			log.Info("Sync job scheduled for retry",
				zap.Int("retry_count", job.RetryCount),
				zap.Duration("delay", delay),
			)
			return
		}
		s.jobsMu.Lock()
		job.Fail(err.Error())
		s.jobsMu.Unlock()
	}
	s.finish(job)
}

// retryable reports whether resubmitting a failed job can succeed
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, integration.ErrUnknownEntityType) &&
		!errors.Is(err, integration.ErrTableNotConfigured)
}

func (s *SyncScheduler) scheduleRetry(job *SyncJob, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return false
	}

	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, job.ID)
		if !s.isRunning {
			return
		}
		select {
		case s.queue <- job:
		default:
			s.logger.Warn("Failed to re-queue sync job for retry",
				zap.String("job_id", job.ID.String()),
			)
			s.jobsMu.Lock()
			job.Fail(ErrJobQueueFull.Error())
			s.jobsMu.Unlock()
			s.finish(job)
		}
	})
	return true
}

// finish moves a job into the bounded history and forgets the oldest one
func (s *SyncScheduler) finish(job *SyncJob) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	s.finished = append([]uuid.UUID{job.ID}, s.finished...)
	if len(s.finished) > s.config.HistoryLimit {
		for _, id := range s.finished[s.config.HistoryLimit:] {
			delete(s.jobs, id)
		}
		s.finished = s.finished[:s.config.HistoryLimit]
	}
}
