package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// IsTerminal reports whether the job will not run again
func (s SyncJobStatus) IsTerminal() bool {
	return s == SyncJobStatusSuccess || s == SyncJobStatusPartial || s == SyncJobStatusFailed
}

// SyncJobKind selects the pass a job runs
type SyncJobKind string

const (
	SyncJobKindPull    SyncJobKind = "pull"
	SyncJobKindPush    SyncJobKind = "push"
	SyncJobKindPullAll SyncJobKind = "pull_all"
)

// Validate checks the kind and whether it needs an entity type
func (k SyncJobKind) Validate(entityType string) error {
	switch k {
	case SyncJobKindPull, SyncJobKindPush:
		if entityType == "" {
			return ErrInvalidJobKind
		}
		return nil
	case SyncJobKindPullAll:
		return nil
	default:
		return ErrInvalidJobKind
	}
}

// SyncJob is an asynchronous pull or push pass
type SyncJob struct {
	ID          uuid.UUID
	Kind        SyncJobKind
	EntityType  string
	Status      SyncJobStatus
	Error       string
	SubmittedBy string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	Created   int
	Updated   int
	Failed    int
	Summaries []*integration.SyncSummary
}

// NewSyncJob creates a pending job
func NewSyncJob(kind SyncJobKind, entityType string, maxRetries int) (*SyncJob, error) {
	if err := kind.Validate(entityType); err != nil {
		return nil, err
	}
	return &SyncJob{
		ID:         uuid.New(),
		Kind:       kind,
		EntityType: entityType,
		Status:     SyncJobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: maxRetries,
	}, nil
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the pass summaries and derives the final status
func (j *SyncJob) Complete(summaries []*integration.SyncSummary) {
	now := time.Now()
	j.CompletedAt = &now
	j.Summaries = summaries
	j.Created, j.Updated, j.Failed = 0, 0, 0
	for _, s := range summaries {
		j.Created += s.Created
		j.Updated += s.Updated
		j.Failed += s.Failed
	}

	succeeded := j.Created + j.Updated
	switch {
	case j.Failed == 0:
		j.Status = SyncJobStatusSuccess
	case succeeded > 0:
		j.Status = SyncJobStatusPartial
	default:
		j.Status = SyncJobStatusFailed
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == SyncJobStatusFailed && j.Error != "" && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff and
// returns the delay
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = SyncJobStatusPending
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > integration.MaxRetryDelay || delay <= 0 {
		delay = integration.MaxRetryDelay
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.CompletedAt = nil
	j.Error = ""
	return delay
}

// snapshot returns a copy safe to hand outside the scheduler lock
func (j *SyncJob) snapshot() *SyncJob {
	cp := *j
	cp.Summaries = append([]*integration.SyncSummary(nil), j.Summaries...)
	return &cp
}
