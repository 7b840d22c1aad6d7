package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicTask is a unit of background work run on a fixed interval
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// RetryProcessor drains the durable retry queue
type RetryProcessor interface {
	ProcessRetries(ctx context.Context, limit int) (int, error)
}

// DegradationPruner removes degradation events older than a cutoff
type DegradationPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobSubmitter queues asynchronous sync passes
type JobSubmitter interface {
	Submit(ctx context.Context, kind SyncJobKind, entityType string) (*SyncJob, error)
}

// RetryDrainTask pushes due retry items in batches
func RetryDrainTask(processor RetryProcessor, interval time.Duration, batchSize int, zl *zap.Logger) PeriodicTask {
	return PeriodicTask{
		Name:     "retry_drain",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := processor.ProcessRetries(ctx, batchSize)
			if n > 0 {
				zl.Info("Processed retry items", zap.Int("count", n))
			}
			return err
		},
	}
}

// DegradationPruneTask deletes degradation events older than maxAge
func DegradationPruneTask(pruner DegradationPruner, interval, maxAge time.Duration, zl *zap.Logger) PeriodicTask {
	return PeriodicTask{
		Name:     "degradation_prune",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := pruner.Prune(ctx, time.Now().Add(-maxAge))
			if n > 0 {
				zl.Info("Pruned degradation events", zap.Int64("count", n))
			}
			return err
		},
	}
}

// ScheduledPullTask submits a full pull on every tick
func ScheduledPullTask(submitter JobSubmitter, interval time.Duration) PeriodicTask {
	return PeriodicTask{
		Name:     "scheduled_pull",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := submitter.Submit(ctx, SyncJobKindPullAll, "")
			return err
		},
	}
}

// ---------------------------------------------------------------------------
// Trigger
// ---------------------------------------------------------------------------

// Trigger runs periodic tasks, each on its own ticker
type Trigger struct {
	tasks  []PeriodicTask
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger creates a trigger. Tasks with a non-positive interval are skipped.
func NewTrigger(zl *zap.Logger, tasks ...PeriodicTask) *Trigger {
	if zl == nil {
		zl = zap.NewNop()
	}
	active := make([]PeriodicTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval > 0 && t.Run != nil {
			active = append(active, t)
		}
	}
	return &Trigger{tasks: active, logger: zl}
}

// Tasks returns the names of the scheduled tasks
func (t *Trigger) Tasks() []string {
	names := make([]string, len(t.tasks))
	for i, task := range t.tasks {
		names[i] = task.Name
	}
	return names
}

// Start starts one loop per task
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	for _, task := range t.tasks {
		t.wg.Add(1)
		go t.runLoop(ctx, task)
	}

	t.logger.Info("Periodic trigger started", zap.Strings("tasks", t.Tasks()))
	return nil
}

// Stop stops all loops and waits for in-flight runs
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Periodic trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) runLoop(ctx context.Context, task PeriodicTask) {
	defer t.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil && ctx.Err() == nil {
				t.logger.Warn("Periodic task failed",
					zap.String("task", task.Name),
					zap.Error(err),
				)
			}
		}
	}
}
