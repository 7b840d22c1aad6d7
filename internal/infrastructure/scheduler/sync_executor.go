package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

// SyncRunner runs reconciliation passes
type SyncRunner interface {
	Pull(ctx context.Context, entityType string) (*integration.SyncSummary, error)
	Push(ctx context.Context, entityType string) (*integration.SyncSummary, error)
	PullAll(ctx context.Context) ([]*integration.SyncSummary, error)
}

// SyncExecutor executes sync jobs
type SyncExecutor interface {
	Execute(ctx context.Context, job *SyncJob) ([]*integration.SyncSummary, error)
}

// RunnerExecutor executes jobs against a SyncRunner
type RunnerExecutor struct {
	runner SyncRunner
}

// NewRunnerExecutor creates a new RunnerExecutor
func NewRunnerExecutor(runner SyncRunner) *RunnerExecutor {
	return &RunnerExecutor{runner: runner}
}

// Execute runs the pass selected by the job kind
func (e *RunnerExecutor) Execute(ctx context.Context, job *SyncJob) (summaries []*integration.SyncSummary, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "job",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute("job.id", job.ID.String()),
		telemetry.WithAttribute("job.kind", string(job.Kind)),
		telemetry.WithAttribute("job.attempt", job.RetryCount),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	switch job.Kind {
	case SyncJobKindPull:
		s, err := e.runner.Pull(ctx, job.EntityType)
		if err != nil {
			return nil, err
		}
		return []*integration.SyncSummary{s}, nil
	case SyncJobKindPush:
		s, err := e.runner.Push(ctx, job.EntityType)
		if err != nil {
			return nil, err
		}
		return []*integration.SyncSummary{s}, nil
	case SyncJobKindPullAll:
		return e.runner.PullAll(ctx)
	default:
		return nil, ErrInvalidJobKind
	}
}
