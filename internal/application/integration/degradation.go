package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

var timeNow = time.Now

// NopDegradationSink discards degradation events
type NopDegradationSink struct{}

// Degraded implements integration.DegradationSink
func (NopDegradationSink) Degraded(context.Context, integration.DegradationEvent) {}

// DegradationRecorder logs, counts and persists degraded conversions so
// operators can spot schema drift without the pass failing.
type DegradationRecorder struct {
	log     integration.DegradationLog
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewDegradationRecorder creates a new DegradationRecorder. log and metrics may be nil.
func NewDegradationRecorder(log integration.DegradationLog, metrics *telemetry.SyncMetrics, zl *zap.Logger) *DegradationRecorder {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &DegradationRecorder{log: log, metrics: metrics, logger: zl}
}

// Degraded implements integration.DegradationSink
func (r *DegradationRecorder) Degraded(ctx context.Context, event integration.DegradationEvent) {
	logger.WithLogger(ctx, r.logger).Warn("Degraded field conversion",
		zap.String("entity_type", event.EntityType),
		zap.String("record_id", event.RecordID),
		zap.String("entity_id", event.EntityID),
		zap.String("field", event.LocalField),
		zap.String("remote_field", event.RemoteField),
		zap.String("value_type", event.ValueType.String()),
		zap.String("direction", string(event.Direction)),
		zap.String("reason", string(event.Reason)),
	)
	r.metrics.RecordDegradation(ctx, event)
	if r.log == nil {
		return
	}
	if err := r.log.Append(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Error("Failed to persist degradation event", zap.Error(err))
	}
}

// ListDegradations returns persisted events for the admin surface
func (r *DegradationRecorder) ListDegradations(ctx context.Context, filter integration.DegradationFilter) ([]integration.DegradationEvent, int64, error) {
	if r.log == nil {
		return nil, 0, nil
	}
	return r.log.List(ctx, filter)
}
