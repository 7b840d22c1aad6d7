package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// RetryDepthProvider reports the retry queue depth for periodic collection
type RetryDepthProvider interface {
	RetryQueueDepth(ctx context.Context) (pending int64, dead int64, err error)
}

// SyncMetricsConfig holds configuration for sync metrics
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	DepthProvider   RetryDepthProvider
}

// SyncMetrics counts passes, record outcomes, degradations and retries.
// All methods are safe on a nil receiver.
type SyncMetrics struct {
	logger *zap.Logger

	passTotal        *Counter
	passErrorTotal   *Counter
	recordTotal      *Counter
	degradationTotal *Counter
	retryTotal       *Counter
	passDuration     *Histogram
	retryDepth       *Gauge

	interval time.Duration
	provider RetryDepthProvider
	stopChan chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// NewSyncMetrics creates the sync instruments
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = time.Minute
	}

	m := &SyncMetrics{
		logger:   logger,
		interval: interval,
		provider: cfg.DepthProvider,
		stopChan: make(chan struct{}),
	}

	var err error
	if m.passTotal, err = NewCounter(cfg.Meter, "sync_pass_total", "Completed sync passes", "{pass}"); err != nil {
		return nil, err
	}
	if m.passErrorTotal, err = NewCounter(cfg.Meter, "sync_pass_error_total", "Sync passes aborted by a transport failure", "{pass}"); err != nil {
		return nil, err
	}
	if m.recordTotal, err = NewCounter(cfg.Meter, "sync_record_total", "Records reconciled by outcome", "{record}"); err != nil {
		return nil, err
	}
	if m.degradationTotal, err = NewCounter(cfg.Meter, "sync_degradation_total", "Field values degraded during conversion", "{event}"); err != nil {
		return nil, err
	}
	if m.retryTotal, err = NewCounter(cfg.Meter, "sync_retry_total", "Retry queue transitions by outcome", "{item}"); err != nil {
		return nil, err
	}
	if m.passDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "sync_pass_duration_seconds",
		Description: "Duration of a whole-table sync pass",
		Unit:        "s",
		Boundaries:  PassDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.retryDepth, err = NewGauge(cfg.Meter, "sync_retry_queue_depth", "Items in the retry queue by status", "{item}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPass records a finished pass summary
func (m *SyncMetrics) RecordPass(ctx context.Context, s *integration.SyncSummary) {
	if m == nil || s == nil {
		return
	}
	entity := AttrEntityType.String(s.EntityType)
	direction := AttrDirection.String(string(s.Direction))

	m.passTotal.Inc(ctx, entity, direction, AttrStatus.String(string(s.Status)))
	m.passDuration.RecordDuration(ctx, s.Duration(), entity, direction)
	m.recordTotal.Add(ctx, int64(s.Created), entity, direction, AttrOutcome.String("created"))
	m.recordTotal.Add(ctx, int64(s.Updated), entity, direction, AttrOutcome.String("updated"))
	m.recordTotal.Add(ctx, int64(s.Failed), entity, direction, AttrOutcome.String("failed"))
	m.recordTotal.Add(ctx, int64(s.Skipped), entity, direction, AttrOutcome.String("skipped"))
}

// RecordPassError records a pass aborted before completion
func (m *SyncMetrics) RecordPassError(ctx context.Context, entityType string, direction integration.SyncDirection) {
	if m == nil {
		return
	}
	m.passErrorTotal.Inc(ctx, AttrEntityType.String(entityType), AttrDirection.String(string(direction)))
}

// RecordDegradation records one degraded conversion
func (m *SyncMetrics) RecordDegradation(ctx context.Context, event integration.DegradationEvent) {
	if m == nil {
		return
	}
	m.degradationTotal.Inc(ctx,
		AttrEntityType.String(event.EntityType),
		AttrDirection.String(string(event.Direction)),
		AttrReason.String(string(event.Reason)),
		AttrValueType.String(event.ValueType.String()),
	)
}

// RecordRetry records a retry queue transition (queued, succeeded, rescheduled, dead, dropped)
func (m *SyncMetrics) RecordRetry(ctx context.Context, entityType, outcome string) {
	if m == nil {
		return
	}
	m.retryTotal.Inc(ctx, AttrEntityType.String(entityType), AttrOutcome.String(outcome))
}

// Start begins periodic retry depth collection. It is a no-op without a provider.
func (m *SyncMetrics) Start(ctx context.Context) {
	if m == nil || m.provider == nil {
		return
	}
	m.runOnce.Do(func() {
		go m.collectLoop(ctx)
	})
}

// Stop ends periodic collection
func (m *SyncMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *SyncMetrics) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *SyncMetrics) collect(ctx context.Context) {
	pending, dead, err := m.provider.RetryQueueDepth(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect retry queue depth", zap.Error(err))
		return
	}
	m.retryDepth.Record(ctx, pending, AttrStatus.String(string(integration.RetryStatusPending)))
	m.retryDepth.Record(ctx, dead, AttrStatus.String(string(integration.RetryStatusDead)))
}
