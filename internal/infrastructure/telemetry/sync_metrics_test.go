package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

func newTestSyncMetrics(t *testing.T) (*telemetry.SyncMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)
	return m, reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestSyncMetrics_RecordPass(t *testing.T) {
	m, reader := newTestSyncMetrics(t)

	summary := integration.NewSyncSummary("listing", integration.SyncDirectionPull)
	summary.Created = 2
	summary.Updated = 3
	summary.Finish()

	m.RecordPass(context.Background(), summary)
	m.RecordPassError(context.Background(), "agent", integration.SyncDirectionPush)

	totals := collectSums(t, reader)
	assert.Equal(t, int64(1), totals["sync_pass_total"])
	assert.Equal(t, int64(5), totals["sync_record_total"])
	assert.Equal(t, int64(1), totals["sync_pass_error_total"])
}

func TestSyncMetrics_DegradationAndRetry(t *testing.T) {
	m, reader := newTestSyncMetrics(t)
	ctx := context.Background()

	m.RecordDegradation(ctx, integration.DegradationEvent{
		EntityType: "listing",
		ValueType:  integration.ValueTypeNumber,
		Direction:  integration.SyncDirectionPull,
		Reason:     integration.DegradationNotANumber,
	})
	m.RecordRetry(ctx, "listing", "queued")
	m.RecordRetry(ctx, "listing", "succeeded")

	totals := collectSums(t, reader)
	assert.Equal(t, int64(1), totals["sync_degradation_total"])
	assert.Equal(t, int64(2), totals["sync_retry_total"])
}

func TestSyncMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.SyncMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordPass(ctx, integration.NewSyncSummary("listing", integration.SyncDirectionPush))
		m.RecordPassError(ctx, "listing", integration.SyncDirectionPush)
		m.RecordDegradation(ctx, integration.DegradationEvent{})
		m.RecordRetry(ctx, "listing", "dead")
		m.Start(ctx)
		m.Stop()
	})
}
