package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled bool
	// IncludeVariables puts bound query values in spans; leave off outside development
	IncludeVariables bool
	// SlowQueryThreshold marks slower statements on their span (default: 200ms)
	SlowQueryThreshold time.Duration
	DBSystem           string
}

type queryStartKey struct{}

// InstrumentGorm installs otelgorm plus slow-query and error marking callbacks
func InstrumentGorm(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerTimingCallbacks(db, cfg.SlowQueryThreshold); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("include_variables", cfg.IncludeVariables),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

func registerTimingCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { markStatement(tx, threshold) }

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("sync_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("sync_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("sync_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("sync_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("sync_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("sync_timing:before_raw", before),
		cb.Create().After("gorm:create").Register("sync_timing:after_create", after),
		cb.Query().After("gorm:query").Register("sync_timing:after_query", after),
		cb.Update().After("gorm:update").Register("sync_timing:after_update", after),
		cb.Delete().After("gorm:delete").Register("sync_timing:after_delete", after),
		cb.Row().After("gorm:row").Register("sync_timing:after_row", after),
		cb.Raw().After("gorm:raw").Register("sync_timing:after_raw", after),
	}
	return errors.Join(regs...)
}

func markStatement(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
		))
	}
}
