package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "sync", "pull",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, "listing"),
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.pull", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "listing", attrs[telemetry.SpanAttrEntityType])
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreated, 3,
		telemetry.SpanAttrTable, "Listings",
		42, "skipped because the key is not a string",
	)
	span.End()

	attrs := map[string]string{}
	for _, kv := range sr.Ended()[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "3", attrs[telemetry.SpanAttrCreated])
	assert.Equal(t, "Listings", attrs[telemetry.SpanAttrTable])
	assert.Len(t, attrs, 2)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	t.Run("marks span as error", func(t *testing.T) {
		_, span := telemetry.StartSpan(context.Background(), "failing")
		telemetry.RecordError(span, errors.New("boom"))
		span.End()

		ended := sr.Ended()
		last := ended[len(ended)-1]
		assert.Equal(t, codes.Error, last.Status().Code)
		assert.Equal(t, "boom", last.Status().Description)
	})

	t.Run("nil error is ignored", func(t *testing.T) {
		_, span := telemetry.StartSpan(context.Background(), "ok")
		telemetry.RecordError(span, nil)
		span.End()

		ended := sr.Ended()
		assert.Equal(t, codes.Unset, ended[len(ended)-1].Status().Code)
	})
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
