package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/bcsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
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

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.run")
	require.NotNil(t, span)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.run", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestStartSpan_WithOptions(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "erp.request",
		telemetry.WithAttribute(telemetry.SpanAttrFamily, "items"),
		telemetry.WithAttribute(telemetry.SpanAttrPage, 3),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "items", attrs[telemetry.SpanAttrFamily].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrPage].AsInt64())
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "TokenManager", "GetAccessToken")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "TokenManager.GetAccessToken", spans[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.run")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreated, 2,
		telemetry.SpanAttrUpdated, int64(5),
		"ratio", 0.5,
		"partial", true,
		42, "skipped",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrCreated].AsInt64())
	assert.Equal(t, int64(5), attrs[telemetry.SpanAttrUpdated].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["partial"].AsBool())
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "oauth.refresh")
	telemetry.RecordError(span, errors.New("refresh failed"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "refresh failed", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordError_NilIsNoop(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "oauth.refresh")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("ignored"))
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.run")
	telemetry.SetOK(span)
	span.End()

	assert.Equal(t, codes.Ok, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "phone_auth.wait")
	telemetry.AddEvent(span, "poll", telemetry.SpanAttrAttempts, 7)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "poll", events[0].Name)
	assert.Equal(t, int64(7), attrMap(events[0].Attributes)[telemetry.SpanAttrAttempts].AsInt64())
}

func TestSpansNest(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "sync.run_all")
	_, child := telemetry.StartSpan(ctx, "sync.run")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
