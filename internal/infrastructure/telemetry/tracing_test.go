package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// setupTestTracer installs a recording tracer provider for the test
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := StartSpan(context.Background(), "sync.target",
		SpanAttrJob, "customers",
		SpanAttrTarget, "42",
		SpanAttrAttempts, 2,
		"ignored-without-value",
	)
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(span, SpanAttrOutcome, "failed")
	RecordError(span, errors.New("remote fault"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.target", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "remote fault", spans[0].Status().Description)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "customers", attrs[SpanAttrJob].AsString())
	assert.Equal(t, "42", attrs[SpanAttrTarget].AsString())
	assert.Equal(t, int64(2), attrs[SpanAttrAttempts].AsInt64())
	assert.Equal(t, "failed", attrs[SpanAttrOutcome].AsString())
	assert.Len(t, attrs, 4)
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, SpanAttrJob, "x")
		RecordError(nil, errors.New("x"))
	})
	assert.Empty(t, TraceID(context.Background()))
}

func TestToAttribute(t *testing.T) {
	assert.Equal(t, attribute.StringValue("a"), toAttribute("k", "a").Value)
	assert.Equal(t, attribute.Int64Value(3), toAttribute("k", 3).Value)
	assert.Equal(t, attribute.Float64Value(0.5), toAttribute("k", 0.5).Value)
	assert.Equal(t, attribute.BoolValue(true), toAttribute("k", true).Value)
	assert.Equal(t, attribute.StringSliceValue([]string{"a", "b"}), toAttribute("k", []string{"a", "b"}).Value)
	assert.Equal(t, attribute.StringValue("[1 2]"), toAttribute("k", []int{1, 2}).Value)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{ServiceName: "magesync"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	tp.EnableSpanProfiles()
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NotNil(t, tp.Tracer(TracerName))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Config{ServiceName: "magesync"})
	require.NoError(t, err)

	attrs := attrMap(res.Attributes())
	assert.Equal(t, "magesync", attrs["service.name"].AsString())
	assert.Equal(t, "dev", attrs["service.version"].AsString())
}
