package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetTenantID(context.Background()))
}

func TestWithTenantID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-7")
	ctx, _ = WithTenantID(ctx, FromContext(ctx), "tenant-a")

	assert.Equal(t, "req-7", GetRequestID(ctx))
	assert.Equal(t, "tenant-a", GetTenantID(ctx))

	L(ctx).Info("payment applied")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "tenant-a", fields["tenant_id"])
	assert.Len(t, logs.All()[0].Context, 2)
}

func TestContextLogger_AddsTraceAndForeignFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, _ := WithTenantID(spanContext(t), zap.NewNop(), "tenant-b")

	WithLogger(ctx, zap.New(core)).Warn("stock short")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "tenant-b", fields["tenant_id"])
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithTraceContext(context.Background(), base))
}
