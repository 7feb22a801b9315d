package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
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

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithSpanEnricher(t *testing.T) {
	sr := recordSpans(t)

	engine := gin.New()
	engine.Use(RequestID(), Tracing("ledger-test", true), Tenant(), SpanEnricher())
	engine.POST("/api/v1/metal/:pool/consume", func(c *gin.Context) {
		c.Set(ErrorCodeKey, "ERR_INSUFFICIENT_STOCK")
		c.Status(http.StatusUnprocessableEntity)
	})
	engine.GET("/api/v1/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metal/STOCK/consume", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	req.Header.Set(TenantHeaderKey, "8c0d0b1e-7c55-4a3e-9a47-5d2f1f0c2a11")
	serve(engine, req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil)
	req.Header.Set(TenantHeaderKey, "8c0d0b1e-7c55-4a3e-9a47-5d2f1f0c2a11")
	serve(engine, req)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	rejected := attrs(spans[0])
	assert.Equal(t, "req-42", rejected["request_id"].AsString())
	assert.Equal(t, "8c0d0b1e-7c55-4a3e-9a47-5d2f1f0c2a11", rejected["tenant_id"].AsString())
	assert.Equal(t, "ERR_INSUFFICIENT_STOCK", rejected["error.code"].AsString())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestTracing_Disabled(t *testing.T) {
	sr := recordSpans(t)
	engine := gin.New()
	engine.Use(Tracing("ledger-test", false), SpanEnricher())
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestProfiling(t *testing.T) {
	labels := map[string]string{}
	engine := gin.New()
	engine.Use(Profiling(true))
	engine.GET("/api/v1/metal/:pool/available", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(k, v string) bool {
			labels[k] = v
			return true
		})
		c.Status(http.StatusOK)
	})

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/metal/EXCHANGE/available", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/metal/:pool/available", labels["route"])
	assert.Equal(t, http.MethodGet, labels["method"])
	assert.Equal(t, "EXCHANGE", labels["pool"])
}

func TestProfiling_Disabled(t *testing.T) {
	called := false
	engine := gin.New()
	engine.Use(Profiling(false))
	engine.GET("/ok", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(string, string) bool {
			called = true
			return true
		})
		c.Status(http.StatusOK)
	})
	serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.False(t, called)
}
