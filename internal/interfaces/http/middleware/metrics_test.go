package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type rejections struct {
	mu    sync.Mutex
	codes []string
}

func (r *rejections) RecordRejection(_ context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func requestTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "http_server_request_total" {
				for _, p := range sum.DataPoints {
					total += p.Value
				}
			}
		}
	}
	return total
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	rec := &rejections{}
	mw, err := HTTPMetrics(provider.Meter("test"), rec)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(mw)
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/short", func(c *gin.Context) {
		c.Set(ErrorCodeKey, "ERR_INSUFFICIENT_STOCK")
		c.Status(http.StatusUnprocessableEntity)
	})
	engine.POST("/broken", func(c *gin.Context) {
		c.Set(ErrorCodeKey, "ERR_INTERNAL")
		c.Status(http.StatusInternalServerError)
	})

	serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(engine, httptest.NewRequest(http.MethodPost, "/short", nil))
	serve(engine, httptest.NewRequest(http.MethodPost, "/broken", nil))

	assert.Equal(t, int64(3), requestTotal(t, reader))
	assert.Equal(t, []string{"ERR_INSUFFICIENT_STOCK"}, rec.codes)
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	_, err := HTTPMetrics(nil, nil)
	assert.Error(t, err)
}
