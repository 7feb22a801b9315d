package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jewelryerp/backend/internal/infrastructure/telemetry"
)

// Profiling labels CPU samples with the route, the method and, for metal
// routes, the pool, so pyroscope can split ledger load by endpoint.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		labels := profilingLabels(c, route)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context, route string) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelRoute:  route,
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	if pool := c.Param("pool"); pool != "" {
		labels[telemetry.ProfilingLabelPool] = pool
	}
	return labels
}
