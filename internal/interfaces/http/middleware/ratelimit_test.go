package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func fixedClock(rl *RateLimiter, start time.Time) *time.Time {
	now := start
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()
	now := fixedClock(rl, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	for want := 2; want >= 0; want-- {
		ok, remaining := rl.Allow("a")
		assert.True(t, ok)
		assert.Equal(t, want, remaining)
	}
	ok, remaining := rl.Allow("a")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// other clients have their own bucket
	ok, _ = rl.Allow("b")
	assert.True(t, ok)

	// one token refills every window/limit
	*now = now.Add(20 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.False(t, ok)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Stop()
	fixedClock(rl, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	engine := gin.New()
	engine.Use(RateLimit(rl))
	engine.GET("/api/v1/metal/STOCK/accounts", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/metal/STOCK/accounts", nil)
		req.Header.Set(TenantHeaderKey, tenant)
		return serve(engine, req)
	}

	assert.Equal(t, http.StatusOK, call("t1").Code)
	w := call("t1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = call("t1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")

	assert.Equal(t, http.StatusOK, call("t2").Code)
}
