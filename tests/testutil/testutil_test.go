package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	db := NewMockDB(t)
	require.NotNil(t, db.DB)
	db.ExpectationsWereMet(t)
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
	assert.Equal(t, NewTestUUID("test-shop"), TestTenantID())
}

func TestDecimalAndDayHelpers(t *testing.T) {
	assert.Equal(t, "97.5", D("97.50").String())
	assert.Equal(t, 5, Day(5).Day())
	assert.Equal(t, time.UTC, Day(1).Location())
}

func TestAssertEventually(t *testing.T) {
	calls := 0
	AssertEventually(t, func() bool {
		calls++
		return calls >= 3
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestPerformRequestAndEnvelope(t *testing.T) {
	engine := gin.New()
	engine.POST("/ok", func(c *gin.Context) {
		assert.Equal(t, "shop-1", c.GetHeader("X-Tenant-ID"))
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"available": "57"}})
	})
	engine.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   gin.H{"code": "INSUFFICIENT_STOCK", "message": "not enough"},
		})
	})

	w := PerformRequest(t, engine, http.MethodPost, "/ok", map[string]string{"k": "v"}, TenantHeader("shop-1"))
	var out struct {
		Available string `json:"available"`
	}
	AssertSuccess(t, w, http.StatusCreated, &out)
	assert.Equal(t, "57", out.Available)

	w = PerformRequest(t, engine, http.MethodGet, "/fail", nil, nil)
	AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK")
}

func TestLedgerEnv(t *testing.T) {
	env := NewLedgerEnv(t)
	require.NotNil(t, env.Scope)
	assert.True(t, env.Serializer.IsRegistered("MetalAcquired"))
	assert.Empty(t, env.OutboxEventTypes(t))
}
