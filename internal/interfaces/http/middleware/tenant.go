package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/infrastructure/logger"
)

const (
	// TenantIDKey holds the tenant id string in the gin context
	TenantIDKey = "tenant_id"
	// TenantUUIDKey holds the parsed tenant id
	TenantUUIDKey   = "tenant_uuid"
	TenantHeaderKey = "X-Tenant-ID"
)

// Tenant requires an X-Tenant-ID UUID header on every path outside
// skipPaths and binds it to the request logger.
func Tenant(skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range skipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" {
			abort(c, http.StatusBadRequest, "ERR_TENANT_REQUIRED", "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abort(c, http.StatusBadRequest, "ERR_TENANT_INVALID", "X-Tenant-ID must be a UUID")
			return
		}

		c.Set(TenantIDKey, tenantID.String())
		c.Set(TenantUUIDKey, tenantID)
		ctx, _ := logger.WithTenantID(c.Request.Context(), logger.FromContext(c.Request.Context()), tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantID returns the tenant bound by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := c.Value(TenantUUIDKey).(uuid.UUID)
	return id, ok
}
