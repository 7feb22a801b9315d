package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// swaggerCSP lets the bundled Swagger UI run its inline bootstrap script
const swaggerCSP = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; frame-ancestors 'none'"

// SwaggerAccess guards the API documentation. allowed holds IPs or CIDRs;
// when empty every client may read the docs. Entries that parse as neither
// are ignored.
func SwaggerAccess(allowed []string) gin.HandlerFunc {
	prefixes := make([]netip.Prefix, 0, len(allowed))
	for _, raw := range allowed {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}

	return func(c *gin.Context) {
		if len(allowed) > 0 && !clientAllowed(c.ClientIP(), prefixes) {
			abort(c, http.StatusForbidden, "ERR_FORBIDDEN", "Access to API documentation is restricted")
			return
		}
		c.Writer.Header().Set("Content-Security-Policy", swaggerCSP)
		c.Next()
	}
}

func clientAllowed(clientIP string, prefixes []netip.Prefix) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
