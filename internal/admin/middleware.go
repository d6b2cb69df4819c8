package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// An empty allowlist means deny all — the admin surface is fail-closed,
// unlike the teacher's dev-mode "empty means allow all" backoffice gate.
func ipWhitelistMiddleware(allowedIPs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			respondError(c, http.StatusForbidden, "ERR_IP_NOT_WHITELISTED", "caller IP is not whitelisted for admin access")
			return
		}
		c.Next()
	}
}

// apiKeyMiddleware requires the X-Admin-Api-Key header to match the
// configured admin API key, compared in constant time.
func apiKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Api-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			respondError(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "unauthorized")
			return
		}
		c.Next()
	}
}
