package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// adminAuth guards the admin group. Without a configured token the group is disabled.
func adminAuth(token string) gin.HandlerFunc {
	secret := []byte(token)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
			return
		}
		provided := []byte(c.GetHeader(adminTokenHeader))
		if subtle.ConstantTimeCompare(provided, secret) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}
