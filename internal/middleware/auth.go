package middleware

import (
	"crypto/subtle"
	"net/http"

	"notihub/internal/common"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// Auth returns middleware that validates the X-API-Key header against the
// configured keys. Service-to-service authentication only; there is no user
// identity or tenancy model here.
func Auth(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			common.Error(c, http.StatusUnauthorized, "missing X-API-Key header")
			c.Abort()
			return
		}

		for _, valid := range validKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
				c.Next()
				return
			}
		}

		common.Error(c, http.StatusUnauthorized, "invalid API key")
		c.Abort()
	}
}
