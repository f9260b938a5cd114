// Package auth guards the internal API with a shared secret.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the shared secret on internal API requests.
const SecretHeader = "X-Internal-Secret"

// RequireSecret is a middleware that rejects requests without the shared secret.
func RequireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
