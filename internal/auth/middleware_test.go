package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/internal", RequireSecret(secret), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		status int
	}{
		{"matching secret", "s3cret", "s3cret", http.StatusNoContent},
		{"wrong secret", "s3cret", "guess", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unconfigured secret", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/internal", nil)
			if tt.header != "" {
				req.Header.Set(SecretHeader, tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.secret).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
