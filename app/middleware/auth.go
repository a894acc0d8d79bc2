package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"rotapool/pkg/logger"

	"github.com/gin-gonic/gin"
)

// APIKeyContextKey gin context key holding the authenticated key
const APIKeyContextKey = "api_key"

// AuthMiddleware simple token authentication middleware. An empty apiKey disables auth.
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			logger.WarnCtx(c.Request.Context(), "unauthorized request from %s, invalid API key", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(APIKeyContextKey, token)
		c.Next()
	}
}
