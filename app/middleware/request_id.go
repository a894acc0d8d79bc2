package middleware

import (
	"rotapool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the trace id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a trace id picked up by the ctx loggers
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}

		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
