package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"rotapool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"
)

const maxLoggedBody = 1000

// Logger access log. Runs after RequestID so lines carry the trace id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var bodyStr string
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			bodyStr = getRequestBody(c)
		}

		c.Next()

		// Skip logging for 404 requests
		statusCode := c.Writer.Status()
		if statusCode == http.StatusNotFound && c.FullPath() == "" {
			return
		}

		ctx := c.Request.Context()
		latency := time.Since(startTime)
		if bodyStr != "" {
			logger.InfoCtx(ctx, "[GIN] %3d | %13v | %15s | %s | %s | body: %s",
				statusCode, latency, c.ClientIP(), c.Request.Method, c.Request.RequestURI, bodyStr)
			return
		}
		logger.InfoCtx(ctx, "[GIN] %3d | %13v | %15s | %s | %s",
			statusCode, latency, c.ClientIP(), c.Request.Method, c.Request.RequestURI)
	}
}

// getRequestBody reads the body and puts it back for the handler
func getRequestBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return CompressBody(string(bodyBytes))
}

// CompressBody strips JSON whitespace and truncates long bodies
func CompressBody(body string) string {
	if len(body) == 0 {
		return ""
	}

	compressed := pretty.Ugly([]byte(body))
	if len(compressed) > maxLoggedBody {
		return string(compressed[:maxLoggedBody]) + "..."
	}
	return string(compressed)
}
