package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/telemetry"
)

// documentParams are the route parameters that name a document.
var documentParams = []string{"documentId", "id"}

// Logging emits one structured line per request; 4xx are warnings and 5xx errors.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"document_id": documentIDFor(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"bytes_out":   c.Writer.Size(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}

func documentIDFor(c *gin.Context) string {
	for _, p := range documentParams {
		if v := c.Param(p); v != "" {
			return v
		}
	}
	return c.GetString("documentId")
}
