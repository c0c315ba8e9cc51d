package respond

import (
	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/telemetry"
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Error logs the failure and aborts with the standard envelope. code is a
// short machine-readable reason placed in the error field.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Message: message,
		Error:   code,
		Details: details,
	})
}
