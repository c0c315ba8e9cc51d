package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/telemetry"
)

const maxAuditBody = 64 << 10

// AuditEntry records one state-changing admin request.
type AuditEntry struct {
	AdminID         string    `json:"admin_id"`
	Action          string    `json:"action"`
	Endpoint        string    `json:"endpoint"`
	Method          string    `json:"method"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	RequestBody     string    `json:"-"`
	ResponseStatus  int       `json:"response_status"`
	ResponseSuccess bool      `json:"response_success"`
	CreatedAt       time.Time `json:"created_at"`
}

// AuditSink persists audit entries.
type AuditSink interface {
	RecordAdminAction(ctx context.Context, entry AuditEntry) error
}

// AdminAudit records every non-GET admin request after it completes. A
// failed write is logged and never affects the response.
func AdminAudit(sink AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions || sink == nil {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()

		status := c.Writer.Status()
		entry := AuditEntry{
			AdminID:         UserIDFromContext(c),
			Action:          c.Request.Method + " " + c.Request.URL.String(),
			Endpoint:        c.Request.URL.Path,
			Method:          c.Request.Method,
			IPAddress:       c.ClientIP(),
			UserAgent:       c.Request.UserAgent(),
			RequestBody:     string(body),
			ResponseStatus:  status,
			ResponseSuccess: status < http.StatusBadRequest,
			CreatedAt:       time.Now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 3*time.Second)
		defer cancel()
		if err := sink.RecordAdminAction(ctx, entry); err != nil {
			telemetry.Error("admin.audit_failed", map[string]any{
				"admin_id":   entry.AdminID,
				"action":     entry.Action,
				"error":      err.Error(),
				"request_id": RequestIDFromContext(c),
			})
		}
	}
}
