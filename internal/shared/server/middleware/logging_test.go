package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := telemetry.Logger()
	prev := logger.Out
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(prev) })

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	}, Logging())
	router.GET("/api/documents/status/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/status/doc-1", nil)
	req.Header.Set("X-Request-Id", "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	for _, key := range []string{"request_id", "user_id", "document_id", "duration_ms", "status", "route", "bytes_out"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["msg"] != "request.complete" {
		t.Fatalf("unexpected msg %v", payload["msg"])
	}
	if payload["request_id"] != "req-42" || payload["user_id"] != "user-1" || payload["document_id"] != "doc-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["route"] != "/api/documents/status/:id" {
		t.Fatalf("unexpected route %v", payload["route"])
	}
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := telemetry.Logger()
	prev := logger.Out
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(prev) })

	router := gin.New()
	router.Use(Logging())
	router.POST("/api/query/document/:documentId", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/query/document/doc-7", nil))

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if payload["level"] != "warning" || payload["document_id"] != "doc-7" {
		t.Fatalf("unexpected payload %v", payload)
	}
}
