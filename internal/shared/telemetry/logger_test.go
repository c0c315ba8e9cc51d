package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	Info("document.status", map[string]any{"document_id": "doc-1", "status": "completed"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "document.status" {
		t.Fatalf("expected msg document.status, got %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected info level, got %v", entry["level"])
	}
	if entry["document_id"] != "doc-1" {
		t.Fatalf("expected document_id field, got %v", entry["document_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts field")
	}
}

func TestLevelFromEnv(t *testing.T) {
	if got := levelFromEnv("debug"); got != logrus.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := levelFromEnv("nonsense"); got != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}
