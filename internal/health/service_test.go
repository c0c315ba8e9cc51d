package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/llm"
)

func newTestService() *Service {
	svc := NewService("1.2.3", "test")
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestComprehensiveAllHealthy(t *testing.T) {
	svc := newTestService()
	svc.Database = PingFunc(func(context.Context) error { return nil })
	svc.Storage = PingFunc(func(context.Context) error { return nil })
	svc.AI = &llm.Scripted{Replies: []string{"OK"}}
	svc.UploadDir = t.TempDir()

	report := svc.Comprehensive(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("status = %s, unhealthy=%v", report.Status, report.UnhealthyServices)
	}
	if report.Checks["search"].Status != StatusDisabled || report.Checks["redis"].Status != StatusDisabled {
		t.Fatalf("unconfigured probes should be disabled: %+v", report.Checks)
	}
	if report.Summary.TotalChecks != 8 || report.Summary.UnhealthyChecks != 0 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Version != "1.2.3" || report.Environment != "test" {
		t.Fatalf("report = %+v", report)
	}
}

func TestComprehensiveDegradedWithoutCancellingSiblings(t *testing.T) {
	svc := newTestService()
	svc.Database = PingFunc(func(context.Context) error { return errors.New("connection refused") })
	storageCalled := false
	svc.Storage = PingFunc(func(context.Context) error { storageCalled = true; return nil })

	report := svc.Comprehensive(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %s", report.Status)
	}
	if !storageCalled || report.Checks["storage"].Status != StatusHealthy {
		t.Fatalf("storage probe did not run: %+v", report.Checks["storage"])
	}
	db := report.Checks["database"]
	if db.Status != StatusUnhealthy || db.Error != "connection refused" {
		t.Fatalf("database check = %+v", db)
	}
	want := map[string]bool{"database": true, "ai": true}
	for _, name := range report.UnhealthyServices {
		if !want[name] {
			t.Fatalf("unexpected unhealthy service %q", name)
		}
	}
	if len(report.UnhealthyServices) != 2 {
		t.Fatalf("unhealthy = %v", report.UnhealthyServices)
	}
}

func TestComprehensiveTimesOutSlowProbe(t *testing.T) {
	svc := newTestService()
	svc.Timeout = 20 * time.Millisecond
	svc.Database = PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	report := svc.Comprehensive(context.Background())
	if !strings.Contains(report.Checks["database"].Message, "timeout") {
		t.Fatalf("database check = %+v", report.Checks["database"])
	}
}

func TestMemoryThresholds(t *testing.T) {
	cases := []struct {
		percent float64
		want    string
	}{
		{50, StatusHealthy},
		{85, StatusWarning},
		{95, StatusCritical},
	}
	for _, tc := range cases {
		if got := memoryCheck(tc.percent, 1, 1, 1, true).Status; got != tc.want {
			t.Fatalf("percent %.0f: status = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestDiskCheck(t *testing.T) {
	dir := t.TempDir()
	if got := checkDisk(dir).Status; got != StatusHealthy {
		t.Fatalf("writable dir status = %s", got)
	}
	if got := checkDisk(filepath.Join(dir, "missing")).Status; got != StatusWarning {
		t.Fatalf("missing dir status = %s", got)
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := checkDisk(file).Status; got != StatusWarning {
		t.Fatalf("file path status = %s", got)
	}
	if got := checkDisk("").Status; got != StatusDisabled {
		t.Fatalf("empty dir status = %s", got)
	}
}

func TestComponents(t *testing.T) {
	svc := newTestService()
	svc.Database = PingFunc(func(context.Context) error { return nil })
	svc.Storage = PingFunc(func(context.Context) error { return errors.New("bucket missing") })
	svc.AI = &llm.Scripted{Replies: []string{"OK"}}

	got := svc.Components(context.Background())
	if got["database"] != StatusHealthy || got["storage"] != "error" || got["ai"] != StatusHealthy || got["overall"] != StatusDegraded {
		t.Fatalf("components = %v", got)
	}
}

func TestMetricsPerUser(t *testing.T) {
	svc := newTestService()
	svc.Counts["documents"] = func(_ context.Context, userID string) (int, error) {
		if userID != "user-1" {
			t.Fatalf("userID = %q", userID)
		}
		return 3, nil
	}
	svc.Counts["queries"] = func(context.Context, string) (int, error) { return 0, errors.New("boom") }

	anon := svc.Metrics(context.Background(), "")
	if anon.UserMetrics != nil || anon.UserID != nil {
		t.Fatalf("anonymous metrics leaked user data: %+v", anon)
	}
	m := svc.Metrics(context.Background(), "user-1")
	if m.UserMetrics["documents"].Total != 3 || m.UserMetrics["queries"].Status != "error" {
		t.Fatalf("user metrics = %+v", m.UserMetrics)
	}
}

func TestHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService()
	svc.Features["google_oauth"] = true
	router := gin.New()
	withUser := func(c *gin.Context) { c.Set("userId", "user-1"); c.Next() }
	NewHandler(svc).RegisterRoutes(router.Group("/api"), withUser)

	for _, path := range []string{"/api/health", "/api/health/status", "/api/health/metrics", "/api/health/comprehensive"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d body=%s", path, resp.Code, resp.Body.String())
		}
		var env struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil || !env.Success {
			t.Fatalf("%s: body=%s", path, resp.Body.String())
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health/status", nil))
	if !strings.Contains(resp.Body.String(), `"google_oauth":true`) || !strings.Contains(resp.Body.String(), `"ai_service":"unavailable"`) {
		t.Fatalf("status body=%s", resp.Body.String())
	}
}
