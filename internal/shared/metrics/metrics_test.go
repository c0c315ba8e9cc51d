package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	writeHistogram(&buf, "x", "help", h.Snapshot())
	out := buf.String()

	for _, want := range []string{
		`x_bucket{le="10"} 1`,
		`x_bucket{le="100"} 2`,
		`x_bucket{le="+Inf"} 3`,
		`x_sum 555`,
		`x_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHandlerRendersCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncUploads()
	IncAICalls()

	r := gin.New()
	r.GET("/metrics", Handler())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# TYPE documents_uploaded_total counter") {
		t.Fatalf("missing upload counter:\n%s", body)
	}
	if !strings.Contains(body, "ai_call_duration_ms_count") {
		t.Fatalf("missing ai histogram:\n%s", body)
	}
}

func TestSnapshotReflectsCounters(t *testing.T) {
	before := Snapshot()
	IncQueries()
	AddDocumentsDeleted(2)
	AddDocumentsDeleted(-1)
	after := Snapshot()
	if after.Queries != before.Queries+1 {
		t.Fatalf("queries = %d, want %d", after.Queries, before.Queries+1)
	}
	if after.DocumentsDeleted != before.DocumentsDeleted+2 {
		t.Fatalf("deleted = %d, want %d", after.DocumentsDeleted, before.DocumentsDeleted+2)
	}
}
