package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubRemover struct {
	removed []string
}

func (r *stubRemover) Remove(_ context.Context, userID, id string) error {
	r.removed = append(r.removed, userID+"/"+id)
	return nil
}

func newTestRouter(t *testing.T, userID string) (*gin.Engine, *Service, *InlineDispatcher, *stubRemover) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, _, dispatcher := newTestService(t)
	remover := &stubRemover{}
	router := gin.New()
	api := router.Group("/api", func(c *gin.Context) { c.Set("userId", userID) })
	NewHandler(svc, remover).RegisterRoutes(api)
	return router, svc, dispatcher, remover
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func do(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var env envelope
	if resp.Header().Get("Content-Type") != "" && bytes.HasPrefix(resp.Body.Bytes(), []byte("{")) {
		if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, env
}

func TestUploadStatusAndDownload(t *testing.T) {
	router, _, dispatcher, _ := newTestRouter(t, "user-1")

	body, contentType := multipartBody(t, "document", "Lease.txt", "text/plain", []byte("Rent is 900 per month."),
		map[string]string{"title": "Flat lease", "category": "legal"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, env := do(t, router, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created uploadResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if created.Document.Title != "Flat lease" || created.FileURL != DownloadPath(created.Document.ID) {
		t.Fatalf("unexpected upload result %+v", created)
	}
	dispatcher.Wait()

	resp, env = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/status/"+created.Document.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status statusView
	_ = json.Unmarshal(env.Data, &status)
	if !status.IsReady || status.StatusMessage != "Document is ready for use" {
		t.Fatalf("unexpected status %+v", status)
	}

	resp, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/upload/"+created.Document.ID+"/download", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="Lease.txt"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if resp.Body.String() != "Rent is 900 per month." {
		t.Fatalf("unexpected download body %q", resp.Body.String())
	}
}

func TestUploadRejectsInvalidType(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "user-1")
	body, contentType := multipartBody(t, "document", "page.html", "text/html", []byte("<html><body>x</body></html>"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, env := do(t, router, req)
	if resp.Code != http.StatusBadRequest || env.Message != invalidTypeMessage {
		t.Fatalf("expected invalid type 400, got %d %q", resp.Code, env.Message)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, env = do(t, router, req)
	if resp.Code != http.StatusBadRequest || env.Message != "No file uploaded" {
		t.Fatalf("expected no file 400, got %d %q", resp.Code, env.Message)
	}
}

func TestListingSummaryAndOwnership(t *testing.T) {
	router, svc, _, _ := newTestRouter(t, "user-1")
	ctx := context.Background()
	seed := []Document{
		{ID: "d1", UserID: "user-1", Title: "Lease", Category: "legal", FileType: "application/pdf", UploadStatus: StatusCompleted},
		{ID: "d2", UserID: "user-1", Title: "Photo", Category: "personal", FileType: "image/png", UploadStatus: StatusCompleted},
		{ID: "d3", UserID: "user-1", Title: "Draft", Category: "legal", FileType: "text/plain", UploadStatus: StatusPending},
		{ID: "d4", UserID: "user-2", Title: "Other", Category: "legal", FileType: "text/plain", UploadStatus: StatusCompleted},
	}
	for _, d := range seed {
		if err := svc.Repo.Create(ctx, d); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	resp, env := do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/all?limit=2", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var listing struct {
		Documents  []ListingView `json:"documents"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
		Summary listingSummary `json:"summary"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Pagination.Total != 3 || listing.Pagination.TotalPages != 2 || len(listing.Documents) != 2 {
		t.Fatalf("unexpected pagination %+v with %d docs", listing.Pagination, len(listing.Documents))
	}
	if listing.Summary.TotalDocuments != 3 {
		t.Fatalf("unexpected summary %+v", listing.Summary)
	}

	resp, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/all?limit=500", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit above 100, got %d", resp.Code)
	}

	resp, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/upload/d4", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's document, got %d", resp.Code)
	}

	resp, env = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/category/secret", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var details struct {
		ValidCategories []string `json:"valid_categories"`
	}
	_ = json.Unmarshal(env.Details, &details)
	if len(details.ValidCategories) != len(Categories) {
		t.Fatalf("expected valid categories, got %s", env.Details)
	}

	resp, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/all/status/unknown", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", resp.Code)
	}
}

func TestSearchAndAnalyticsValidation(t *testing.T) {
	router, _, _, _ := newTestRouter(t, "user-1")

	resp, env := do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/search?q=a", nil))
	if resp.Code != http.StatusBadRequest || env.Message != "Search term must be at least 2 characters long" {
		t.Fatalf("expected short term 400, got %d %q", resp.Code, env.Message)
	}
	resp, env = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/analytics?start_date=2024-01-01", nil))
	if resp.Code != http.StatusBadRequest || env.Message != "Start date and end date are required" {
		t.Fatalf("expected missing date 400, got %d %q", resp.Code, env.Message)
	}
	resp, _ = do(t, router, httptest.NewRequest(http.MethodGet, "/api/documents/analytics?start_date=2024-01-01&end_date=2024-01-31", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestDeleteDelegatesToRemover(t *testing.T) {
	router, _, _, remover := newTestRouter(t, "user-1")
	resp, env := do(t, router, httptest.NewRequest(http.MethodDelete, "/api/upload/d1", nil))
	if resp.Code != http.StatusOK || env.Message != "Document deleted successfully" {
		t.Fatalf("expected 200, got %d %q", resp.Code, env.Message)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "user-1/d1" {
		t.Fatalf("unexpected removals %v", remover.removed)
	}
}
