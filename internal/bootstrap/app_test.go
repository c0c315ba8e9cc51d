package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newApp(t *testing.T, ai *llm.Scripted) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		JWTExpiresIn:    time.Hour,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      4,
		MaxUploadBytes:  1 << 20,
		CORSAllowOrigin: []string{"http://localhost:3000"},
	}
	app, err := Build(context.Background(), cfg, WithAI(ai))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func call(t *testing.T, app *App, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(t, app, req)
}

func serve(t *testing.T, app *App, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL.Path, err, rec.Body.String())
	}
	return rec.Code, env
}

func register(t *testing.T, app *App, email string) string {
	t.Helper()
	code, env := call(t, app, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  "secret1",
		"username":  strings.Split(email, "@")[0],
		"full_name": "Test User",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, env.Message)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register data: %v %s", err, env.Data)
	}
	return data.Token
}

func upload(t *testing.T, app *App, token, name, category, content string) string {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if category != "" {
		_ = w.WriteField("category", category)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	code, env := serve(t, app, req)
	if code != http.StatusCreated {
		t.Fatalf("upload: %d %s", code, env.Message)
	}
	var data struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Document.ID == "" {
		t.Fatalf("upload data: %v %s", err, env.Data)
	}
	return data.Document.ID
}

func waitReady(t *testing.T, app *App, token, id string) {
	t.Helper()
	if d, ok := app.Dispatcher.(*documents.InlineDispatcher); ok {
		d.Wait()
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		code, env := call(t, app, http.MethodGet, "/api/documents/status/"+id, token, nil)
		if code != http.StatusOK {
			t.Fatalf("status: %d %s", code, env.Message)
		}
		var st struct {
			Status  string `json:"status"`
			IsReady bool   `json:"is_ready"`
		}
		_ = json.Unmarshal(env.Data, &st)
		if st.IsReady {
			return
		}
		if st.Status == documents.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("document %s not ready: %+v", id, st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestUploadProcessAndQuery(t *testing.T) {
	ai := &llm.Scripted{Replies: []string{
		"```json\n" + `{"answer":"The rent is 1,200 EUR per month.","confidence":0.92,"key_points":["Monthly rent 1,200 EUR"],"summary":"Rent terms"}` + "\n```",
	}}
	app := newApp(t, ai)
	token := register(t, app, "tenant@example.com")

	code, _ := call(t, app, http.MethodGet, "/api/documents/all", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous listing = %d", code)
	}

	id := upload(t, app, token, "Lease.txt", "legal", "The tenant pays a rent of 1,200 EUR per month. This lease ends on 31 December 2027.")
	waitReady(t, app, token, id)

	code, env := call(t, app, http.MethodPost, "/api/query/document/"+id, token, map[string]any{
		"question": "What is the rent?",
		"context":  "legal",
	})
	if code != http.StatusOK || env.Message != "Query processed successfully" {
		t.Fatalf("query: %d %s", code, env.Message)
	}
	var ans struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		QueryID    *string `json:"query_id"`
	}
	if err := json.Unmarshal(env.Data, &ans); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if ans.Answer != "The rent is 1,200 EUR per month." || ans.Confidence != 0.92 || ans.QueryID == nil {
		t.Fatalf("answer = %+v", ans)
	}
	if len(ai.Prompts) != 1 || !bytes.Contains([]byte(ai.Prompts[0]), []byte("1,200 EUR per month")) {
		t.Fatalf("prompt did not carry the document text")
	}

	code, env = call(t, app, http.MethodGet, "/api/query/document/"+id+"/history", token, nil)
	if code != http.StatusOK {
		t.Fatalf("history: %d %s", code, env.Message)
	}
	var hist struct {
		Queries []struct {
			ID       string `json:"id"`
			Question string `json:"question"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(env.Data, &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Queries) != 1 || hist.Queries[0].Question != "What is the rent?" || hist.Queries[0].ID != *ans.QueryID {
		t.Fatalf("history = %+v", hist.Queries)
	}

	other := register(t, app, "stranger@example.com")
	code, _ = call(t, app, http.MethodGet, "/api/documents/status/"+id, other, nil)
	if code != http.StatusNotFound {
		t.Fatalf("foreign document status = %d", code)
	}
}

func TestCategoryDeleteRequiresConfirmation(t *testing.T) {
	app := newApp(t, &llm.Scripted{Replies: []string{`{"answer":"Mutual obligations.","confidence":0.8}`}})
	token := register(t, app, "owner@example.com")
	first := upload(t, app, token, "nda.txt", "legal", "Mutual non-disclosure agreement.")
	second := upload(t, app, token, "offer.txt", "legal", "Offer letter.")
	keep := upload(t, app, token, "diary.txt", "personal", "Dear diary.")
	for _, id := range []string{first, second, keep} {
		waitReady(t, app, token, id)
	}

	code, env := call(t, app, http.MethodPost, "/api/query/document/"+first, token, map[string]any{"question": "Who is bound?"})
	if code != http.StatusOK {
		t.Fatalf("query: %d %s", code, env.Message)
	}

	code, env = call(t, app, http.MethodDelete, "/api/delete/category/legal", token, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete: %d %s", code, env.Message)
	}

	code, env = call(t, app, http.MethodDelete, "/api/delete/category/legal", token, map[string]any{"confirm": true})
	if code != http.StatusOK || env.Message != "Deleted 2 documents from category 'legal'" {
		t.Fatalf("confirmed delete: %d %s", code, env.Message)
	}

	code, _ = call(t, app, http.MethodGet, "/api/documents/status/"+first, token, nil)
	if code != http.StatusNotFound {
		t.Fatalf("deleted document status = %d", code)
	}
	code, _ = call(t, app, http.MethodGet, "/api/documents/status/"+keep, token, nil)
	if code != http.StatusOK {
		t.Fatalf("kept document status = %d", code)
	}
	code, env = call(t, app, http.MethodGet, "/api/query/all", token, nil)
	var all struct {
		Queries []json.RawMessage `json:"queries"`
	}
	if err := json.Unmarshal(env.Data, &all); err != nil || code != http.StatusOK {
		t.Fatalf("query listing: %d %v", code, err)
	}
	if len(all.Queries) != 0 {
		t.Fatalf("dependent queries survived: %d", len(all.Queries))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t, &llm.Scripted{})

	code, env := call(t, app, http.MethodGet, "/api/health", "", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("health: %d %s", code, env.Message)
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("worker_jobs_received_total")) {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}

	code, env = call(t, app, http.MethodGet, "/api/nope", "", nil)
	if code != http.StatusNotFound || env.Message != "Route not found" {
		t.Fatalf("no route: %d %s", code, env.Message)
	}
}
