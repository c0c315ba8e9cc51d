package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	sharedauth "legaldocs-backend/internal/shared/auth"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/users"
)

type testEnv struct {
	router *gin.Engine
	users  *users.Service
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := sharedauth.NewIssuer("test-secret", time.Hour, "dev")
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	store := sharedauth.NewMemorySessionStore()
	usersSvc := users.NewService(users.NewMemoryRepo(), bcrypt.MinCost, nil)
	sessions := &Sessions{Issuer: issuer, Store: store, RefreshTTL: time.Hour}
	h := NewHandler(usersSvc, sessions, nil)

	router := gin.New()
	api := router.Group("/api")
	h.RegisterRoutes(api, middleware.Auth(&sharedauth.Authenticator{Issuer: issuer, Sessions: store}))
	return testEnv{router: router, users: usersSvc}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
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
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func dataOf(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

var registerBody = map[string]any{
	"email":     "alice@example.com",
	"password":  "secret1",
	"username":  "alice",
	"full_name": "Alice A",
}

func TestRegisterLoginProfileLogout(t *testing.T) {
	env := newTestEnv(t)

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", registerBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if dataOf(body)["needsConfirmation"] != false || dataOf(body)["token"] == "" {
		t.Fatalf("unexpected register body %v", body)
	}

	rec, body = doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", registerBody)
	if rec.Code != http.StatusBadRequest || body["message"] != "User already exists" {
		t.Fatalf("duplicate register expected 400, got %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, env.router, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "nope-nope"})
	if rec.Code != http.StatusUnauthorized || body["message"] != "Invalid credentials" {
		t.Fatalf("bad login expected 401, got %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, env.router, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d", rec.Code)
	}
	token, _ := dataOf(body)["token"].(string)

	rec, body = doJSON(t, env.router, http.MethodGet, "/api/auth/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile expected 200, got %d", rec.Code)
	}
	user, _ := dataOf(body)["user"].(map[string]any)
	if user["username"] != "alice" || user["email_confirmed"] != true {
		t.Fatalf("unexpected profile %v", user)
	}

	rec, _ = doJSON(t, env.router, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout expected 200, got %d", rec.Code)
	}
	rec, body = doJSON(t, env.router, http.MethodGet, "/api/auth/profile", token, nil)
	if rec.Code != http.StatusUnauthorized || body["message"] != "Token has been revoked" {
		t.Fatalf("revoked token expected 401, got %d %v", rec.Code, body)
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rec, body := doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", map[string]any{"email": "x", "password": "1"})
	if rec.Code != http.StatusBadRequest || body["message"] != "Validation error" {
		t.Fatalf("expected 400 validation error, got %d %v", rec.Code, body)
	}
	details, _ := body["details"].(map[string]any)
	errs, _ := details["errors"].([]any)
	if len(errs) < 3 {
		t.Fatalf("expected several field errors, got %v", errs)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	_, body := doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", registerBody)
	refresh, _ := dataOf(body)["refresh_token"].(string)

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/auth/refresh", "", map[string]any{})
	if rec.Code != http.StatusBadRequest || body["message"] != "Refresh token is required" {
		t.Fatalf("expected 400, got %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d %v", rec.Code, body)
	}
	if next, _ := dataOf(body)["refresh_token"].(string); next == "" || next == refresh {
		t.Fatalf("expected a rotated refresh token")
	}

	rec, body = doJSON(t, env.router, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rec.Code != http.StatusUnauthorized || body["message"] != "Invalid refresh token" {
		t.Fatalf("reused refresh expected 401, got %d %v", rec.Code, body)
	}
}

func TestUpdateProfileRequiresField(t *testing.T) {
	env := newTestEnv(t)
	_, body := doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", registerBody)
	token, _ := dataOf(body)["token"].(string)

	rec, _ := doJSON(t, env.router, http.MethodPut, "/api/auth/profile", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec, body = doJSON(t, env.router, http.MethodPut, "/api/auth/profile", token, map[string]any{"full_name": "Alice Cooper"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user, _ := dataOf(body)["user"].(map[string]any)
	if user["full_name"] != "Alice Cooper" {
		t.Fatalf("unexpected user %v", user)
	}
}

func TestSuspendedLoginForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, body := doJSON(t, env.router, http.MethodPost, "/api/auth/register", "", registerBody)
	user, _ := dataOf(body)["user"].(map[string]any)
	id, _ := user["id"].(string)
	if _, err := env.users.SetStatus(t.Context(), id, users.StatusSuspended); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	rec, body := doJSON(t, env.router, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "secret1"})
	if rec.Code != http.StatusForbidden || body["message"] != "Account suspended" {
		t.Fatalf("expected 403, got %d %v", rec.Code, body)
	}
}

func TestStateStoreConsumesOnce(t *testing.T) {
	s := newStateStore()
	s.put("abc", time.Now().Add(time.Minute))
	if !s.consume("abc") {
		t.Fatalf("expected first consume to succeed")
	}
	if s.consume("abc") {
		t.Fatalf("expected second consume to fail")
	}
	s.put("old", time.Now().Add(-time.Second))
	if s.consume("old") {
		t.Fatalf("expired state must be rejected")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://localhost:3000/auth/success", "a.b.c")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	if !strings.HasSuffix(got, "/auth/success?token=a.b.c") {
		t.Fatalf("unexpected redirect %s", got)
	}
}
