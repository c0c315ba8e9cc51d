package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubAccounts map[string]Account

func (s stubAccounts) LookupAccount(_ context.Context, userID string) (Account, error) {
	acct, ok := s[userID]
	if !ok {
		return Account{}, errors.New("not found")
	}
	return acct, nil
}

type recordingSink struct {
	entries []AuditEntry
	err     error
}

func (r *recordingSink) RecordAdminAction(_ context.Context, entry AuditEntry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func adminRouter(accounts stubAccounts, userID string, sink AuditSink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	admin := r.Group("/api/admin", RequireAdmin(accounts), AdminAudit(sink))
	admin.GET("/dashboard", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	admin.POST("/actions", ValidateAdminSession(accounts), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"echo": string(body)})
	})
	admin.POST("/actions/critical", RequireSuperAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	accounts := stubAccounts{
		"u1": {Role: RoleUser, Active: true},
		"a1": {Role: RoleAdmin, Active: true},
	}
	resp := serve(adminRouter(accounts, "u1", nil), http.MethodGet, "/api/admin/dashboard")
	if resp.Code != http.StatusForbidden || messageOf(t, resp) != "Admin access required" {
		t.Fatalf("expected 403 for regular user, got %d %s", resp.Code, resp.Body.String())
	}
	if resp := serve(adminRouter(accounts, "a1", nil), http.MethodGet, "/api/admin/dashboard"); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	accounts := stubAccounts{
		"a1": {Role: RoleAdmin, Active: true},
		"s1": {Role: RoleSuperAdmin, Active: true},
	}
	resp := serve(adminRouter(accounts, "a1", nil), http.MethodPost, "/api/admin/actions/critical")
	if resp.Code != http.StatusForbidden || messageOf(t, resp) != "Super admin access required" {
		t.Fatalf("expected 403, got %d %s", resp.Code, resp.Body.String())
	}
	if resp := serve(adminRouter(accounts, "s1", nil), http.MethodPost, "/api/admin/actions/critical"); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for super admin, got %d", resp.Code)
	}
}

func TestValidateAdminSessionRejectsSuspendedAdmin(t *testing.T) {
	accounts := stubAccounts{"a1": {Role: RoleAdmin, Active: false}}
	resp := serve(adminRouter(accounts, "a1", nil), http.MethodPost, "/api/admin/actions")
	if resp.Code != http.StatusForbidden || messageOf(t, resp) != "Admin privileges revoked" {
		t.Fatalf("expected 403 revoked, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestAdminAuditRecordsMutationsOnly(t *testing.T) {
	accounts := stubAccounts{"a1": {Role: RoleAdmin, Active: true}}
	sink := &recordingSink{err: errors.New("db down")}
	r := adminRouter(accounts, "a1", sink)

	serve(r, http.MethodGet, "/api/admin/dashboard")
	if len(sink.entries) != 0 {
		t.Fatalf("expected GET not audited")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/actions", strings.NewReader(`{"action":"suspend_user"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected audit failure to be ignored, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "suspend_user") {
		t.Fatalf("expected handler to still read the body, got %s", resp.Body.String())
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(sink.entries))
	}
	got := sink.entries[0]
	if got.AdminID != "a1" || got.Action != "POST /api/admin/actions" || got.ResponseStatus != http.StatusOK || !got.ResponseSuccess {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.RequestBody != `{"action":"suspend_user"}` {
		t.Fatalf("unexpected body %q", got.RequestBody)
	}
}
