package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/telemetry"
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"

	userRoleKey = "userRole"
)

// Account is the slice of a user record the admin guards need.
type Account struct {
	Role   string
	Active bool
}

// AccountLookup resolves the current role of a user.
type AccountLookup interface {
	LookupAccount(ctx context.Context, userID string) (Account, error)
}

// IsAdminRole reports whether role grants admin access.
func IsAdminRole(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

// RequireAdmin allows only admins and super admins. The role is read from the
// account store, not from the token.
func RequireAdmin(lookup AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
			return
		}
		acct, err := lookup.LookupAccount(c.Request.Context(), userID)
		if err != nil || !IsAdminRole(acct.Role) {
			respond.Error(c, http.StatusForbidden, "forbidden", "Admin access required", nil)
			return
		}
		c.Set(userRoleKey, acct.Role)
		c.Next()
	}
}

// RequireSuperAdmin must run after RequireAdmin.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) != RoleSuperAdmin {
			respond.Error(c, http.StatusForbidden, "forbidden", "Super admin access required", nil)
			return
		}
		c.Next()
	}
}

// ValidateAdminSession re-checks the account right before a state-changing
// admin action so that a demotion or suspension takes effect immediately.
func ValidateAdminSession(lookup AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserIDFromContext(c)
		acct, err := lookup.LookupAccount(c.Request.Context(), userID)
		if err != nil || !acct.Active || !IsAdminRole(acct.Role) {
			telemetry.Warn("admin.session_revoked", map[string]any{
				"user_id":    userID,
				"request_id": RequestIDFromContext(c),
			})
			respond.Error(c, http.StatusForbidden, "forbidden", "Admin privileges revoked", nil)
			return
		}
		c.Next()
	}
}

// RoleFromContext returns the role stored by RequireAdmin.
func RoleFromContext(c *gin.Context) string {
	return stringFromContext(c, userRoleKey)
}
