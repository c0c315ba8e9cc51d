package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/auth"
	"legaldocs-backend/internal/shared/server/respond"
)

const (
	userIDKey         = "userId"
	userEmailKey      = "userEmail"
	userNameKey       = "userName"
	tokenIDKey        = "tokenId"
	tokenExpiresAtKey = "tokenExpiresAt"
)

// TokenAuthenticator validates a bearer token.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Claims, error)
}

// Auth requires a valid bearer token and stores the identity in context.
func Auth(a TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		token := bearerToken(c)
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Access token is required", nil)
			return
		}

		claims, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				respond.Error(c, http.StatusUnauthorized, "token_expired", "Token expired", nil)
			case errors.Is(err, auth.ErrTokenRevoked):
				respond.Error(c, http.StatusUnauthorized, "token_revoked", "Token has been revoked", nil)
			case errors.Is(err, auth.ErrInvalidToken):
				respond.Error(c, http.StatusUnauthorized, "invalid_token", "Invalid token", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal", "Authentication failed", nil)
			}
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth stores the identity when a valid token is present and
// continues anonymously otherwise.
func OptionalAuth(a TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := a.Authenticate(c.Request.Context(), token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func setIdentity(c *gin.Context, claims auth.Claims) {
	c.Set(userIDKey, claims.UserID)
	if claims.Email != "" {
		c.Set(userEmailKey, claims.Email)
	}
	if claims.Username != "" {
		c.Set(userNameKey, claims.Username)
	}
	c.Set(tokenIDKey, claims.ID)
	if claims.ExpiresAt != nil {
		c.Set(tokenExpiresAtKey, claims.ExpiresAt.Time)
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return stringFromContext(c, userEmailKey)
}

// UserNameFromContext fetches the username set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return stringFromContext(c, userNameKey)
}

// TokenFromContext returns the jti and expiry of the presented access token.
func TokenFromContext(c *gin.Context) (string, time.Time) {
	id := stringFromContext(c, tokenIDKey)
	var exp time.Time
	if c != nil {
		if raw, ok := c.Get(tokenExpiresAtKey); ok {
			exp, _ = raw.(time.Time)
		}
	}
	return id, exp
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
