package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedauth "legaldocs-backend/internal/shared/auth"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/users"
)

type Handler struct {
	Users    *users.Service
	Sessions *Sessions
	Google   *GoogleService
}

func NewHandler(usersSvc *users.Service, sessions *Sessions, google *GoogleService) *Handler {
	return &Handler{Users: usersSvc, Sessions: sessions, Google: google}
}

// RegisterRoutes mounts /auth routes. requireAuth guards the session-bound endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", requireAuth, h.logout)
	g.GET("/profile", requireAuth, h.profile)
	g.PUT("/profile", requireAuth, h.updateProfile)
	if h.Google != nil {
		g.GET("/google", h.Google.start)
		g.GET("/callback", h.Google.callback)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": []string{"Invalid JSON body"}})
		return
	}
	user, err := h.Users.Register(c.Request.Context(), users.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.writeUserError(c, err)
		return
	}
	pair, err := h.Sessions.Issue(c.Request.Context(), user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	respond.Created(c, "Registration successful", gin.H{
		"user":              user.Profile(),
		"token":             pair.Token,
		"refresh_token":     pair.RefreshToken,
		"expires_in":        pair.ExpiresIn,
		"needsConfirmation": false,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": []string{"Invalid JSON body"}})
		return
	}
	user, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeUserError(c, err)
		return
	}
	pair, err := h.Sessions.Issue(c.Request.Context(), user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	telemetry.Info("auth.login", map[string]any{"user_id": user.ID})
	respond.Message(c, "Login successful", gin.H{
		"user":          user.Profile(),
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)
	jti, exp := middleware.TokenFromContext(c)
	if jti != "" {
		if err := h.Sessions.Store.RevokeToken(ctx, jti, exp); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Logout failed", nil)
			return
		}
	}
	if err := h.Sessions.RevokeAll(ctx, userID); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Logout failed", nil)
		return
	}
	respond.Message(c, "Logout successful", nil)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Refresh token is required", nil)
		return
	}
	ctx := c.Request.Context()
	userID, err := h.Sessions.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sharedauth.ErrSessionNotFound) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid refresh token", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid refresh token", nil)
		return
	}
	if user.Status == users.StatusSuspended {
		respond.Error(c, http.StatusForbidden, "forbidden", "Account suspended", nil)
		return
	}
	pair, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	respond.Message(c, "Token refreshed successfully", gin.H{
		"user":          user.Profile(),
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.Users.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "User not authenticated", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	respond.OK(c, gin.H{"user": user.Profile()})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": []string{"Invalid JSON body"}})
		return
	}
	user, err := h.Users.UpdateProfile(c.Request.Context(), middleware.UserIDFromContext(c), users.ProfileUpdate{
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.writeUserError(c, err)
		return
	}
	respond.Message(c, "Profile updated successfully", gin.H{"user": user.Profile()})
}

func (h *Handler) writeUserError(c *gin.Context, err error) {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": verr.Messages})
	case errors.Is(err, users.ErrEmailTaken):
		respond.Error(c, http.StatusBadRequest, "user_exists", "User already exists", nil)
	case errors.Is(err, users.ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
	case errors.Is(err, users.ErrSuspended):
		respond.Error(c, http.StatusForbidden, "forbidden", "Account suspended", nil)
	case errors.Is(err, users.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
