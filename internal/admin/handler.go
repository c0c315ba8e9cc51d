package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/util"
	"legaldocs-backend/internal/users"
)

const (
	rateGroupAdmin     = "ADMIN"
	rateGroupAnalytics = "ADMIN_ANALYTICS"
	rateWindow         = 15 * time.Minute
	adminRequests      = 100
	analyticsRequests  = 50
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// Guards are the middleware dependencies of the admin routes.
type Guards struct {
	Accounts middleware.AccountLookup
	Limiter  middleware.Limiter
	Audit    middleware.AuditSink
}

func (g Guards) chain(group string, perWindow int) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.RequireAdmin(g.Accounts),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        map[string]middleware.RateLimitRule{group: middleware.PerWindow(perWindow, rateWindow)},
			DefaultGroup: group,
			Limiter:      g.Limiter,
		}),
		middleware.AdminAudit(g.Audit),
		middleware.ValidateAdminSession(g.Accounts),
	}
}

// RegisterRoutes attaches /admin and /admin/analytics to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guards Guards) {
	a := rg.Group("/admin", guards.chain(rateGroupAdmin, adminRequests)...)
	a.GET("/dashboard", h.dashboard)
	a.GET("/analytics", h.analytics)
	a.GET("/file-stats", h.fileStats)
	a.GET("/users", h.listUsers)
	a.GET("/users/:userId", h.userDetail)
	a.POST("/actions", h.perform)
	a.POST("/actions/critical", middleware.RequireSuperAdmin(), h.perform)

	an := rg.Group("/admin/analytics", guards.chain(rateGroupAnalytics, analyticsRequests)...)
	an.GET("/realtime", h.realtime)
	an.GET("/user-activity", h.userActivity)
	an.GET("/ai-performance", h.aiPerformance)
	an.GET("/security", h.security)
	an.GET("/recommendations", h.recommendations)
}

func (h *Handler) dashboard(c *gin.Context) {
	respond.OK(c, h.Svc.Dashboard(c.Request.Context(), parsePeriod(c.Query("period"), 7, 7, 30, 90)))
}

func (h *Handler) analytics(c *gin.Context) {
	out, err := h.Svc.TimeSeries(c.Request.Context(), parsePeriod(c.Query("period"), 30, 7, 30, 90), c.Query("granularity"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) fileStats(c *gin.Context) {
	out, err := h.Svc.FileStats(c.Request.Context(), parsePeriod(c.Query("period"), 7, 7, 30, 90))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) listUsers(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 20)
	if !ok {
		return
	}
	filter, echo := NormalizeUserFilter(users.ListFilter{
		Page:      page,
		Limit:     limit,
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	rows, total, err := h.Svc.ListUsers(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"users":      rows,
		"pagination": util.NewPagination(page, limit, total),
		"filters":    echo,
	})
}

func (h *Handler) userDetail(c *gin.Context) {
	out, err := h.Svc.UserDetail(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) perform(c *gin.Context) {
	var req Action
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid JSON body", nil)
		return
	}
	res, err := h.Svc.Perform(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Action '"+res.Action+"' completed successfully", res)
}

func (h *Handler) realtime(c *gin.Context) {
	out, err := h.Svc.Realtime(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) userActivity(c *gin.Context) {
	out, err := h.Svc.UserActivity(c.Request.Context(), parsePeriod(c.Query("period"), 7, 1, 7, 30))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) aiPerformance(c *gin.Context) {
	out, err := h.Svc.AIPerformance(c.Request.Context(), parsePeriod(c.Query("period"), 7, 7, 30, 90))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) security(c *gin.Context) {
	out, err := h.Svc.Security(c.Request.Context(), parsePeriod(c.Query("period"), 30, 7, 30, 90))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) recommendations(c *gin.Context) {
	out, err := h.Svc.Recommendations(c.Request.Context(), strings.TrimSpace(c.Query("focus")))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAction):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid action", gin.H{"valid_actions": Actions})
	case errors.Is(err, ErrTargetRequired):
		respond.Error(c, http.StatusBadRequest, "validation_error", "targetId is required", nil)
	case errors.Is(err, ErrSelfTarget):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Admins cannot target their own account", nil)
	case errors.Is(err, users.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
