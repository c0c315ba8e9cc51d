package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/admin"
	"legaldocs-backend/internal/auth"
	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/deletion"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/health"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/config"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
)

const (
	rateGroupAuth   = "AUTH"
	rateGroupUpload = "UPLOAD"
	rateGroupAI     = "AI"
	rateGroupAPI    = "API"
	rateWindow      = 15 * time.Minute
)

// RouterDeps are the handlers and middleware dependencies of the HTTP API.
type RouterDeps struct {
	Config        config.Config
	Authenticator middleware.TokenAuthenticator
	Limiter       middleware.Limiter

	Auth        *auth.Handler
	Documents   *documents.Handler
	Deletion    *deletion.Handler
	Queries     *queries.Handler
	Clauses     *clauses.Handler
	Feedback    *feedback.Handler
	Health      *health.Handler
	Admin       *admin.Handler
	AdminGuards admin.Guards
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(d RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(d.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	requireAuth := middleware.Auth(d.Authenticator)
	d.Health.RegisterRoutes(api, middleware.OptionalAuth(d.Authenticator))

	public := api.Group("", middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        map[string]middleware.RateLimitRule{rateGroupAuth: middleware.PerWindow(50, rateWindow)},
		DefaultGroup: rateGroupAuth,
		Limiter:      d.Limiter,
	}))
	d.Auth.RegisterRoutes(public, requireAuth)

	authed := api.Group("", requireAuth, middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			rateGroupUpload: middleware.PerWindow(60, rateWindow),
			rateGroupAI:     middleware.PerWindow(100, rateWindow),
			rateGroupAPI:    middleware.PerWindow(1000, rateWindow),
		},
		DefaultGroup: rateGroupAPI,
		GroupFor:     rateGroupFor,
		Limiter:      d.Limiter,
	}))
	d.Documents.RegisterRoutes(authed)
	d.Deletion.RegisterRoutes(authed)
	d.Queries.RegisterRoutes(authed)
	d.Clauses.RegisterRoutes(authed)
	d.Feedback.RegisterRoutes(authed)

	d.Admin.RegisterRoutes(api.Group("", requireAuth), d.AdminGuards)

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})
	return r
}

// rateGroupFor charges uploads and model-backed endpoints to their own buckets.
func rateGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return rateGroupAPI
	}
	path := c.FullPath()
	switch {
	case strings.HasPrefix(path, "/api/upload"):
		return rateGroupUpload
	case strings.HasPrefix(path, "/api/query/"),
		strings.HasPrefix(path, "/api/clauses/"),
		strings.HasPrefix(path, "/api/feedback/"):
		return rateGroupAI
	}
	return rateGroupAPI
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
