package health

import (
	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches /health routes. optionalAuth resolves the caller
// for /health/metrics without rejecting anonymous requests.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	g := rg.Group("/health")
	g.GET("", h.basic)
	g.GET("/comprehensive", h.comprehensive)
	g.GET("/status", h.status)
	if optionalAuth != nil {
		g.GET("/metrics", optionalAuth, h.metrics)
	} else {
		g.GET("/metrics", h.metrics)
	}
}

func (h *Handler) basic(c *gin.Context) {
	respond.OK(c, h.Svc.Basic())
}

func (h *Handler) comprehensive(c *gin.Context) {
	respond.OK(c, h.Svc.Comprehensive(c.Request.Context()))
}

func (h *Handler) status(c *gin.Context) {
	respond.OK(c, h.Svc.Status())
}

func (h *Handler) metrics(c *gin.Context) {
	respond.OK(c, h.Svc.Metrics(c.Request.Context(), middleware.UserIDFromContext(c)))
}
