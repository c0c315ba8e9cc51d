package queries

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/util"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches /query routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	q := rg.Group("/query")
	q.POST("/document/:documentId", h.ask)
	q.GET("/document/:documentId/history", h.history)
	q.GET("/all", h.all)
}

type askRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
	Language string `json:"language"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid JSON body", nil)
		return
	}
	ans, err := h.Svc.Ask(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("documentId"), Question{
		Question: req.Question,
		Context:  req.Context,
		Language: req.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Query processed successfully", ans)
}

func (h *Handler) history(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	documentID := c.Param("documentId")
	rows, total, err := h.Svc.History(c.Request.Context(), middleware.UserIDFromContext(c), documentID, limit, util.Offset(page, limit))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"document_id": documentID,
		"queries":     rows,
		"pagination":  util.NewPagination(page, limit, total),
	})
}

func (h *Handler) all(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 20)
	if !ok {
		return
	}
	documentID := strings.TrimSpace(c.Query("documentId"))
	rows, total, err := h.Svc.All(c.Request.Context(), middleware.UserIDFromContext(c), documentID, limit, util.Offset(page, limit))
	if err != nil {
		writeError(c, err)
		return
	}
	var filter *string
	if documentID != "" {
		filter = &documentID
	}
	respond.OK(c, gin.H{
		"queries":    rows,
		"pagination": util.NewPagination(page, limit, total),
		"filters":    gin.H{"document_id": filter},
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrQuestionTooShort):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Question must be at least 3 characters long", nil)
	case errors.Is(err, ErrInvalidContext):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid context", gin.H{"valid_contexts": Contexts})
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Query not found", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusBadRequest, "not_ready", "Document is not ready for querying", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "unsupported_type", "Unsupported file type for querying", nil)
	case errors.Is(err, ErrNoText):
		respond.Error(c, http.StatusBadRequest, "no_text", "Could not extract text from document", nil)
	case errors.Is(err, llm.ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "ai_unavailable", "AI service is not configured", nil)
	case errors.Is(err, ErrAI):
		respond.Error(c, http.StatusInternalServerError, "ai_error", "Internal server error", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
