package clauses

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

// RegisterRoutes attaches /clauses routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/clauses")
	g.POST("/extract/:documentId", h.extract)
	g.GET("/document/:documentId", h.forDocument)
	g.POST("/analyze/:clauseId", h.analyze)
	g.GET("/search", h.search)
	g.GET("/statistics", h.statistics)
}

type extractRequest struct {
	ClauseTypes string `json:"clauseTypes"`
	Language    string `json:"language"`
}

type analyzeRequest struct {
	AnalysisType string `json:"analysisType"`
}

// bindOptional decodes a JSON body when one is present.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid JSON body", nil)
		return false
	}
	return true
}

func (h *Handler) extract(c *gin.Context) {
	var req extractRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.Svc.Extract(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("documentId"), Request{
		ClauseTypes: req.ClauseTypes,
		Language:    req.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Clauses extracted successfully", res)
}

func (h *Handler) forDocument(c *gin.Context) {
	documentID := c.Param("documentId")
	rows, err := h.Svc.ForDocument(c.Request.Context(), middleware.UserIDFromContext(c), documentID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"document_id":       documentID,
		"clauses":           rows,
		"total_extractions": len(rows),
	})
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.Svc.Analyze(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("clauseId"), req.AnalysisType)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Clause analyzed successfully", res)
}

func (h *Handler) search(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	term := strings.TrimSpace(c.Query("q"))
	clauseType := strings.TrimSpace(c.Query("clauseType"))
	documentID := strings.TrimSpace(c.Query("documentId"))
	rows, total, err := h.Svc.Search(c.Request.Context(), middleware.UserIDFromContext(c), term, ListFilter{
		DocumentID:  documentID,
		ClauseTypes: clauseType,
		Limit:       limit,
		Offset:      util.Offset(page, limit),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"search_term": term,
		"clauses":     rows,
		"pagination":  util.NewPagination(page, limit, total),
		"filters": gin.H{
			"clause_type": optional(clauseType),
			"document_id": optional(documentID),
		},
	})
}

func (h *Handler) statistics(c *gin.Context) {
	st, err := h.Svc.Statistics(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, st)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Clause not found", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusBadRequest, "not_ready", "Document is not ready for processing", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "unsupported_type", "Unsupported file type for clause extraction", nil)
	case errors.Is(err, ErrNoText):
		respond.Error(c, http.StatusBadRequest, "no_text", "Could not extract text from document", nil)
	case errors.Is(err, ErrInvalidAnalysisType):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid analysis type",
			gin.H{"valid_types": []string{"comprehensive", "legal", "risk", "summary"}})
	case errors.Is(err, ErrSearchTerm):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Search term must be at least 2 characters long", nil)
	case errors.Is(err, llm.ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "ai_unavailable", "AI service is not configured", nil)
	case errors.Is(err, ErrAI):
		respond.Error(c, http.StatusInternalServerError, "ai_error", "Internal server error", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
