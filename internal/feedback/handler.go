package feedback

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/util"
)

const defaultAnalyticsDays = 30

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/feedback")
	g.POST("/query/:queryId", h.submitQuery)
	g.POST("/clause/:clauseId", h.submitClause)
	g.POST("/document/:documentId", h.submitDocument)
	g.GET("/analytics", h.analytics)
	g.GET("/suggestions", h.suggestions)
}

type submitRequest struct {
	Rating       int    `json:"rating"`
	Feedback     string `json:"feedback"`
	FeedbackType string `json:"feedbackType"`
	Aspect       string `json:"aspect"`
	Accuracy     *int   `json:"accuracy"`
	Relevance    *int   `json:"relevance"`
	Completeness *int   `json:"completeness"`
}

func (r submitRequest) submission() Submission {
	return Submission{
		Rating:       r.Rating,
		Feedback:     r.Feedback,
		FeedbackType: r.FeedbackType,
		Aspect:       r.Aspect,
		Accuracy:     r.Accuracy,
		Relevance:    r.Relevance,
		Completeness: r.Completeness,
	}
}

func bind(c *gin.Context) (submitRequest, bool) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid JSON body", nil)
		return req, false
	}
	return req, true
}

func (h *Handler) submitQuery(c *gin.Context) {
	req, ok := bind(c)
	if !ok {
		return
	}
	res, err := h.Svc.SubmitQuery(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("queryId"), req.submission())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Feedback submitted successfully", res)
}

func (h *Handler) submitClause(c *gin.Context) {
	req, ok := bind(c)
	if !ok {
		return
	}
	res, err := h.Svc.SubmitClause(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("clauseId"), req.submission())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Clause feedback submitted successfully", res)
}

func (h *Handler) submitDocument(c *gin.Context) {
	req, ok := bind(c)
	if !ok {
		return
	}
	res, err := h.Svc.SubmitDocument(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("documentId"), req.submission())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Document feedback submitted successfully", res)
}

func (h *Handler) analytics(c *gin.Context) {
	days := util.ParseIntDefault(c.Query("days"), defaultAnalyticsDays)
	res, err := h.Svc.Analytics(c.Request.Context(), middleware.UserIDFromContext(c), strings.TrimSpace(c.Query("type")), days)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) suggestions(c *gin.Context) {
	res, err := h.Svc.Suggestions(c.Request.Context(), middleware.UserIDFromContext(c), strings.TrimSpace(c.Query("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Suggestions == nil {
		respond.OK(c, gin.H{"suggestions": []string{}, "message": res.Message})
		return
	}
	respond.OK(c, res)
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", verr.Message, nil)
	case errors.Is(err, ErrInvalidType):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid feedback type",
			gin.H{"valid_types": append([]string{KindAll}, Kinds...)})
	case errors.Is(err, queries.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Query not found", nil)
	case errors.Is(err, clauses.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Clause not found", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
