package deletion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/delete")
	g.GET("/preview", h.preview)
	g.POST("/multiple", h.deleteMany)
	g.DELETE("/category/:category", h.deleteCategory)
	g.DELETE("/:documentId", h.deleteOne)
}

type batchSummary struct {
	Requested       int `json:"requested,omitempty"`
	TotalInCategory int `json:"total_in_category,omitempty"`
	Deleted         int `json:"deleted"`
	Failed          int `json:"failed"`
}

type deletedView struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	FileName   string `json:"file_name"`
}

func batchBody(b Batch) (views []deletedView, errs any) {
	views = make([]deletedView, 0, len(b.Deleted))
	for _, d := range b.Deleted {
		views = append(views, deletedView{DocumentID: d.DocumentID, Title: d.Title, FileName: d.FileName})
	}
	if len(b.Failures) > 0 {
		errs = b.Failures
	}
	return views, errs
}

func (h *Handler) deleteOne(c *gin.Context) {
	res, err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("documentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Message(c, "Document deleted successfully", res)
}

type manyRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

func (h *Handler) deleteMany(c *gin.Context) {
	var req manyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Document IDs array is required", nil)
		return
	}
	batch, err := h.Svc.DeleteMany(c.Request.Context(), middleware.UserIDFromContext(c), req.DocumentIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	views, errs := batchBody(batch)
	respond.Message(c, fmt.Sprintf("Deleted %d documents successfully", len(batch.Deleted)), gin.H{
		"deleted_documents": views,
		"errors":            errs,
		"summary": batchSummary{
			Requested: len(req.DocumentIDs),
			Deleted:   len(batch.Deleted),
			Failed:    len(batch.Failures),
		},
	})
}

type categoryRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) deleteCategory(c *gin.Context) {
	var req categoryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid JSON body", nil)
			return
		}
	}
	category := c.Param("category")
	batch, total, err := h.Svc.DeleteCategory(c.Request.Context(), middleware.UserIDFromContext(c), category, req.Confirm)
	if err != nil {
		writeError(c, err)
		return
	}
	if total == 0 {
		respond.Message(c, "No documents found in this category", gin.H{"category": category, "deleted_count": 0})
		return
	}
	views, errs := batchBody(batch)
	respond.Message(c, fmt.Sprintf("Deleted %d documents from category '%s'", len(batch.Deleted), category), gin.H{
		"category":          category,
		"deleted_documents": views,
		"errors":            errs,
		"summary": batchSummary{
			TotalInCategory: total,
			Deleted:         len(batch.Deleted),
			Failed:          len(batch.Failures),
		},
	})
}

func (h *Handler) preview(c *gin.Context) {
	var ids []string
	if raw := strings.TrimSpace(c.Query("documentIds")); raw != "" {
		ids = strings.Split(raw, ",")
	}
	res, err := h.Svc.Preview(c.Request.Context(), middleware.UserIDFromContext(c), ids, strings.TrimSpace(c.Query("category")))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.Is(err, ErrNoIDs):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Document IDs array is required", nil)
	case errors.Is(err, ErrTooMany):
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("Cannot delete more than %d documents at once", MaxBatch), nil)
	case errors.Is(err, ErrNothingToDelete):
		respond.Error(c, http.StatusNotFound, "not_found", "No documents found to delete", nil)
	case errors.Is(err, ErrConfirmationNeeded):
		respond.Error(c, http.StatusBadRequest, "confirmation_required", "Confirmation required. Set confirm: true in request body.", nil)
	case errors.Is(err, documents.ErrInvalidCategory):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid category", gin.H{"valid_categories": documents.Categories})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
