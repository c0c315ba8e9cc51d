package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/storage/object"
	"legaldocs-backend/internal/shared/telemetry"
)

// multipartOverhead covers form fields and part headers around the files.
const multipartOverhead = 1 << 20

// Remover deletes a document together with its dependent rows and object.
type Remover interface {
	Remove(ctx context.Context, userID, documentID string) error
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc     *Service
	Remover Remover
	now     func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, remover Remover) *Handler {
	return &Handler{Svc: svc, Remover: remover, now: time.Now}
}

// RegisterRoutes attaches /upload and /documents routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	up := rg.Group("/upload")
	up.POST("", h.upload)
	up.POST("/single", h.upload)
	up.POST("/multiple", h.uploadMultiple)
	up.GET("", h.list)
	up.GET("/:id", h.get)
	up.PUT("/:id", h.update)
	up.DELETE("/:id", h.remove)
	up.GET("/:id/download", h.download)

	docs := rg.Group("/documents")
	docs.GET("/metadata/:id", h.metadata)
	docs.GET("/status/:id", h.status)
	docs.GET("/category/:category", h.byCategory)
	docs.GET("/statistics", h.statistics)
	docs.GET("/search", h.search)
	docs.GET("/analytics", h.analytics)
	docs.GET("/trends", h.trends)
	docs.GET("/performance", h.performance)

	all := docs.Group("/all")
	all.GET("", h.listing)
	all.GET("/status/:status", h.byStatus)
	all.GET("/recent", h.recent)
	all.GET("/categories", h.categories)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		h.writeFormError(c, err, "No file uploaded")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Unable to read uploaded file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, middleware.RequestIDFromContext(c), toUploadFile(fileHeader, file), UploadMeta{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.Created(c, "Document uploaded successfully", uploadResult{Document: doc, FileURL: doc.FileURL})
}

func (h *Handler) uploadMultiple(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes*MaxFilesPerRequest+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		h.writeFormError(c, err, "No files uploaded")
		return
	}
	headers := form.File["documents"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "No files uploaded", nil)
		return
	}
	if len(headers) > MaxFilesPerRequest {
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("Cannot upload more than %d files at once", MaxFilesPerRequest), nil)
		return
	}

	files := make([]UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Unable to read uploaded file", nil)
			return
		}
		defer f.Close()
		files = append(files, toUploadFile(fh, f))
	}

	docs, failures, err := h.Svc.UploadMany(c.Request.Context(), userID, middleware.RequestIDFromContext(c), files, c.PostForm("category"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	uploaded := make([]uploadResult, 0, len(docs))
	for _, d := range docs {
		uploaded = append(uploaded, uploadResult{Document: d, FileURL: d.FileURL})
	}
	var errs any
	if len(failures) > 0 {
		errs = failures
	}
	respond.Created(c, fmt.Sprintf("Uploaded %d documents successfully", len(docs)), gin.H{
		"uploaded": uploaded,
		"errors":   errs,
	})
}

func toUploadFile(fh *multipart.FileHeader, f multipart.File) UploadFile {
	return UploadFile{
		Name:         fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Body:         f,
	}
}

func (h *Handler) writeFormError(c *gin.Context, err error, missing string) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		respond.Error(c, http.StatusBadRequest, "validation_error", UserMessage(ErrTooLarge), nil)
		return
	}
	respond.Error(c, http.StatusBadRequest, "validation_error", missing, nil)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	category := strings.TrimSpace(c.Query("category"))
	docs, total, err := h.Svc.List(c.Request.Context(), userID, ListFilter{
		Category: category,
		Status:   strings.TrimSpace(c.Query("status")),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"documents":  docs,
		"pagination": pagination(page, limit, total),
	})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"document": doc})
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": []string{"Invalid JSON body"}})
		return
	}
	doc, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), UploadMeta{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found or update failed", nil)
			return
		}
		h.writeError(c, err)
		return
	}
	respond.Message(c, "Document updated successfully", gin.H{"document": doc})
}

func (h *Handler) remove(c *gin.Context) {
	if h.Remover == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	if err := h.Remover.Remove(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	respond.Message(c, "Document deleted successfully", nil)
}

func (h *Handler) download(c *gin.Context) {
	doc, body, err := h.Svc.Open(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to download file", nil)
			return
		}
		h.writeError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Header("Content-Type", doc.FileType)
	if doc.FileSize > 0 {
		c.Header("Content-Length", fmt.Sprint(doc.FileSize))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		telemetry.Warn("download.aborted", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
}

// writeError maps domain errors onto the response envelope.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": verr.Messages})
	case errors.Is(err, ErrNoFile):
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file uploaded", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "invalid_file_type", invalidTypeMessage, nil)
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusBadRequest, "file_too_large", UserMessage(err), nil)
	case errors.Is(err, ErrTooManyFiles):
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("Cannot upload more than %d files at once", MaxFilesPerRequest), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.Is(err, ErrInvalidCategory):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid category", gin.H{"valid_categories": Categories})
	case errors.Is(err, ErrInvalidStatus):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid status", gin.H{"valid_statuses": Statuses})
	case errors.Is(err, ErrSearchTerm):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Search term must be at least 2 characters long", nil)
	case errors.Is(err, ErrInvalidDate):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid date format",
			gin.H{"example": "?start_date=2024-01-01&end_date=2024-01-31"})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}
