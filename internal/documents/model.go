package documents

import (
	"strings"
	"time"

	"legaldocs-backend/internal/extract"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Statuses lists every upload_status in lifecycle order.
var Statuses = []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

const DefaultCategory = "general"

// Categories lists the accepted document categories.
var Categories = []string{"general", "work", "personal", "education", "legal", "medical", "financial", "other"}

// Document is an uploaded file owned by a user. Extracted text is kept out of
// this struct and read through Repo.ExtractedText.
type Document struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	FileName        string    `json:"file_name"`
	FilePath        string    `json:"file_path"`
	FileURL         string    `json:"file_url"`
	FileSize        int64     `json:"file_size"`
	FileType        string    `json:"file_type"`
	FileExtension   string    `json:"file_extension"`
	UploadStatus    string    `json:"upload_status"`
	ProcessingError string    `json:"processing_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsReady reports whether processing finished successfully.
func (d Document) IsReady() bool {
	return d.UploadStatus == StatusCompleted
}

// IsAnalyzable reports whether AI queries and clause extraction accept the document.
func (d Document) IsAnalyzable() bool {
	return d.IsReady() && SupportsAnalysis(d.FileType)
}

// SupportsAnalysis reports whether the mime type is accepted by the AI features.
func SupportsAnalysis(mimeType string) bool {
	switch baseMime(mimeType) {
	case extract.MimePDF, extract.MimeText:
		return true
	default:
		return false
	}
}

func IsValidCategory(category string) bool {
	return contains(Categories, category)
}

func IsValidStatus(status string) bool {
	return contains(Statuses, status)
}

// StatusMessage returns the user-facing description of a status.
func StatusMessage(status string) string {
	switch status {
	case StatusPending:
		return "Document is queued for processing"
	case StatusProcessing:
		return "Document is being processed"
	case StatusCompleted:
		return "Document is ready for use"
	case StatusFailed:
		return "Document processing failed"
	default:
		return "Unknown status"
	}
}

// DownloadPath is the API path serving the stored object of a document.
func DownloadPath(id string) string {
	return "/api/upload/" + id + "/download"
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func baseMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
