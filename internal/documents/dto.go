package documents

import (
	"time"

	"legaldocs-backend/internal/shared/util"
)

type updateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// View is a document with display fields derived from its size and status.
type View struct {
	Document
	FileSizeFormatted string `json:"file_size_formatted"`
	IsAccessible      bool   `json:"is_accessible"`
}

func toView(doc Document) View {
	return View{
		Document:          doc,
		FileSizeFormatted: util.FormatFileSize(float64(doc.FileSize)),
		IsAccessible:      doc.IsReady(),
	}
}

// ListingView adds the capability flags shown in document listings.
type ListingView struct {
	View
	DaysSinceUpload   int  `json:"days_since_upload"`
	CanQuery          bool `json:"can_query"`
	CanExtractClauses bool `json:"can_extract_clauses"`
}

func toListingView(doc Document, now time.Time) ListingView {
	return ListingView{
		View:              toView(doc),
		DaysSinceUpload:   DaysSince(now, doc.CreatedAt),
		CanQuery:          doc.IsAnalyzable(),
		CanExtractClauses: doc.IsAnalyzable(),
	}
}

type recentView struct {
	View
	DaysAgo int `json:"days_ago"`
}

func toViews(docs []Document) []View {
	out := make([]View, 0, len(docs))
	for _, d := range docs {
		out = append(out, toView(d))
	}
	return out
}

type uploadResult struct {
	Document Document `json:"document"`
	FileURL  string   `json:"file_url"`
}

type statusView struct {
	DocumentID    string    `json:"document_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message"`
	IsReady       bool      `json:"is_ready"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type listingSummary struct {
	TotalDocuments             int `json:"total_documents"`
	AccessibleDocuments        int `json:"accessible_documents"`
	QueryableDocuments         int `json:"queryable_documents"`
	ClauseExtractableDocuments int `json:"clause_extractable_documents"`
}

type filters struct {
	Category *string `json:"category"`
	Search   *string `json:"search,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
