package documents

import (
	"context"
	"time"
)

// ListFilter narrows a document listing. Empty fields are ignored and a zero
// Limit returns every match.
type ListFilter struct {
	UserID   string
	Category string
	Status   string
	// Search matches title, description and file name case-insensitively.
	Search string
	IDs    []string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
	// Ascending orders by created_at oldest first.
	Ascending bool
}

// MetaUpdate holds the user-editable fields of a document.
type MetaUpdate struct {
	Title       string
	Description string
	Category    string
}

// StatusUpdate moves a document through processing. Text is stored only when non-nil.
type StatusUpdate struct {
	Status string
	Text   *string
	Error  string
}

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	// Get returns a document only when it belongs to userID.
	Get(ctx context.Context, userID, id string) (Document, error)
	GetByID(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, int, error)
	UpdateMeta(ctx context.Context, userID, id string, upd MetaUpdate) (Document, error)
	SetStatus(ctx context.Context, id string, upd StatusUpdate) error
	ExtractedText(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}
