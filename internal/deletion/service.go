package deletion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/storage/object"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
)

const MaxBatch = 50

var (
	ErrNoIDs              = errors.New("document IDs array is required")
	ErrTooMany            = errors.New("too many documents")
	ErrNothingToDelete    = errors.New("no documents found to delete")
	ErrConfirmationNeeded = errors.New("confirmation required")
)

// Deleted describes one removed document.
type Deleted struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"document_title"`
	FileName   string    `json:"file_name"`
	DeletedAt  time.Time `json:"deleted_at"`
}

type Failure struct {
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}

// Batch is the outcome of deleting several documents.
type Batch struct {
	Deleted  []Deleted
	Failures []Failure
}

type Service struct {
	Docs    documents.Repo
	Cascade Cascade
	Store   object.ObjectStore
	Index   documents.SearchIndex
	now     func() time.Time
}

func NewService(docs documents.Repo, cascade Cascade, store object.ObjectStore, index documents.SearchIndex) *Service {
	return &Service{Docs: docs, Cascade: cascade, Store: store, Index: index, now: time.Now}
}

// Delete removes one of the user's documents. Rows go first in a single
// cascade; the stored object and index entry follow and their failures are
// only logged.
func (s *Service) Delete(ctx context.Context, userID, documentID string) (Deleted, error) {
	doc, err := s.Docs.Get(ctx, userID, documentID)
	if err != nil {
		return Deleted{}, err
	}
	return s.remove(ctx, doc)
}

// Remove satisfies documents.Remover.
func (s *Service) Remove(ctx context.Context, userID, documentID string) error {
	_, err := s.Delete(ctx, userID, documentID)
	return err
}

func (s *Service) remove(ctx context.Context, doc documents.Document) (Deleted, error) {
	if err := s.Cascade.DeleteDocument(ctx, doc.ID); err != nil {
		return Deleted{}, err
	}
	metrics.AddDocumentsDeleted(1)

	cleanup := context.WithoutCancel(ctx)
	if err := s.Store.Delete(cleanup, doc.FilePath); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("delete.object_failed", map[string]any{
			"document_id": doc.ID,
			"key":         doc.FilePath,
			"error":       err.Error(),
		})
	}
	if s.Index != nil {
		if err := s.Index.Remove(cleanup, doc.ID); err != nil {
			telemetry.Warn("delete.index_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
		}
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": doc.ID, "user_id": doc.UserID})
	return Deleted{DocumentID: doc.ID, Title: doc.Title, FileName: doc.FileName, DeletedAt: s.now().UTC()}, nil
}

func (s *Service) removeAll(ctx context.Context, docs []documents.Document) Batch {
	out := Batch{Deleted: []Deleted{}}
	for _, doc := range docs {
		d, err := s.remove(ctx, doc)
		if err != nil {
			out.Failures = append(out.Failures, Failure{DocumentID: doc.ID, Error: err.Error()})
			continue
		}
		out.Deleted = append(out.Deleted, d)
	}
	return out
}

// DeleteMany removes the listed documents the user owns. Unknown or foreign
// ids are skipped silently.
func (s *Service) DeleteMany(ctx context.Context, userID string, ids []string) (Batch, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return Batch{}, ErrNoIDs
	}
	if len(ids) > MaxBatch {
		return Batch{}, ErrTooMany
	}
	docs, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID, IDs: ids})
	if err != nil {
		return Batch{}, err
	}
	if len(docs) == 0 {
		return Batch{}, ErrNothingToDelete
	}
	return s.removeAll(ctx, docs), nil
}

// DeleteCategory removes every document of the user in one category.
func (s *Service) DeleteCategory(ctx context.Context, userID, category string, confirm bool) (Batch, int, error) {
	if !confirm {
		return Batch{}, 0, ErrConfirmationNeeded
	}
	if !documents.IsValidCategory(category) {
		return Batch{}, 0, documents.ErrInvalidCategory
	}
	docs, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID, Category: category})
	if err != nil {
		return Batch{}, 0, err
	}
	if len(docs) == 0 {
		return Batch{Deleted: []Deleted{}}, 0, nil
	}
	return s.removeAll(ctx, docs), len(docs), nil
}

// DeleteAllForUser removes every document a user owns. It stops at the first failure.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	docs, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID})
	if err != nil {
		return 0, err
	}
	for i, doc := range docs {
		if _, err := s.remove(ctx, doc); err != nil {
			return i, fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}

type PreviewDocument struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FileName          string    `json:"file_name"`
	FileSize          int64     `json:"file_size"`
	FileSizeFormatted string    `json:"file_size_formatted"`
	FileType          string    `json:"file_type"`
	Category          string    `json:"category"`
	UploadStatus      string    `json:"upload_status"`
	CreatedAt         time.Time `json:"created_at"`
}

type PreviewSummary struct {
	TotalDocuments     int            `json:"total_documents"`
	TotalSize          int64          `json:"total_size"`
	TotalSizeFormatted string         `json:"total_size_formatted"`
	Categories         []string       `json:"categories"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
}

type Preview struct {
	Documents []PreviewDocument `json:"documents"`
	Summary   PreviewSummary    `json:"summary"`
	Warning   string            `json:"warning"`
}

// Preview lists what a delete with the same ids or category would remove.
func (s *Service) Preview(ctx context.Context, userID string, ids []string, category string) (Preview, error) {
	filter := documents.ListFilter{UserID: userID, Category: category, IDs: cleanIDs(ids)}
	docs, _, err := s.Docs.List(ctx, filter)
	if err != nil {
		return Preview{}, err
	}
	out := Preview{Documents: make([]PreviewDocument, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, PreviewDocument{
			ID:                d.ID,
			Title:             d.Title,
			FileName:          d.FileName,
			FileSize:          d.FileSize,
			FileSizeFormatted: util.FormatFileSize(float64(d.FileSize)),
			FileType:          d.FileType,
			Category:          d.Category,
			UploadStatus:      d.UploadStatus,
			CreatedAt:         d.CreatedAt,
		})
	}
	total := util.SumBy(docs, func(d documents.Document) int64 { return d.FileSize })
	out.Summary = PreviewSummary{
		TotalDocuments:     len(docs),
		TotalSize:          total,
		TotalSizeFormatted: util.FormatFileSize(float64(total)),
		Categories:         util.Unique(docs, func(d documents.Document) string { return d.Category }),
		StatusBreakdown:    util.Breakdown(docs, func(d documents.Document) string { return d.UploadStatus }),
	}
	if len(docs) > 0 {
		out.Warning = fmt.Sprintf("This will permanently delete %d document(s) and all associated data (queries, clauses, feedback). This action cannot be undone.", len(docs))
	} else {
		out.Warning = "No documents found matching the criteria."
	}
	return out, nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
