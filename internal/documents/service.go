package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/storage/object"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
)

// sniffLen is how much of an upload is read up front for content detection.
const sniffLen = 3072

const compensateTimeout = 10 * time.Second

// Dispatcher hands a stored document to the processing pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID, requestID string) error
}

// SearchIndex is an optional full-text index over document metadata.
type SearchIndex interface {
	Index(ctx context.Context, doc Document) error
	Remove(ctx context.Context, ids ...string) error
	Search(ctx context.Context, q SearchQuery) ([]string, int, error)
}

type SearchQuery struct {
	UserID   string
	Term     string
	Category string
	Limit    int
	Offset   int
}

// UploadFile is one file from a multipart request.
type UploadFile struct {
	Name         string
	DeclaredType string
	Size         int64
	Body         io.Reader
}

// FileError reports a per-file failure of a multiple upload.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Service contains business logic for documents.
type Service struct {
	Repo       Repo
	Store      object.ObjectStore
	Dispatcher Dispatcher
	Index      SearchIndex
	MaxBytes   int64
	now        func() time.Time
}

// NewService constructs a Service. index may be nil.
func NewService(repo Repo, store object.ObjectStore, dispatcher Dispatcher, index SearchIndex, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return &Service{
		Repo:       repo,
		Store:      store,
		Dispatcher: dispatcher,
		Index:      index,
		MaxBytes:   maxBytes,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates, stores and records one file, then queues it for
// processing. Nothing is written until validation passes.
func (s *Service) Upload(ctx context.Context, userID, requestID string, file UploadFile, meta UploadMeta) (Document, error) {
	meta, err := meta.normalize(file.Name, false)
	if err != nil {
		metrics.IncUploadsRejected()
		return Document{}, err
	}
	doc, body, err := s.prepare(userID, file, meta)
	if err != nil {
		metrics.IncUploadsRejected()
		return Document{}, err
	}

	written, err := s.Store.Put(ctx, doc.FilePath, doc.FileType, io.LimitReader(body, s.MaxBytes+1), file.Size)
	if err != nil {
		return Document{}, fmt.Errorf("store object: %w", err)
	}
	if written > s.MaxBytes {
		s.compensate(ctx, doc, "oversized")
		metrics.IncUploadsRejected()
		return Document{}, ErrTooLarge
	}
	doc.FileSize = written

	if err := s.Repo.Create(ctx, doc); err != nil {
		s.compensate(ctx, doc, "insert_failed")
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	metrics.IncUploads()
	telemetry.Info("upload.stored", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"mime":        doc.FileType,
		"size":        doc.FileSize,
		"request_id":  requestID,
	})

	s.index(ctx, doc)

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Dispatch(ctx, doc.ID, requestID); err != nil {
			telemetry.Error("upload.enqueue_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
			upd := StatusUpdate{Status: StatusFailed, Error: "Document could not be queued for processing"}
			if setErr := s.Repo.SetStatus(ctx, doc.ID, upd); setErr == nil {
				doc.UploadStatus = upd.Status
				doc.ProcessingError = upd.Error
			}
		}
	}
	return doc, nil
}

// prepare runs every check that must pass before any write and returns the
// document row plus a reader positioned at the start of the file.
func (s *Service) prepare(userID string, file UploadFile, meta UploadMeta) (Document, io.Reader, error) {
	if file.Body == nil {
		return Document{}, nil, ErrNoFile
	}
	if file.Size > s.MaxBytes {
		return Document{}, nil, ErrTooLarge
	}
	name, err := util.SanitizeFileName(filepath.Base(file.Name))
	if err != nil {
		return Document{}, nil, &ValidationError{Messages: []string{"Invalid file name"}}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Document{}, nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Document{}, nil, &ValidationError{Messages: []string{"Uploaded file is empty"}}
	}
	mimeType, err := DetectMime(head, file.DeclaredType)
	if err != nil {
		return Document{}, nil, err
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(name))
	now := s.now()
	doc := Document{
		ID:            id,
		UserID:        userID,
		Title:         meta.Title,
		Description:   meta.Description,
		Category:      meta.Category,
		FileName:      name,
		FilePath:      StorageKey(userID, id, ext),
		FileURL:       DownloadPath(id),
		FileSize:      file.Size,
		FileType:      mimeType,
		FileExtension: ext,
		UploadStatus:  StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return doc, io.MultiReader(bytes.NewReader(head), file.Body), nil
}

// StoragePrefix is the object store prefix under which every upload lives.
const StoragePrefix = "documents/"

// StorageKey returns the object key for a document file.
func StorageKey(userID, id, ext string) string {
	return StoragePrefix + userID + "/" + id + ext
}

// compensate removes the stored object of an upload that did not complete.
// Its own failure is only logged.
func (s *Service) compensate(ctx context.Context, doc Document, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := s.Store.Delete(cctx, doc.FilePath); err != nil {
		telemetry.Error("upload.compensate_failed", map[string]any{
			"document_id": doc.ID,
			"key":         doc.FilePath,
			"reason":      reason,
			"error":       err.Error(),
		})
		return
	}
	telemetry.Warn("upload.compensated", map[string]any{"document_id": doc.ID, "reason": reason})
}

// UploadMany runs the upload saga per file and collects partial failures.
func (s *Service) UploadMany(ctx context.Context, userID, requestID string, files []UploadFile, category string) ([]Document, []FileError, error) {
	if len(files) == 0 {
		return nil, nil, ErrNoFile
	}
	if len(files) > MaxFilesPerRequest {
		return nil, nil, ErrTooManyFiles
	}
	category = strings.TrimSpace(category)
	if category != "" && !IsValidCategory(category) {
		return nil, nil, &ValidationError{Messages: []string{"Category must be one of: " + strings.Join(Categories, ", ")}}
	}

	uploaded := make([]Document, 0, len(files))
	var failures []FileError
	for _, file := range files {
		doc, err := s.Upload(ctx, userID, requestID, file, UploadMeta{Category: category})
		if err != nil {
			failures = append(failures, FileError{File: file.Name, Error: UserMessage(err)})
			continue
		}
		uploaded = append(uploaded, doc)
	}
	return uploaded, failures, nil
}

// UserMessage renders an upload error for API clients.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return strings.Join(verr.Messages, "; ")
	case errors.Is(err, ErrUnsupportedType):
		return invalidTypeMessage
	case errors.Is(err, ErrTooLarge):
		return "File size exceeds the 10MB limit"
	case errors.Is(err, ErrNoFile):
		return "No file uploaded"
	default:
		return "Failed to upload document"
	}
}

func (s *Service) index(ctx context.Context, doc Document) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, doc); err != nil {
		telemetry.Warn("search.index_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
}

// List returns the user's documents matching filter, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Document, int, error) {
	filter.UserID = userID
	return s.Repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Document, error) {
	return s.Repo.Get(ctx, userID, id)
}

// Update replaces the title, description and category of a document.
func (s *Service) Update(ctx context.Context, userID, id string, meta UploadMeta) (Document, error) {
	meta, err := meta.normalize("", true)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.Repo.UpdateMeta(ctx, userID, id, MetaUpdate{
		Title:       meta.Title,
		Description: meta.Description,
		Category:    meta.Category,
	})
	if err != nil {
		return Document{}, err
	}
	s.index(ctx, doc)
	return doc, nil
}

// Open returns the document and a reader over its stored file.
func (s *Service) Open(ctx context.Context, userID, id string) (Document, io.ReadCloser, error) {
	doc, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return Document{}, nil, err
	}
	body, err := s.Store.Open(ctx, doc.FilePath)
	if err != nil {
		return Document{}, nil, fmt.Errorf("open object %s: %w", doc.FilePath, err)
	}
	return doc, body, nil
}

// ByCategory lists one category of the user's documents.
func (s *Service) ByCategory(ctx context.Context, userID, category string, page, limit int) ([]Document, int, error) {
	if !IsValidCategory(category) {
		return nil, 0, ErrInvalidCategory
	}
	return s.List(ctx, userID, ListFilter{Category: category, Limit: limit, Offset: util.Offset(page, limit)})
}

// ByStatus lists the user's documents in one processing status.
func (s *Service) ByStatus(ctx context.Context, userID, status string, page, limit int) ([]Document, int, error) {
	if !IsValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	return s.List(ctx, userID, ListFilter{Status: status, Limit: limit, Offset: util.Offset(page, limit)})
}

// Recent lists documents uploaded within the last days.
func (s *Service) Recent(ctx context.Context, userID string, days, limit int) ([]Document, error) {
	since := s.now().AddDate(0, 0, -days)
	docs, _, err := s.List(ctx, userID, ListFilter{Since: &since, Limit: limit})
	return docs, err
}

// Search matches term against title, description and file name. The search
// index is used when configured and the repository otherwise.
func (s *Service) Search(ctx context.Context, userID string, q SearchQuery) ([]Document, int, error) {
	q.Term = strings.TrimSpace(q.Term)
	if len([]rune(q.Term)) < 2 {
		return nil, 0, ErrSearchTerm
	}
	q.UserID = userID
	if s.Index != nil {
		docs, total, err := s.searchIndex(ctx, q)
		if err == nil {
			return docs, total, nil
		}
		telemetry.Warn("search.fallback", map[string]any{"user_id": userID, "error": err.Error()})
	}
	return s.List(ctx, userID, ListFilter{Search: q.Term, Category: q.Category, Limit: q.Limit, Offset: q.Offset})
}

func (s *Service) searchIndex(ctx context.Context, q SearchQuery) ([]Document, int, error) {
	ids, total, err := s.Index.Search(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []Document{}, total, nil
	}
	docs, _, err := s.Repo.List(ctx, ListFilter{UserID: q.UserID, IDs: ids})
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	ordered := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
		}
	}
	return ordered, total, nil
}
