package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]Document
	text map[string]string
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs: make(map[string]Document),
		text: make(map[string]string),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Document, error) {
	doc, err := r.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// List returns matching documents newest first unless filter.Ascending is set.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		if filter.matches(doc) {
			matched = append(matched, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.Ascending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := len(matched)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Document{}, total, nil
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], total, nil
}

func (f ListFilter) matches(doc Document) bool {
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	if f.Category != "" && doc.Category != f.Category {
		return false
	}
	if f.Status != "" && doc.UploadStatus != f.Status {
		return false
	}
	if f.Since != nil && doc.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && doc.CreatedAt.After(*f.Until) {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, doc.ID) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(doc.Title), term) &&
			!strings.Contains(strings.ToLower(doc.Description), term) &&
			!strings.Contains(strings.ToLower(doc.FileName), term) {
			return false
		}
	}
	return true
}

func (r *MemoryRepo) UpdateMeta(ctx context.Context, userID, id string, upd MetaUpdate) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	doc.Title = upd.Title
	doc.Description = upd.Description
	doc.Category = upd.Category
	doc.UpdatedAt = r.now()
	r.docs[id] = doc
	return doc, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, upd StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.UploadStatus = upd.Status
	doc.ProcessingError = upd.Error
	doc.UpdatedAt = r.now()
	r.docs[id] = doc
	if upd.Text != nil {
		r.text[id] = *upd.Text
	}
	return nil
}

func (r *MemoryRepo) ExtractedText(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.docs[id]; !ok {
		return "", ErrNotFound
	}
	return r.text[id], nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	delete(r.text, id)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
