package clauses

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Extraction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Extraction)}
}

func (r *MemoryRepo) Create(ctx context.Context, e Extraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[e.ID] = e
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rows[id]
	if !ok || e.UserID != userID {
		return Extraction{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Extraction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	out := make([]Extraction, 0)
	for _, e := range r.rows {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := len(out)
	if filter.Offset >= total {
		return []Extraction{}, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f ListFilter) matches(e Extraction) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.DocumentID != "" && e.DocumentID != f.DocumentID {
		return false
	}
	if f.ClauseTypes != "" && e.ClauseTypes != f.ClauseTypes {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	for _, c := range e.clauses() {
		if strings.Contains(strings.ToLower(c.Title), term) || strings.Contains(strings.ToLower(c.Text), term) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) Tally(ctx context.Context, userID string) ([]Tally, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[[2]string]int{}
	for _, e := range r.rows {
		if userID != "" && e.UserID != userID {
			continue
		}
		counts[[2]string{e.ClauseTypes, e.ExtractionStatus}]++
	}
	out := make([]Tally, 0, len(counts))
	for k, n := range counts {
		out = append(out, Tally{ClauseTypes: k[0], Status: k[1], Count: n})
	}
	return out, nil
}

func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.rows {
		if e.DocumentID == documentID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
