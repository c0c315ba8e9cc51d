package queries

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Query
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Query)}
}

func (r *MemoryRepo) Create(ctx context.Context, q Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[q.ID] = q
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Query, error) {
	if err := ctx.Err(); err != nil {
		return Query{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.rows[id]
	if !ok || q.UserID != userID {
		return Query{}, ErrNotFound
	}
	return q, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Query, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	out := make([]Query, 0)
	for _, q := range r.rows {
		if filter.UserID != "" && q.UserID != filter.UserID {
			continue
		}
		if filter.DocumentID != "" && q.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Since != nil && q.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, q)
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
		return []Query{}, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, q := range r.rows {
		if q.DocumentID == documentID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
