package feedback

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Feedback
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Feedback)}
}

func (r *MemoryRepo) Create(ctx context.Context, f Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isKind(f.Kind) {
		return ErrInvalidType
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[f.ID] = f
	return nil
}

func (r *MemoryRepo) SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok || f.Kind != KindQueries {
		return ErrNotFound
	}
	f.AIAnalysis = analysis
	r.rows[id] = f
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isKind(filter.Kind) {
		return nil, ErrInvalidType
	}
	r.mu.RLock()
	out := make([]Feedback, 0)
	for _, f := range r.rows {
		switch {
		case f.Kind != filter.Kind:
		case filter.UserID != "" && f.UserID != filter.UserID:
		case filter.Since != nil && f.CreatedAt.Before(*filter.Since):
		case filter.MaxRating > 0 && f.Rating > filter.MaxRating:
		default:
			out = append(out, f)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) DeleteByTargets(ctx context.Context, kind string, targetIDs []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	targets := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		targets[id] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, f := range r.rows {
		if f.Kind != kind {
			continue
		}
		if _, ok := targets[f.TargetID]; ok {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
