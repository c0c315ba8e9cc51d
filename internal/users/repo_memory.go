package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.find(ctx, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepo) GetByGoogleSub(ctx context.Context, sub string) (User, error) {
	if sub == "" {
		return User{}, ErrNotFound
	}
	return r.find(ctx, func(u User) bool { return u.GoogleSub == sub })
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) TouchSignIn(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	user.LastSignInAt = &at
	r.users[userID] = user
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]User, 0, len(all))
	for _, u := range all {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.FullName), search) {
			continue
		}
		matched = append(matched, u)
	}

	less := lessFunc(sortColumn(filter.SortBy))
	desc := sortDirection(filter.SortOrder) == "DESC"
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) || less(b, a) {
			return less(a, b)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []User{}, total, nil
	}
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (r *MemoryRepo) All(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func lessFunc(column string) func(a, b User) bool {
	switch column {
	case "email":
		return func(a, b User) bool { return a.Email < b.Email }
	case "username":
		return func(a, b User) bool { return a.Username < b.Username }
	case "last_sign_in_at":
		return func(a, b User) bool {
			return signInUnix(a) < signInUnix(b)
		}
	default:
		return func(a, b User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func signInUnix(u User) int64 {
	if u.LastSignInAt == nil {
		return 0
	}
	return u.LastSignInAt.UnixNano()
}

// sortColumn whitelists the sortable columns; anything else sorts by created_at.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "email", "username", "last_sign_in_at", "created_at":
		return sortBy
	default:
		return "created_at"
	}
}

func sortDirection(order string) string {
	if strings.EqualFold(order, "asc") {
		return "ASC"
	}
	return "DESC"
}

var _ Repo = (*MemoryRepo)(nil)
