package auth

import (
	"context"
	"sync"
	"time"
)

type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu          sync.Mutex
	refresh     map[string]refreshEntry
	revoked     map[string]time.Time
	userRevoked map[string]time.Time
	now         func() time.Time
}

// NewMemorySessionStore constructs an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		refresh:     make(map[string]refreshEntry),
		revoked:     make(map[string]time.Time),
		userRevoked: make(map[string]time.Time),
		now:         time.Now,
	}
}

func (s *MemorySessionStore) SaveRefresh(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.refresh[tokenHash] = refreshEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemorySessionStore) LookupRefresh(ctx context.Context, tokenHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.refresh[tokenHash]
	if !ok || !entry.expiresAt.After(s.now()) {
		delete(s.refresh, tokenHash)
		return "", ErrSessionNotFound
	}
	return entry.userID, nil
}

func (s *MemorySessionStore) RevokeRefresh(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenHash)
	return nil
}

func (s *MemorySessionStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemorySessionStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) RevokeUser(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, entry := range s.refresh {
		if entry.userID == userID {
			delete(s.refresh, hash)
		}
	}
	s.userRevoked[userID] = at
	return nil
}

func (s *MemorySessionStore) UserRevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.userRevoked[userID]
	return at, ok, nil
}

func (s *MemorySessionStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemorySessionStore) sweepLocked() {
	now := s.now()
	for hash, entry := range s.refresh {
		if !entry.expiresAt.After(now) {
			delete(s.refresh, hash)
		}
	}
	for jti, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, jti)
		}
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)
