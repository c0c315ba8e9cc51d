package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps sessions in Redis so every API instance sees the
// same revocations.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func (s *RedisSessionStore) refreshKey(hash string) string { return s.prefix + "refresh:" + hash }
func (s *RedisSessionStore) userSetKey(id string) string   { return s.prefix + "user:" + id }
func (s *RedisSessionStore) revokedKey(jti string) string  { return s.prefix + "revoked:" + jti }
func (s *RedisSessionStore) userRevokedKey(id string) string {
	return s.prefix + "user_revoked:" + id
}

func (s *RedisSessionStore) SaveRefresh(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save refresh session: already expired")
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.refreshKey(tokenHash), userID, ttl)
	pipe.SAdd(ctx, s.userSetKey(userID), tokenHash)
	pipe.Expire(ctx, s.userSetKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) LookupRefresh(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.client.Get(ctx, s.refreshKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup refresh session: %w", err)
	}
	return userID, nil
}

func (s *RedisSessionStore) RevokeRefresh(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.refreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) RevokeUser(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	hashes, err := s.client.SMembers(ctx, s.userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user sessions: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, s.refreshKey(h))
	}
	pipe.Del(ctx, s.userSetKey(userID))
	pipe.Set(ctx, s.userRevokedKey(userID), strconv.FormatInt(at.UnixMilli(), 10), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) UserRevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.userRevokedKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("lookup user revocation: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ SessionStore = (*RedisSessionStore)(nil)
