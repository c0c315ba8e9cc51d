package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func sessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"redis":  NewRedisSessionStore(client),
	}
}

func TestSessionStoreRefreshLifecycle(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := time.Now().Add(time.Hour)
			if err := store.SaveRefresh(ctx, "hash-1", "user-1", exp); err != nil {
				t.Fatalf("save: %v", err)
			}
			userID, err := store.LookupRefresh(ctx, "hash-1")
			if err != nil || userID != "user-1" {
				t.Fatalf("lookup: %q %v", userID, err)
			}
			if err := store.RevokeRefresh(ctx, "hash-1"); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if _, err := store.LookupRefresh(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestSessionStoreRevokeUser(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := time.Now().Add(time.Hour)
			_ = store.SaveRefresh(ctx, "a", "user-1", exp)
			_ = store.SaveRefresh(ctx, "b", "user-1", exp)
			_ = store.SaveRefresh(ctx, "c", "user-2", exp)

			at := time.Now()
			if err := store.RevokeUser(ctx, "user-1", at, time.Hour); err != nil {
				t.Fatalf("revoke user: %v", err)
			}
			for _, h := range []string{"a", "b"} {
				if _, err := store.LookupRefresh(ctx, h); !errors.Is(err, ErrSessionNotFound) {
					t.Fatalf("expected %s revoked, got %v", h, err)
				}
			}
			if _, err := store.LookupRefresh(ctx, "c"); err != nil {
				t.Fatalf("expected other user's session intact: %v", err)
			}
			got, ok, err := store.UserRevokedAt(ctx, "user-1")
			if err != nil || !ok || got.UnixMilli() != at.UnixMilli() {
				t.Fatalf("unexpected revoked-at %v %v %v", got, ok, err)
			}
		})
	}
}

func TestSessionStoreTokenRevocation(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if revoked, _ := store.IsTokenRevoked(ctx, "jti-1"); revoked {
				t.Fatalf("expected token not revoked")
			}
			if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("revoke token: %v", err)
			}
			revoked, err := store.IsTokenRevoked(ctx, "jti-1")
			if err != nil || !revoked {
				t.Fatalf("expected revoked, got %v %v", revoked, err)
			}
		})
	}
}
