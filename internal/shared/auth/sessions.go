package auth

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned for unknown or expired refresh sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps refresh sessions and revocation markers.
type SessionStore interface {
	SaveRefresh(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	// RevokeToken blocks a single access token id until it expires.
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUser invalidates every refresh session of the user and every
	// access token issued before at.
	RevokeUser(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	UserRevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
	Ping(ctx context.Context) error
}

// Authenticator verifies access tokens and consults the session store for
// revocations.
type Authenticator struct {
	Issuer   *Issuer
	Sessions SessionStore
}

// Authenticate returns the claims of a valid, non-revoked access token.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Claims, error) {
	claims, err := a.Issuer.Verify(raw)
	if err != nil {
		return Claims{}, err
	}
	if a.Sessions == nil {
		return claims, nil
	}
	revoked, err := a.Sessions.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}
	at, ok, err := a.Sessions.UserRevokedAt(ctx, claims.UserID)
	if err != nil {
		return Claims{}, err
	}
	if ok && claims.IssuedAtMs < at.UnixMilli() {
		return Claims{}, ErrTokenRevoked
	}
	return claims, nil
}
