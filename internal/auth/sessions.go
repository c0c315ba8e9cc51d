package auth

import (
	"context"
	"fmt"
	"time"

	sharedauth "legaldocs-backend/internal/shared/auth"
	"legaldocs-backend/internal/users"
)

// Sessions issues access/refresh token pairs and revokes them.
type Sessions struct {
	Issuer     *sharedauth.Issuer
	Store      sharedauth.SessionStore
	RefreshTTL time.Duration
}

type tokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *Sessions) Issue(ctx context.Context, user users.User) (tokenPair, error) {
	token, _, err := s.Issuer.Issue(user.ID, user.Email, user.DisplayName())
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := sharedauth.NewRefreshToken(s.RefreshTTL)
	if err != nil {
		return tokenPair{}, err
	}
	if err := s.Store.SaveRefresh(ctx, sharedauth.HashRefreshToken(refresh.Raw), user.ID, refresh.ExpiresAt); err != nil {
		return tokenPair{}, fmt.Errorf("save refresh session: %w", err)
	}
	return tokenPair{
		Token:        token,
		RefreshToken: refresh.Raw,
		ExpiresIn:    int64(s.Issuer.TTL().Seconds()),
	}, nil
}

// Rotate consumes a refresh token and returns the owning user id.
func (s *Sessions) Rotate(ctx context.Context, raw string) (string, error) {
	hash := sharedauth.HashRefreshToken(raw)
	userID, err := s.Store.LookupRefresh(ctx, hash)
	if err != nil {
		return "", err
	}
	if err := s.Store.RevokeRefresh(ctx, hash); err != nil {
		return "", err
	}
	return userID, nil
}

// RevokeAll drops every refresh session and invalidates access tokens issued so far.
func (s *Sessions) RevokeAll(ctx context.Context, userID string) error {
	return s.Store.RevokeUser(ctx, userID, time.Now().UTC(), s.Issuer.TTL())
}
