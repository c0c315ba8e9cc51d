package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RefreshToken is a long-lived opaque token. Only its hash is stored.
type RefreshToken struct {
	Raw       string
	ExpiresAt time.Time
}

// NewRefreshToken returns a random 96-character hex token.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw:       hex.EncodeToString(buf),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// HashRefreshToken returns the SHA-256 hex digest used as the storage key.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
