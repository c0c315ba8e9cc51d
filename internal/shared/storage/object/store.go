package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving binary objects.
// Keys are slash-separated paths chosen by the caller.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// Ping verifies the backing bucket or directory is reachable.
	Ping(ctx context.Context) error
}
