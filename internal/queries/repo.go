package queries

import (
	"context"
	"time"
)

// ListFilter selects queries. Empty fields are ignored and a zero Limit
// returns every match.
type ListFilter struct {
	UserID     string
	DocumentID string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Repo persists document queries.
type Repo interface {
	Create(ctx context.Context, q Query) error
	// Get returns a query only when it belongs to userID.
	Get(ctx context.Context, userID, id string) (Query, error)
	List(ctx context.Context, filter ListFilter) ([]Query, int, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}
