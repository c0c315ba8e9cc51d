package clauses

import (
	"context"
	"time"
)

// ListFilter selects extractions. Search matches the title or text of any
// extracted clause, case-insensitively.
type ListFilter struct {
	UserID      string
	DocumentID  string
	ClauseTypes string
	Search      string
	Since       *time.Time
	Limit       int
	Offset      int
}

type Repo interface {
	Create(ctx context.Context, e Extraction) error
	// Get returns an extraction only when it belongs to userID.
	Get(ctx context.Context, userID, id string) (Extraction, error)
	List(ctx context.Context, filter ListFilter) ([]Extraction, int, error)
	// Tally groups the user's extractions by clause types and status. An empty
	// userID tallies every user.
	Tally(ctx context.Context, userID string) ([]Tally, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}
