package feedback

import (
	"context"
	"encoding/json"
	"time"
)

// ListFilter selects feedback of one kind. MaxRating of zero disables the
// rating bound; an empty UserID spans every user.
type ListFilter struct {
	Kind      string
	UserID    string
	Since     *time.Time
	MaxRating int
	Limit     int
}

type Repo interface {
	Create(ctx context.Context, f Feedback) error
	SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error
	// List returns matching rows newest first.
	List(ctx context.Context, filter ListFilter) ([]Feedback, error)
	DeleteByTargets(ctx context.Context, kind string, targetIDs []string) (int, error)
}
