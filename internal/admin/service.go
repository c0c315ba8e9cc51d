package admin

import (
	"context"
	"sort"
	"time"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/storage/object"
	"legaldocs-backend/internal/users"
)

// UserDocuments removes every document a user owns, with their dependents.
type UserDocuments interface {
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// SessionRevoker invalidates every token and refresh session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// SystemProbe reports database, storage and AI reachability.
type SystemProbe interface {
	Components(ctx context.Context) map[string]string
}

// Service answers the admin endpoints. Every read spans all users.
type Service struct {
	Users    *users.Service
	Docs     documents.Repo
	Queries  queries.Repo
	Clauses  clauses.Repo
	Feedback feedback.Repo
	Logs     LogRepo
	Deleter  UserDocuments
	Sessions SessionRevoker
	Store    object.ObjectStore
	Probe    SystemProbe
	AI       llm.Client

	now func() time.Time
}

type Deps struct {
	Users    *users.Service
	Docs     documents.Repo
	Queries  queries.Repo
	Clauses  clauses.Repo
	Feedback feedback.Repo
	Logs     LogRepo
	Deleter  UserDocuments
	Sessions SessionRevoker
	Store    object.ObjectStore
	Probe    SystemProbe
	AI       llm.Client
}

func NewService(d Deps) *Service {
	ai := d.AI
	if ai == nil {
		ai = llm.Unconfigured{}
	}
	return &Service{
		Users:    d.Users,
		Docs:     d.Docs,
		Queries:  d.Queries,
		Clauses:  d.Clauses,
		Feedback: d.Feedback,
		Logs:     d.Logs,
		Deleter:  d.Deleter,
		Sessions: d.Sessions,
		Store:    d.Store,
		Probe:    d.Probe,
		AI:       ai,
		now:      time.Now,
	}
}

func (s *Service) documentsSince(ctx context.Context, w *Window) ([]documents.Document, error) {
	filter := documents.ListFilter{}
	if w != nil {
		filter.Since, filter.Until = &w.Start, &w.End
	}
	docs, _, err := s.Docs.List(ctx, filter)
	return docs, err
}

func (s *Service) queriesSince(ctx context.Context, since *time.Time) ([]queries.Query, error) {
	rows, _, err := s.Queries.List(ctx, queries.ListFilter{Since: since})
	return rows, err
}

func (s *Service) extractionsSince(ctx context.Context, since *time.Time) ([]clauses.Extraction, error) {
	rows, _, err := s.Clauses.List(ctx, clauses.ListFilter{Since: since})
	return rows, err
}

// feedbackSince merges every feedback kind, newest first.
func (s *Service) feedbackSince(ctx context.Context, userID string, since *time.Time) ([]feedback.Feedback, error) {
	var out []feedback.Feedback
	for _, kind := range feedback.Kinds {
		rows, err := s.Feedback.List(ctx, feedback.ListFilter{Kind: kind, UserID: userID, Since: since})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func averageRating(rows []feedback.Feedback) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0
	for _, f := range rows {
		sum += f.Rating
	}
	return float64(sum) / float64(len(rows))
}
