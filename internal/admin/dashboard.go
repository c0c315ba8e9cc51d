package admin

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
	"legaldocs-backend/internal/users"
)

type Dashboard struct {
	Period      Window         `json:"period"`
	Overview    map[string]any `json:"overview"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type groupError struct {
	Error string `json:"error"`
}

// Dashboard loads the seven overview groups concurrently. A group that fails
// is replaced by {error} and the others still complete.
func (s *Service) Dashboard(ctx context.Context, days int) Dashboard {
	w := windowFor(s.now(), days)
	groups := map[string]func(context.Context, Window) (any, error){
		"users":     s.userMetrics,
		"documents": s.documentMetrics,
		"queries":   s.queryMetrics,
		"clauses":   s.clauseMetrics,
		"feedback":  s.feedbackMetrics,
		"storage":   s.storageMetrics,
		"system":    s.systemMetrics,
	}

	var (
		mu       sync.Mutex
		overview = make(map[string]any, len(groups))
		g        errgroup.Group
	)
	for name, load := range groups {
		g.Go(func() error {
			v, err := load(ctx, w)
			if err != nil {
				telemetry.Error("admin.dashboard_group_failed", map[string]any{"group": name, "error": err.Error()})
				v = groupError{Error: "Failed to load " + name + " metrics"}
			}
			mu.Lock()
			overview[name] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Dashboard{Period: w, Overview: overview, GeneratedAt: s.now().UTC()}
}

type userMetrics struct {
	TotalUsers     int `json:"total_users"`
	NewUsers       int `json:"new_users"`
	ActiveUsers    int `json:"active_users"`
	SuspendedUsers int `json:"suspended_users"`
}

func (s *Service) userMetrics(ctx context.Context, w Window) (any, error) {
	all, err := s.Users.All(ctx)
	if err != nil {
		return nil, err
	}
	m := userMetrics{TotalUsers: len(all)}
	for _, u := range all {
		if w.Contains(u.CreatedAt) {
			m.NewUsers++
		}
		if u.LastSignInAt != nil && !u.LastSignInAt.Before(w.Start) {
			m.ActiveUsers++
		}
		if u.Status == users.StatusSuspended {
			m.SuspendedUsers++
		}
	}
	return m, nil
}

type documentMetrics struct {
	TotalDocuments  int            `json:"total_documents"`
	NewDocuments    int            `json:"new_documents"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}

func (s *Service) documentMetrics(ctx context.Context, w Window) (any, error) {
	_, total, err := s.Docs.List(ctx, documents.ListFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	recent, err := s.documentsSince(ctx, &w)
	if err != nil {
		return nil, err
	}
	return documentMetrics{
		TotalDocuments:  total,
		NewDocuments:    len(recent),
		StatusBreakdown: util.Breakdown(recent, func(d documents.Document) string { return d.UploadStatus }),
	}, nil
}

type queryMetrics struct {
	TotalQueries int `json:"total_queries"`
	NewQueries   int `json:"new_queries"`
}

func (s *Service) queryMetrics(ctx context.Context, w Window) (any, error) {
	_, total, err := s.Queries.List(ctx, queries.ListFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	_, recent, err := s.Queries.List(ctx, queries.ListFilter{Since: &w.Start, Limit: 1})
	if err != nil {
		return nil, err
	}
	return queryMetrics{TotalQueries: total, NewQueries: recent}, nil
}

type clauseMetrics struct {
	TotalClauses int `json:"total_clauses"`
	NewClauses   int `json:"new_clauses"`
}

func (s *Service) clauseMetrics(ctx context.Context, w Window) (any, error) {
	_, total, err := s.Clauses.List(ctx, clauses.ListFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	_, recent, err := s.Clauses.List(ctx, clauses.ListFilter{Since: &w.Start, Limit: 1})
	if err != nil {
		return nil, err
	}
	return clauseMetrics{TotalClauses: total, NewClauses: recent}, nil
}

type feedbackMetrics struct {
	TotalFeedback int     `json:"total_feedback"`
	NewFeedback   int     `json:"new_feedback"`
	AverageRating float64 `json:"average_rating"`
}

// feedbackMetrics covers query feedback, the rating users give to answers.
func (s *Service) feedbackMetrics(ctx context.Context, w Window) (any, error) {
	all, err := s.Feedback.List(ctx, feedback.ListFilter{Kind: feedback.KindQueries})
	if err != nil {
		return nil, err
	}
	var recent []feedback.Feedback
	for _, f := range all {
		if !f.CreatedAt.Before(w.Start) {
			recent = append(recent, f)
		}
	}
	return feedbackMetrics{
		TotalFeedback: len(all),
		NewFeedback:   len(recent),
		AverageRating: util.Round(averageRating(recent), 2),
	}, nil
}

type storageMetrics struct {
	TotalStorageBytes        int64   `json:"total_storage_bytes"`
	TotalStorageFormatted    string  `json:"total_storage_formatted"`
	TotalFiles               int     `json:"total_files"`
	AverageFileSize          float64 `json:"average_file_size"`
	AverageFileSizeFormatted string  `json:"average_file_size_formatted"`
}

func (s *Service) storageMetrics(ctx context.Context, _ Window) (any, error) {
	all, err := s.documentsSince(ctx, nil)
	if err != nil {
		return nil, err
	}
	total := util.SumBy(all, func(d documents.Document) int64 { return d.FileSize })
	avg := 0.0
	if len(all) > 0 {
		avg = float64(total) / float64(len(all))
	}
	return storageMetrics{
		TotalStorageBytes:        total,
		TotalStorageFormatted:    util.FormatFileSize(float64(total)),
		TotalFiles:               len(all),
		AverageFileSize:          util.Round(avg, 2),
		AverageFileSizeFormatted: util.FormatFileSize(avg),
	}, nil
}

func (s *Service) systemMetrics(ctx context.Context, _ Window) (any, error) {
	if s.Probe == nil {
		return map[string]string{"overall": "unknown"}, nil
	}
	c := s.Probe.Components(ctx)
	return map[string]string{
		"database_status": c["database"],
		"storage_status":  c["storage"],
		"ai_status":       c["ai"],
		"overall_status":  c["overall"],
	}, nil
}
