package admin

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/util"
	"legaldocs-backend/internal/users"
)

const statsConcurrency = 4

// UserFilters echoes the normalized listing filters.
type UserFilters struct {
	Status    *string `json:"status"`
	Search    *string `json:"search"`
	SortBy    string  `json:"sortBy"`
	SortOrder string  `json:"sortOrder"`
}

// NormalizeUserFilter applies the listing defaults and allowed sort fields.
func NormalizeUserFilter(f users.ListFilter) (users.ListFilter, UserFilters) {
	f.Status = strings.TrimSpace(f.Status)
	f.Search = strings.TrimSpace(f.Search)
	sortBy := "created_at"
	for _, v := range userSortFields {
		if v == f.SortBy {
			sortBy = v
		}
	}
	order := "desc"
	if strings.EqualFold(strings.TrimSpace(f.SortOrder), "asc") {
		order = "asc"
	}
	f.SortBy, f.SortOrder = sortBy, order
	return f, UserFilters{
		Status:    optionalString(f.Status),
		Search:    optionalString(f.Search),
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
	}
}

// ListUsers pages users and attaches activity counters to each row.
func (s *Service) ListUsers(ctx context.Context, filter users.ListFilter) ([]UserSummary, int, error) {
	rows, total, err := s.Users.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]UserSummary, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, u := range rows {
		g.Go(func() error {
			stats, err := s.userStats(gctx, u.ID)
			if err != nil {
				return err
			}
			out[i] = summaryOf(u, stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) userStats(ctx context.Context, userID string) (UserStats, error) {
	docs, docTotal, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID, Limit: 1})
	if err != nil {
		return UserStats{}, err
	}
	qs, queryTotal, err := s.Queries.List(ctx, queries.ListFilter{UserID: userID, Limit: 1})
	if err != nil {
		return UserStats{}, err
	}
	cs, clauseTotal, err := s.Clauses.List(ctx, clauses.ListFilter{UserID: userID, Limit: 1})
	if err != nil {
		return UserStats{}, err
	}
	fb, err := s.feedbackSince(ctx, userID, nil)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{
		TotalDocuments: docTotal,
		TotalQueries:   queryTotal,
		TotalClauses:   clauseTotal,
		TotalFeedback:  len(fb),
		LastActivity:   lastActivity(docs, qs, cs, fb),
	}, nil
}

// lastActivity picks the newest timestamp across the given rows.
func lastActivity(docs []documents.Document, qs []queries.Query, cs []clauses.Extraction, fb []feedback.Feedback) *Activity {
	var latest *Activity
	consider := func(kind string, at time.Time) {
		if latest == nil || at.After(latest.Date) {
			latest = &Activity{Type: kind, Date: at}
		}
	}
	for _, d := range docs {
		consider("document", d.CreatedAt)
	}
	for _, q := range qs {
		consider("query", q.CreatedAt)
	}
	for _, c := range cs {
		consider("clause", c.CreatedAt)
	}
	for _, f := range fb {
		consider("feedback", f.CreatedAt)
	}
	return latest
}

type UserDetail struct {
	User           UserSummary    `json:"user"`
	Statistics     UserStatistics `json:"statistics"`
	RecentActivity RecentActivity `json:"recent_activity"`
}

type UserStatistics struct {
	UserStats
	TotalStorageBytes     int64   `json:"total_storage_bytes"`
	TotalStorageFormatted string  `json:"total_storage_formatted"`
	AverageQueryRating    float64 `json:"average_query_rating"`
}

type RecentActivity struct {
	Documents []documents.Document `json:"documents"`
	Queries   []queries.Query      `json:"queries"`
	Clauses   []clauses.Extraction `json:"clauses"`
	Feedback  []feedback.Feedback  `json:"feedback"`
}

// UserDetail returns one user with totals and the latest rows of each kind.
func (s *Service) UserDetail(ctx context.Context, userID string) (UserDetail, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return UserDetail{}, err
	}
	docs, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID})
	if err != nil {
		return UserDetail{}, err
	}
	qs, queryTotal, err := s.Queries.List(ctx, queries.ListFilter{UserID: userID, Limit: recentActivity})
	if err != nil {
		return UserDetail{}, err
	}
	cs, clauseTotal, err := s.Clauses.List(ctx, clauses.ListFilter{UserID: userID, Limit: recentActivity})
	if err != nil {
		return UserDetail{}, err
	}
	fb, err := s.feedbackSince(ctx, userID, nil)
	if err != nil {
		return UserDetail{}, err
	}
	queryFeedback := make([]feedback.Feedback, 0, len(fb))
	for _, f := range fb {
		if f.Kind == feedback.KindQueries {
			queryFeedback = append(queryFeedback, f)
		}
	}

	storage := util.SumBy(docs, func(d documents.Document) int64 { return d.FileSize })
	stats := UserStats{
		TotalDocuments: len(docs),
		TotalQueries:   queryTotal,
		TotalClauses:   clauseTotal,
		TotalFeedback:  len(fb),
		LastActivity:   lastActivity(docs, qs, cs, fb),
	}
	return UserDetail{
		User: summaryOf(u, stats),
		Statistics: UserStatistics{
			UserStats:             stats,
			TotalStorageBytes:     storage,
			TotalStorageFormatted: util.FormatFileSize(float64(storage)),
			AverageQueryRating:    util.Round(averageRating(queryFeedback), 2),
		},
		RecentActivity: RecentActivity{
			Documents: head(docs, recentActivity),
			Queries:   qs,
			Clauses:   cs,
			Feedback:  head(fb, recentActivity),
		},
	}, nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}
