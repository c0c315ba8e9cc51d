package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
)

// Submission is the user input shared by the three submit operations.
type Submission struct {
	Rating       int
	Feedback     string
	FeedbackType string
	Aspect       string
	Accuracy     *int
	Relevance    *int
	Completeness *int
}

// QueryResult is returned by SubmitQuery.
type QueryResult struct {
	FeedbackID   string    `json:"feedback_id"`
	QueryID      string    `json:"query_id"`
	Rating       int       `json:"rating"`
	Feedback     string    `json:"feedback"`
	FeedbackType string    `json:"feedback_type"`
	AIAnalysis   Analysis  `json:"ai_analysis"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type ClauseMetrics struct {
	Accuracy     *int `json:"accuracy"`
	Relevance    *int `json:"relevance"`
	Completeness *int `json:"completeness"`
}

type ClauseResult struct {
	FeedbackID  string        `json:"feedback_id"`
	ClauseID    string        `json:"clause_id"`
	Rating      int           `json:"rating"`
	Feedback    *string       `json:"feedback"`
	Metrics     ClauseMetrics `json:"metrics"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

type DocumentResult struct {
	FeedbackID    string    `json:"feedback_id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	Rating        int       `json:"rating"`
	Feedback      *string   `json:"feedback"`
	Aspect        string    `json:"aspect"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Service struct {
	Repo    Repo
	Queries queries.Repo
	Clauses clauses.Repo
	Docs    documents.Repo
	AI      llm.Client
	now     func() time.Time
}

func NewService(repo Repo, q queries.Repo, c clauses.Repo, docs documents.Repo, ai llm.Client) *Service {
	if ai == nil {
		ai = llm.Unconfigured{}
	}
	return &Service{Repo: repo, Queries: q, Clauses: c, Docs: docs, AI: ai, now: time.Now}
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return invalid("Rating must be between 1 and 5")
	}
	return nil
}

func validateScore(name string, v *int) error {
	if v != nil && (*v < 1 || *v > 5) {
		return invalid(name + " must be between 1 and 5")
	}
	return nil
}

// SubmitQuery records feedback on a query answer and has the model read it.
// Input is validated before anything is written.
func (s *Service) SubmitQuery(ctx context.Context, userID, queryID string, in Submission) (QueryResult, error) {
	if err := validateRating(in.Rating); err != nil {
		return QueryResult{}, err
	}
	text := strings.TrimSpace(in.Feedback)
	if len([]rune(text)) < minQueryFeedbackLen {
		return QueryResult{}, invalid("Feedback must be at least 10 characters long")
	}
	kind := strings.TrimSpace(in.FeedbackType)
	if kind == "" {
		kind = DefaultFeedbackType
	}
	q, err := s.Queries.Get(ctx, userID, queryID)
	if err != nil {
		return QueryResult{}, err
	}

	f := Feedback{
		ID:           uuid.NewString(),
		Kind:         KindQueries,
		TargetID:     q.ID,
		UserID:       userID,
		Rating:       in.Rating,
		Feedback:     text,
		FeedbackType: kind,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, f); err != nil {
		return QueryResult{}, fmt.Errorf("save query feedback: %w", err)
	}

	analysis := s.analyze(ctx, q, in.Rating, text)
	if raw, err := json.Marshal(analysis); err == nil {
		if err := s.Repo.SetAnalysis(ctx, f.ID, raw); err != nil {
			telemetry.Warn("feedback.analysis_persist_failed", map[string]any{"feedback_id": f.ID, "error": err.Error()})
		}
	}
	return QueryResult{
		FeedbackID:   f.ID,
		QueryID:      q.ID,
		Rating:       f.Rating,
		Feedback:     f.Feedback,
		FeedbackType: f.FeedbackType,
		AIAnalysis:   analysis,
		SubmittedAt:  f.CreatedAt,
	}, nil
}

// analyze never fails: an unparseable reply falls back to a sentiment
// derived from the rating and a failed call to a neutral reading.
func (s *Service) analyze(ctx context.Context, q queries.Query, rating int, text string) Analysis {
	raw, err := s.AI.Generate(ctx, llm.FeedbackAnalysisPrompt(q.Question, q.Answer, rating, text))
	if errors.Is(err, llm.ErrEmptyReply) {
		raw, err = "", nil
	}
	if err != nil {
		telemetry.Warn("feedback.analysis_failed", map[string]any{"query_id": q.ID, "error": err.Error()})
		return Analysis{Sentiment: "neutral", KeyIssues: []string{}, ImprovementAreas: []string{}, Suggestions: []string{}, Confidence: 0.3}
	}
	var m modelAnalysis
	if err := llm.DecodeJSON(raw, &m); err != nil {
		return Analysis{Sentiment: sentimentFor(rating), KeyIssues: []string{}, ImprovementAreas: []string{}, Suggestions: []string{}, Confidence: 0.5}
	}
	return m.normalize(rating)
}

type modelAnalysis struct {
	Sentiment        string   `json:"sentiment"`
	KeyIssues        []string `json:"key_issues"`
	ImprovementAreas []string `json:"improvement_areas"`
	Suggestions      []string `json:"suggestions"`
	Confidence       *float64 `json:"confidence"`
}

// normalize fills what the model left out and clamps confidence to [0,1].
func (m modelAnalysis) normalize(rating int) Analysis {
	a := Analysis{
		Sentiment:        strings.ToLower(strings.TrimSpace(m.Sentiment)),
		KeyIssues:        orEmpty(m.KeyIssues),
		ImprovementAreas: orEmpty(m.ImprovementAreas),
		Suggestions:      orEmpty(m.Suggestions),
		Confidence:       0.5,
	}
	switch a.Sentiment {
	case "positive", "negative", "neutral":
	default:
		a.Sentiment = sentimentFor(rating)
	}
	if m.Confidence != nil {
		a.Confidence = min(max(*m.Confidence, 0), 1)
	}
	return a
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sentimentFor(rating int) string {
	switch {
	case rating >= 4:
		return "positive"
	case rating <= 2:
		return "negative"
	default:
		return "neutral"
	}
}

// SubmitClause records feedback on a clause extraction.
func (s *Service) SubmitClause(ctx context.Context, userID, clauseID string, in Submission) (ClauseResult, error) {
	if err := validateRating(in.Rating); err != nil {
		return ClauseResult{}, err
	}
	scores := []struct {
		name  string
		value *int
	}{{"Accuracy", in.Accuracy}, {"Relevance", in.Relevance}, {"Completeness", in.Completeness}}
	for _, sc := range scores {
		if err := validateScore(sc.name, sc.value); err != nil {
			return ClauseResult{}, err
		}
	}
	e, err := s.Clauses.Get(ctx, userID, clauseID)
	if err != nil {
		return ClauseResult{}, err
	}
	f := Feedback{
		ID:           uuid.NewString(),
		Kind:         KindClauses,
		TargetID:     e.ID,
		UserID:       userID,
		Rating:       in.Rating,
		Feedback:     strings.TrimSpace(in.Feedback),
		Accuracy:     in.Accuracy,
		Relevance:    in.Relevance,
		Completeness: in.Completeness,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, f); err != nil {
		return ClauseResult{}, fmt.Errorf("save clause feedback: %w", err)
	}
	return ClauseResult{
		FeedbackID:  f.ID,
		ClauseID:    e.ID,
		Rating:      f.Rating,
		Feedback:    optional(f.Feedback),
		Metrics:     ClauseMetrics{Accuracy: f.Accuracy, Relevance: f.Relevance, Completeness: f.Completeness},
		SubmittedAt: f.CreatedAt,
	}, nil
}

// SubmitDocument records feedback on a document as a whole or one aspect of it.
func (s *Service) SubmitDocument(ctx context.Context, userID, documentID string, in Submission) (DocumentResult, error) {
	if err := validateRating(in.Rating); err != nil {
		return DocumentResult{}, err
	}
	aspect := strings.TrimSpace(in.Aspect)
	if aspect == "" {
		aspect = DefaultAspect
	}
	doc, err := s.Docs.Get(ctx, userID, documentID)
	if err != nil {
		return DocumentResult{}, err
	}
	f := Feedback{
		ID:        uuid.NewString(),
		Kind:      KindDocuments,
		TargetID:  doc.ID,
		UserID:    userID,
		Rating:    in.Rating,
		Feedback:  strings.TrimSpace(in.Feedback),
		Aspect:    aspect,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, f); err != nil {
		return DocumentResult{}, fmt.Errorf("save document feedback: %w", err)
	}
	return DocumentResult{
		FeedbackID:    f.ID,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Rating:        f.Rating,
		Feedback:      optional(f.Feedback),
		Aspect:        f.Aspect,
		SubmittedAt:   f.CreatedAt,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SuggestionReport is returned by Suggestions.
type SuggestionReport struct {
	Type                  string       `json:"type,omitempty"`
	Suggestions           *Suggestions `json:"suggestions"`
	AnalyzedFeedbackCount int          `json:"analyzed_feedback_count"`
	Message               string       `json:"message,omitempty"`
}

var staticSuggestions = Suggestions{
	CommonIssues:          []string{"Response accuracy", "Relevance"},
	ImprovementPriorities: []string{"Better context understanding", "More precise answers"},
	SpecificSuggestions:   []string{"Improve prompt engineering", "Add more training data"},
	SystemRecommendations: []string{"Implement feedback loop", "Regular model updates"},
}

// Suggestions asks the model how to improve based on the user's latest
// low-rated feedback of one kind.
func (s *Service) Suggestions(ctx context.Context, userID, kind string) (SuggestionReport, error) {
	if kind == "" {
		kind = KindQueries
	}
	if !isKind(kind) {
		return SuggestionReport{}, ErrInvalidType
	}
	rows, err := s.Repo.List(ctx, ListFilter{Kind: kind, UserID: userID, MaxRating: lowRatingThreshold, Limit: suggestionSample})
	if err != nil {
		return SuggestionReport{}, err
	}
	if len(rows) == 0 {
		return SuggestionReport{Message: "No low-rated feedback found for analysis"}, nil
	}

	lines := make([]string, 0, len(rows))
	for _, f := range rows {
		text := f.Feedback
		if text == "" {
			text = "No text feedback"
		}
		lines = append(lines, fmt.Sprintf("Rating: %d/5, Feedback: %s", f.Rating, text))
	}
	report := SuggestionReport{Type: kind, AnalyzedFeedbackCount: len(rows)}
	raw, err := s.AI.Generate(ctx, llm.FeedbackSuggestionsPrompt(kind, lines))
	if err != nil {
		telemetry.Warn("feedback.suggestions_failed", map[string]any{"user_id": userID, "error": err.Error()})
		report.Suggestions = &Suggestions{CommonIssues: []string{}, ImprovementPriorities: []string{}, SpecificSuggestions: []string{}, SystemRecommendations: []string{}}
		return report, nil
	}
	var out Suggestions
	if err := llm.DecodeJSON(raw, &out); err != nil {
		fallback := staticSuggestions
		report.Suggestions = &fallback
		return report, nil
	}
	report.Suggestions = &out
	return report, nil
}

// Metrics summarises ratings of one kind.
type Metrics struct {
	Total               int            `json:"total"`
	AverageRating       float64        `json:"average_rating"`
	RatingDistribution  map[string]int `json:"rating_distribution"`
	Trend               string         `json:"trend"`
	AccuracyAverage     *float64       `json:"accuracy_average,omitempty"`
	RelevanceAverage    *float64       `json:"relevance_average,omitempty"`
	CompletenessAverage *float64       `json:"completeness_average,omitempty"`
}

type AnalyticsSummary struct {
	TotalFeedback int     `json:"total_feedback"`
	AverageRating float64 `json:"average_rating"`
}

type Analytics struct {
	PeriodDays int                `json:"period_days"`
	Analytics  map[string]Metrics `json:"analytics"`
	Summary    AnalyticsSummary   `json:"summary"`
}

// Analytics summarises the user's feedback over the last days.
func (s *Service) Analytics(ctx context.Context, userID, kind string, days int) (Analytics, error) {
	if kind == "" {
		kind = KindAll
	}
	if kind != KindAll && !isKind(kind) {
		return Analytics{}, ErrInvalidType
	}
	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)
	out := Analytics{PeriodDays: days, Analytics: map[string]Metrics{}}
	var averages []float64
	for _, k := range Kinds {
		if kind != KindAll && kind != k {
			continue
		}
		rows, err := s.Repo.List(ctx, ListFilter{Kind: k, UserID: userID, Since: &since})
		if err != nil {
			return Analytics{}, err
		}
		m := metricsFor(rows, since, now)
		out.Analytics[k] = m
		out.Summary.TotalFeedback += m.Total
		if m.AverageRating > 0 {
			averages = append(averages, m.AverageRating)
		}
	}
	if len(averages) > 0 {
		var sum float64
		for _, a := range averages {
			sum += a
		}
		out.Summary.AverageRating = util.Round(sum/float64(len(averages)), 2)
	}
	return out, nil
}

const trendThreshold = 0.25

// metricsFor computes rating metrics. The trend compares the mean rating of
// the newer half of the window against the older half.
func metricsFor(rows []Feedback, since, now time.Time) Metrics {
	m := Metrics{
		Total:              len(rows),
		RatingDistribution: util.Breakdown(rows, func(f Feedback) string { return fmt.Sprint(f.Rating) }, "1", "2", "3", "4", "5"),
		Trend:              "stable",
	}
	if len(rows) == 0 {
		return m
	}
	mid := since.Add(now.Sub(since) / 2)
	var sum, older, newer float64
	var nOlder, nNewer int
	for _, f := range rows {
		sum += float64(f.Rating)
		if f.CreatedAt.Before(mid) {
			older += float64(f.Rating)
			nOlder++
		} else {
			newer += float64(f.Rating)
			nNewer++
		}
	}
	m.AverageRating = util.Round(sum/float64(len(rows)), 2)
	if nOlder > 0 && nNewer > 0 {
		switch diff := newer/float64(nNewer) - older/float64(nOlder); {
		case diff > trendThreshold:
			m.Trend = "improving"
		case diff < -trendThreshold:
			m.Trend = "declining"
		}
	}
	if rows[0].Kind == KindClauses {
		m.AccuracyAverage = averageOf(rows, func(f Feedback) *int { return f.Accuracy })
		m.RelevanceAverage = averageOf(rows, func(f Feedback) *int { return f.Relevance })
		m.CompletenessAverage = averageOf(rows, func(f Feedback) *int { return f.Completeness })
	}
	return m
}

// averageOf averages the scores that were given, or returns zero when none were.
func averageOf(rows []Feedback, score func(Feedback) *int) *float64 {
	var sum, n int
	for _, f := range rows {
		if v := score(f); v != nil {
			sum += *v
			n++
		}
	}
	avg := 0.0
	if n > 0 {
		avg = util.Round(float64(sum)/float64(n), 2)
	}
	return &avg
}
