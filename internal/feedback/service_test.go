package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/queries"
)

type fixture struct {
	svc     *Service
	repo    *MemoryRepo
	queries *queries.MemoryRepo
	clauses *clauses.MemoryRepo
	docs    *documents.MemoryRepo
	ai      *llm.Scripted
}

func newFixture(t *testing.T, replies ...string) fixture {
	t.Helper()
	f := fixture{
		repo:    NewMemoryRepo(),
		queries: queries.NewMemoryRepo(),
		clauses: clauses.NewMemoryRepo(),
		docs:    documents.NewMemoryRepo(),
		ai:      &llm.Scripted{Replies: replies},
	}
	f.svc = NewService(f.repo, f.queries, f.clauses, f.docs, f.ai)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := f.docs.Create(ctx, documents.Document{ID: "doc-1", UserID: "user-1", Title: "Lease", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := f.queries.Create(ctx, queries.Query{ID: "q-1", DocumentID: "doc-1", UserID: "user-1", Question: "Rent?", Answer: "$1,000", CreatedAt: now}); err != nil {
		t.Fatalf("create query: %v", err)
	}
	if err := f.clauses.Create(ctx, clauses.Extraction{ID: "c-1", DocumentID: "doc-1", UserID: "user-1", ExtractedData: []byte(`{}`), CreatedAt: now}); err != nil {
		t.Fatalf("create clause: %v", err)
	}
	return f
}

func (f fixture) count(t *testing.T, kind string) int {
	t.Helper()
	rows, err := f.repo.List(context.Background(), ListFilter{Kind: kind})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return len(rows)
}

func TestSubmitQueryValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		id string
		in Submission
		ok func(error) bool
	}{
		{"q-1", Submission{Rating: 0, Feedback: "long enough text"}, func(err error) bool { return errors.Is(err, ErrValidation) }},
		{"q-1", Submission{Rating: 6, Feedback: "long enough text"}, func(err error) bool { return errors.Is(err, ErrValidation) }},
		{"q-1", Submission{Rating: 3, Feedback: "too short"}, func(err error) bool { return errors.Is(err, ErrValidation) }},
		{"q-9", Submission{Rating: 3, Feedback: "long enough text"}, func(err error) bool { return errors.Is(err, queries.ErrNotFound) }},
	}
	for _, tc := range cases {
		if _, err := f.svc.SubmitQuery(context.Background(), "user-1", tc.id, tc.in); !tc.ok(err) {
			t.Fatalf("%+v: unexpected error %v", tc.in, err)
		}
	}
	if n := f.count(t, KindQueries); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}
	if f.ai.Calls() != 0 {
		t.Fatalf("model called %d times", f.ai.Calls())
	}
}

func TestSubmitQueryAnalysis(t *testing.T) {
	cases := []struct {
		name      string
		reply     string
		err       error
		noReply   bool
		rating    int
		sentiment string
		conf      float64
	}{
		{name: "parsed", reply: `{"sentiment":"negative","key_issues":["vague"],"confidence":0.9}`, rating: 2, sentiment: "negative", conf: 0.9},
		{name: "unparseable high", reply: "great", rating: 5, sentiment: "positive", conf: 0.5},
		{name: "unparseable low", reply: "bad", rating: 1, sentiment: "negative", conf: 0.5},
		{name: "unparseable mid", reply: "meh", rating: 3, sentiment: "neutral", conf: 0.5},
		{name: "clamped and filled", reply: `{"sentiment":"Glowing","confidence":3}`, rating: 4, sentiment: "positive", conf: 1},
		{name: "missing confidence", reply: `{"sentiment":"neutral"}`, rating: 1, sentiment: "neutral", conf: 0.5},
		{name: "empty reply", noReply: true, rating: 2, sentiment: "negative", conf: 0.5},
		{name: "model error", err: errors.New("quota"), rating: 5, sentiment: "neutral", conf: 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.reply)
			f.ai.Err = tc.err
			if tc.noReply {
				f.ai.Replies = nil
			}
			res, err := f.svc.SubmitQuery(context.Background(), "user-1", "q-1", Submission{Rating: tc.rating, Feedback: "  The answer missed the deposit.  "})
			if err != nil {
				t.Fatalf("SubmitQuery: %v", err)
			}
			if res.AIAnalysis.Sentiment != tc.sentiment || res.AIAnalysis.Confidence != tc.conf {
				t.Fatalf("unexpected analysis %+v", res.AIAnalysis)
			}
			if a := res.AIAnalysis; a.KeyIssues == nil || a.ImprovementAreas == nil || a.Suggestions == nil {
				t.Fatalf("expected empty slices, got %+v", a)
			}
			if res.Feedback != "The answer missed the deposit." || res.FeedbackType != DefaultFeedbackType {
				t.Fatalf("unexpected result %+v", res)
			}
			rows, _ := f.repo.List(context.Background(), ListFilter{Kind: KindQueries})
			if len(rows) != 1 || len(rows[0].AIAnalysis) == 0 {
				t.Fatalf("analysis not stored: %+v", rows)
			}
		})
	}
}

func TestSubmitClauseAndDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := 9
	if _, err := f.svc.SubmitClause(ctx, "user-1", "c-1", Submission{Rating: 4, Accuracy: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.SubmitClause(ctx, "user-2", "c-1", Submission{Rating: 4}); !errors.Is(err, clauses.ErrNotFound) {
		t.Fatalf("expected clause not found, got %v", err)
	}
	acc := 4
	res, err := f.svc.SubmitClause(ctx, "user-1", "c-1", Submission{Rating: 4, Accuracy: &acc})
	if err != nil {
		t.Fatalf("SubmitClause: %v", err)
	}
	if res.Feedback != nil || *res.Metrics.Accuracy != 4 || res.Metrics.Relevance != nil {
		t.Fatalf("unexpected clause result %+v", res)
	}

	doc, err := f.svc.SubmitDocument(ctx, "user-1", "doc-1", Submission{Rating: 5, Feedback: "Useful"})
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if doc.Aspect != DefaultAspect || doc.DocumentTitle != "Lease" || *doc.Feedback != "Useful" {
		t.Fatalf("unexpected document result %+v", doc)
	}
	if _, err := f.svc.SubmitDocument(ctx, "user-1", "doc-9", Submission{Rating: 5}); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected document not found, got %v", err)
	}
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	ctx := context.Background()
	three, five := 3, 5
	rows := []Feedback{
		{ID: "1", Kind: KindQueries, TargetID: "q-1", UserID: "user-1", Rating: 2, CreatedAt: now.AddDate(0, 0, -25)},
		{ID: "2", Kind: KindQueries, TargetID: "q-1", UserID: "user-1", Rating: 5, CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "3", Kind: KindQueries, TargetID: "q-1", UserID: "user-1", Rating: 1, CreatedAt: now.AddDate(0, 0, -45)},
		{ID: "4", Kind: KindClauses, TargetID: "c-1", UserID: "user-1", Rating: 4, Accuracy: &three, CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "5", Kind: KindClauses, TargetID: "c-1", UserID: "user-1", Rating: 4, Accuracy: &five, CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "6", Kind: KindDocuments, TargetID: "doc-1", UserID: "user-2", Rating: 1, CreatedAt: now},
	}
	for _, r := range rows {
		if err := f.repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	res, err := f.svc.Analytics(ctx, "user-1", "", 30)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	q := res.Analytics[KindQueries]
	if q.Total != 2 || q.AverageRating != 3.5 || q.Trend != "improving" || q.RatingDistribution["2"] != 1 || q.RatingDistribution["3"] != 0 {
		t.Fatalf("unexpected query metrics %+v", q)
	}
	c := res.Analytics[KindClauses]
	if c.Total != 2 || *c.AccuracyAverage != 4 || *c.RelevanceAverage != 0 {
		t.Fatalf("unexpected clause metrics %+v", c)
	}
	if res.Analytics[KindDocuments].Total != 0 {
		t.Fatalf("analytics leaked another user's feedback")
	}
	if res.Summary.TotalFeedback != 4 || res.Summary.AverageRating != 3.75 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}

	if _, err := f.svc.Analytics(ctx, "user-1", "bogus", 30); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	only, _ := f.svc.Analytics(ctx, "user-1", KindClauses, 30)
	if len(only.Analytics) != 1 {
		t.Fatalf("expected only clauses, got %+v", only.Analytics)
	}
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t, "no json here")
	ctx := context.Background()

	empty, err := f.svc.Suggestions(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if empty.Suggestions != nil || empty.Message != "No low-rated feedback found for analysis" {
		t.Fatalf("unexpected empty report %+v", empty)
	}

	for i, rating := range []int{2, 5} {
		if err := f.repo.Create(ctx, Feedback{ID: string(rune('a' + i)), Kind: KindQueries, TargetID: "q-1", UserID: "user-1", Rating: rating, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	report, err := f.svc.Suggestions(ctx, "user-1", KindQueries)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if report.AnalyzedFeedbackCount != 1 || report.Suggestions.CommonIssues[0] != "Response accuracy" {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := f.svc.Suggestions(ctx, "user-1", "users"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}
