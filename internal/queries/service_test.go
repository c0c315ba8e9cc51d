package queries

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
)

func seedDocument(t *testing.T, docs *documents.MemoryRepo, id, userID, mime, status, text string) {
	t.Helper()
	ctx := context.Background()
	err := docs.Create(ctx, documents.Document{
		ID:           id,
		UserID:       userID,
		Title:        "Lease",
		Category:     "legal",
		FileName:     "lease.txt",
		FileType:     mime,
		UploadStatus: documents.StatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := docs.SetStatus(ctx, id, documents.StatusUpdate{Status: status, Text: &text}); err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func newTestService(t *testing.T, replies ...string) (*Service, *MemoryRepo, *documents.MemoryRepo, *llm.Scripted) {
	t.Helper()
	docs := documents.NewMemoryRepo()
	repo := NewMemoryRepo()
	ai := &llm.Scripted{Replies: replies}
	return NewService(repo, docs, ai), repo, docs, ai
}

func TestAskParsesModelJSON(t *testing.T) {
	svc, repo, docs, ai := newTestService(t, `Sure: {"answer":"The rent is $1,000.","confidence":0.92,"key_points":["monthly"],"summary":"Rent"}`)
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "Tenant pays $1,000 per month.")

	ans, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "What is the rent?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != "The rent is $1,000." || ans.Confidence != 0.92 || ans.Context != DefaultContext || ans.Language != DefaultLanguage {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if ans.QueryID == nil {
		t.Fatalf("expected persisted query id")
	}
	if ans.Sources == nil || ans.FollowUpQuestions == nil {
		t.Fatalf("expected empty slices, got %+v", ans)
	}
	if !strings.Contains(ai.Prompts[0], "Tenant pays $1,000 per month.") {
		t.Fatalf("prompt missing document text: %q", ai.Prompts[0])
	}
	rows, total, err := repo.List(context.Background(), ListFilter{UserID: "user-1"})
	if err != nil || total != 1 || rows[0].KeyPoints[0] != "monthly" {
		t.Fatalf("unexpected stored rows %+v total=%d err=%v", rows, total, err)
	}
}

func TestAskFallbacks(t *testing.T) {
	long := strings.Repeat("a", 250)
	cases := []struct {
		name    string
		reply   string
		want    float64
		summary string
	}{
		{name: "no json", reply: long, want: 0.7, summary: strings.Repeat("a", 200) + "..."},
		{name: "bad json", reply: `{"answer": oops}`, want: 0.5, summary: `{"answer": oops}...`},
		{name: "missing confidence", reply: `{"answer":"yes"}`, want: 0.8},
		{name: "clamped high", reply: `{"answer":"yes","confidence":4}`, want: 1},
		{name: "clamped low", reply: `{"answer":"yes","confidence":-1}`, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, docs, _ := newTestService(t, tc.reply)
			seedDocument(t, docs, "doc-1", "user-1", "application/pdf", documents.StatusCompleted, "text")
			ans, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "Is it valid?"})
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if ans.Confidence != tc.want {
				t.Fatalf("confidence = %v, want %v", ans.Confidence, tc.want)
			}
			if tc.summary != "" && ans.Summary != tc.summary {
				t.Fatalf("summary = %q, want %q", ans.Summary, tc.summary)
			}
		})
	}
}

func TestAskRejectsBeforeCallingModel(t *testing.T) {
	cases := []struct {
		name     string
		docID    string
		question Question
		want     error
	}{
		{name: "short question", docID: "ready", question: Question{Question: "hi"}, want: ErrQuestionTooShort},
		{name: "bad context", docID: "ready", question: Question{Question: "What?", Context: "poetry"}, want: ErrInvalidContext},
		{name: "missing", docID: "nope", question: Question{Question: "What?"}, want: documents.ErrNotFound},
		{name: "other owner", docID: "foreign", question: Question{Question: "What?"}, want: documents.ErrNotFound},
		{name: "processing", docID: "busy", question: Question{Question: "What?"}, want: ErrNotReady},
		{name: "image", docID: "image", question: Question{Question: "What?"}, want: ErrUnsupportedType},
		{name: "empty text", docID: "empty", question: Question{Question: "What?"}, want: ErrNoText},
	}
	svc, repo, docs, ai := newTestService(t, `{"answer":"x"}`)
	seedDocument(t, docs, "ready", "user-1", "text/plain", documents.StatusCompleted, "body")
	seedDocument(t, docs, "foreign", "user-2", "text/plain", documents.StatusCompleted, "body")
	seedDocument(t, docs, "busy", "user-1", "text/plain", documents.StatusProcessing, "")
	seedDocument(t, docs, "image", "user-1", "image/png", documents.StatusCompleted, "")
	seedDocument(t, docs, "empty", "user-1", "application/pdf", documents.StatusCompleted, "  ")

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Ask(context.Background(), "user-1", tc.docID, tc.question); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if ai.Calls() != 0 {
		t.Fatalf("model called %d times", ai.Calls())
	}
	if _, total, _ := repo.List(context.Background(), ListFilter{}); total != 0 {
		t.Fatalf("expected no stored queries, got %d", total)
	}
}

type failingRepo struct{ *MemoryRepo }

func (failingRepo) Create(context.Context, Query) error { return errors.New("db down") }

func TestAskAnswersWhenPersistFails(t *testing.T) {
	docs := documents.NewMemoryRepo()
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")
	svc := NewService(failingRepo{NewMemoryRepo()}, docs, &llm.Scripted{Replies: []string{`{"answer":"ok"}`}})

	ans, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "Anything?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != "ok" || ans.QueryID != nil {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestAskWrapsModelErrors(t *testing.T) {
	svc, _, docs, ai := newTestService(t)
	ai.Err = errors.New("boom")
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")
	if _, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "Anything?"}); !errors.Is(err, ErrAI) {
		t.Fatalf("expected ErrAI, got %v", err)
	}

	svc = NewService(NewMemoryRepo(), docs, nil)
	if _, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "Anything?"}); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestAllJoinsDocumentTitles(t *testing.T) {
	svc, repo, docs, _ := newTestService(t)
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, q := range []Query{
		{ID: "q1", DocumentID: "doc-1", UserID: "user-1", Question: "first", CreatedAt: base},
		{ID: "q2", DocumentID: "doc-1", UserID: "user-1", Question: "second", CreatedAt: base.Add(time.Hour)},
		{ID: "q3", DocumentID: "doc-1", UserID: "user-2", Question: "other", CreatedAt: base},
	} {
		if err := repo.Create(ctx, q); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	entries, total, err := svc.All(ctx, "user-1", "", 1, 0)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if total != 2 || len(entries) != 1 || entries[0].ID != "q2" || entries[0].DocumentTitle != "Lease" {
		t.Fatalf("unexpected entries %+v total=%d", entries, total)
	}

	if _, _, err := svc.History(ctx, "user-2", "doc-1", 10, 0); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected history to be owner scoped, got %v", err)
	}
}

func TestAskEmptyReplyFallsBack(t *testing.T) {
	svc, repo, docs, ai := newTestService(t)
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "Tenant pays rent.")

	ans, err := svc.Ask(context.Background(), "user-1", "doc-1", Question{Question: "What is the rent?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ai.Calls() != 1 {
		t.Fatalf("model called %d times", ai.Calls())
	}
	if ans.Confidence != 0.7 || ans.Answer != "" || ans.QueryID == nil {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if ans.Sources == nil || ans.KeyPoints == nil {
		t.Fatalf("expected empty slices, got %+v", ans)
	}
	if _, total, _ := repo.List(context.Background(), ListFilter{UserID: "user-1"}); total != 1 {
		t.Fatalf("expected stored query, got %d", total)
	}
}
