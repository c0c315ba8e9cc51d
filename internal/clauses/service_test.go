package clauses

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
)

const clauseReply = "```json\n" + `{"clauses":[{"id":"c1","type":"legal","title":"Governing Law","text":"This lease is governed by Ohio law."},{"id":"c2","type":"contractual","title":"Rent","text":"Rent is due monthly."}],"metadata":{"total_clauses":2}}` + "\n```"

func seedDocument(t *testing.T, docs *documents.MemoryRepo, id, userID, mime, status, text string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := docs.Create(ctx, documents.Document{
		ID: id, UserID: userID, Title: "Lease", Category: "legal", FileName: "lease.pdf", FileType: mime,
		UploadStatus: documents.StatusPending, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
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

func TestExtractStoresParsedClauses(t *testing.T) {
	svc, repo, docs, ai := newTestService(t, clauseReply)
	seedDocument(t, docs, "doc-1", "user-1", "application/pdf", documents.StatusCompleted, strings.Repeat("x", 9000))

	res, err := svc.Extract(context.Background(), "user-1", "doc-1", Request{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.ExtractionMetadata.TotalClauses != 2 || res.ExtractionMetadata.ClauseTypes != "all" || res.ExtractionID == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(ai.Prompts[0], strings.Repeat("x", 8000)+" ...") || strings.Contains(ai.Prompts[0], strings.Repeat("x", 8001)) {
		t.Fatalf("prompt did not truncate document text")
	}

	stored, err := repo.Get(context.Background(), "user-1", *res.ExtractionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.ExtractionStatus != StatusCompleted || len(stored.clauses()) != 2 {
		t.Fatalf("unexpected stored extraction %+v", stored)
	}
}

func TestExtractUnparseableReplyIsStoredAsFailed(t *testing.T) {
	svc, _, docs, _ := newTestService(t, "I could not find clauses.")
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")

	res, err := svc.Extract(context.Background(), "user-1", "doc-1", Request{ClauseTypes: "legal"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Clauses, &body); err != nil || body["error"] != "Could not parse response" {
		t.Fatalf("unexpected clauses %s", res.Clauses)
	}
	if res.ExtractionMetadata.TotalClauses != 0 {
		t.Fatalf("expected no clauses, got %d", res.ExtractionMetadata.TotalClauses)
	}
	st, err := svc.Statistics(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.TotalClauses != 1 || st.StatusBreakdown[StatusFailed] != 1 || st.SuccessRate != "0.0" || st.TypeBreakdown["legal"] != 1 {
		t.Fatalf("unexpected statistics %+v", st)
	}
}

func TestExtractRejectsBeforeCallingModel(t *testing.T) {
	svc, _, docs, ai := newTestService(t, clauseReply)
	seedDocument(t, docs, "busy", "user-1", "application/pdf", documents.StatusPending, "")
	seedDocument(t, docs, "doc", "user-1", "application/msword", documents.StatusCompleted, "")
	seedDocument(t, docs, "blank", "user-1", "text/plain", documents.StatusCompleted, "")

	cases := map[string]error{
		"missing": documents.ErrNotFound,
		"busy":    ErrNotReady,
		"doc":     ErrUnsupportedType,
		"blank":   ErrNoText,
	}
	for id, want := range cases {
		if _, err := svc.Extract(context.Background(), "user-1", id, Request{}); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", id, want, err)
		}
	}
	if ai.Calls() != 0 {
		t.Fatalf("model called %d times", ai.Calls())
	}
}

func TestAnalyze(t *testing.T) {
	svc, repo, _, ai := newTestService(t, `{"analysis":{"summary":"Ohio law applies","risks":[]}}`)
	ctx := context.Background()
	if err := repo.Create(ctx, Extraction{ID: "ex-1", DocumentID: "doc-1", UserID: "user-1", ClauseTypes: "all",
		ExtractedData: json.RawMessage(`{"clauses":[]}`), ExtractionStatus: StatusCompleted, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Analyze(ctx, "user-1", "ex-1", "poetic"); !errors.Is(err, ErrInvalidAnalysisType) {
		t.Fatalf("expected ErrInvalidAnalysisType, got %v", err)
	}
	if _, err := svc.Analyze(ctx, "user-2", "ex-1", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	res, err := svc.Analyze(ctx, "user-1", "ex-1", "risk")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisType != "risk" || !strings.Contains(string(res.Analysis), "Ohio law applies") {
		t.Fatalf("unexpected analysis %+v", res)
	}
	if !strings.Contains(ai.Prompts[0], "\"clauses\": []") {
		t.Fatalf("prompt missing indented clause data: %q", ai.Prompts[0])
	}
}

func TestSearch(t *testing.T) {
	svc, _, docs, _ := newTestService(t, clauseReply)
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")
	ctx := context.Background()
	if _, err := svc.Extract(ctx, "user-1", "doc-1", Request{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if _, _, err := svc.Search(ctx, "user-1", " g ", ListFilter{}); !errors.Is(err, ErrSearchTerm) {
		t.Fatalf("expected ErrSearchTerm, got %v", err)
	}
	hits, total, err := svc.Search(ctx, "user-1", "ohio", ListFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || hits[0].DocumentTitle != "Lease" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if _, total, _ := svc.Search(ctx, "user-1", "arbitration", ListFilter{}); total != 0 {
		t.Fatalf("expected no hits, got %d", total)
	}
	if _, total, _ := svc.Search(ctx, "user-2", "ohio", ListFilter{}); total != 0 {
		t.Fatalf("search leaked another user's clauses")
	}
}

func TestEmptyReplyFallsBack(t *testing.T) {
	svc, repo, docs, _ := newTestService(t)
	ctx := context.Background()
	seedDocument(t, docs, "doc-1", "user-1", "text/plain", documents.StatusCompleted, "body")

	res, err := svc.Extract(ctx, "user-1", "doc-1", Request{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Clauses, &body); err != nil || body["error"] != "Could not parse response" {
		t.Fatalf("unexpected clauses %s", res.Clauses)
	}
	stored, err := repo.Get(ctx, "user-1", *res.ExtractionID)
	if err != nil || stored.ExtractionStatus != StatusFailed {
		t.Fatalf("unexpected stored extraction %+v err=%v", stored, err)
	}

	an, err := svc.Analyze(ctx, "user-1", stored.ID, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(string(an.Analysis), "Could not parse analysis response") {
		t.Fatalf("unexpected analysis %s", an.Analysis)
	}
}
