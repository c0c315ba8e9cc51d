package search

import (
	"encoding/json"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"legaldocs-backend/internal/documents"
)

func TestFilterScopesToUser(t *testing.T) {
	got := filterFor(documents.SearchQuery{UserID: "user-1", Category: "legal"})
	if len(got) != 2 || got[0] != `user_id = "user-1"` || got[1] != `category = "legal"` {
		t.Fatalf("unexpected filters %v", got)
	}
	req := searchRequest(documents.SearchQuery{UserID: "user-1", Offset: 20})
	if req.Limit != 10 || req.Offset != 20 {
		t.Fatalf("unexpected paging %d/%d", req.Limit, req.Offset)
	}
}

func TestRecordFrom(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := recordFrom(documents.Document{ID: "d1", UserID: "u1", Title: "Lease", FileName: "lease.pdf", CreatedAt: created})
	if rec.ID != "d1" || rec.UserID != "u1" || rec.CreatedAt != created.Unix() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHitIDsSkipsMalformed(t *testing.T) {
	hits := []meili.Hit{
		{"id": json.RawMessage(`"d1"`)},
		{"id": json.RawMessage(`42`)},
		{"title": json.RawMessage(`"no id"`)},
		{"id": json.RawMessage(`"d2"`)},
	}
	got := hitIDs(hits)
	if len(got) != 2 || got[0] != "d1" || got[1] != "d2" {
		t.Fatalf("unexpected ids %v", got)
	}
}
