package documents

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepoListPagesTiedTimestamps(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"doc-c", "doc-a", "doc-e", "doc-b", "doc-d"} {
		if err := repo.Create(ctx, Document{ID: id, UserID: "user-1", Title: id, CreatedAt: at, UpdatedAt: at}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	var seen []string
	for offset := 0; offset < 5; offset += 2 {
		page, total, err := repo.List(ctx, ListFilter{UserID: "user-1", Limit: 2, Offset: offset})
		if err != nil || total != 5 {
			t.Fatalf("List offset=%d: total=%d err=%v", offset, total, err)
		}
		for _, d := range page {
			seen = append(seen, d.ID)
		}
	}
	want := []string{"doc-e", "doc-d", "doc-c", "doc-b", "doc-a"}
	if len(seen) != len(want) {
		t.Fatalf("pages = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("pages = %v, want %v", seen, want)
		}
	}

	asc, _, _ := repo.List(ctx, ListFilter{UserID: "user-1", Ascending: true, Limit: 1})
	if len(asc) != 1 || asc[0].ID != "doc-a" {
		t.Fatalf("ascending first = %+v", asc)
	}
}

func TestMemoryRepoSearchIsLiteral(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	for id, title := range map[string]string{"doc-1": "50% deposit", "doc-2": "500 deposit"} {
		if err := repo.Create(ctx, Document{ID: id, UserID: "user-1", Title: title, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	docs, total, err := repo.List(ctx, ListFilter{UserID: "user-1", Search: "50%"})
	if err != nil || total != 1 || docs[0].ID != "doc-1" {
		t.Fatalf("search 50%%: total=%d docs=%+v err=%v", total, docs, err)
	}
}
