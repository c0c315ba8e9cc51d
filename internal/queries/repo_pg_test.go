package queries

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoRoundTripsDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO document_queries").
		WithArgs("q1", "doc-1", "user-1", "What?", "This.", "general", "en", 0.8,
			[]byte(`{"sources":null,"key_points":["a"],"follow_up_questions":null,"summary":"s"}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM document_queries WHERE id = \\$1 AND user_id = \\$2").
		WithArgs("q1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "user_id", "question", "answer", "context", "language", "confidence", "details", "created_at"}).
			AddRow("q1", "doc-1", "user-1", "What?", "This.", "general", "en", 0.8, []byte(`{"key_points":["a"],"summary":"s"}`), now))
	mock.ExpectQuery("FROM document_queries WHERE id = \\$1 AND user_id = \\$2").
		WithArgs("q1", "user-2").
		WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	ctx := context.Background()
	q := Query{ID: "q1", DocumentID: "doc-1", UserID: "user-1", Question: "What?", Answer: "This.", Context: "general",
		Language: "en", Confidence: 0.8, KeyPoints: []string{"a"}, Summary: "s", CreatedAt: now}
	if err := repo.Create(ctx, q); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(ctx, "user-1", "q1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Summary != "s" || len(got.KeyPoints) != 1 {
		t.Fatalf("details not decoded: %+v", got)
	}
	if _, err := repo.Get(ctx, "user-2", "q1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM document_queries WHERE 1=1 AND user_id = \\$1 AND document_id = \\$2").
		WithArgs("user-1", "doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("user-1", "doc-1", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "user_id", "question", "answer", "context", "language", "confidence", "details", "created_at"}).
			AddRow("q3", "doc-1", "user-1", "Q", "A", "general", "en", 0.8, []byte(`{}`), time.Now()))

	rows, total, err := (&PGRepo{DB: db}).List(context.Background(), ListFilter{UserID: "user-1", DocumentID: "doc-1", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(rows) != 1 || rows[0].ID != "q3" {
		t.Fatalf("unexpected rows %+v total=%d", rows, total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
