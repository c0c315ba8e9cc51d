package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateRoutesByKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	four := 4
	mock.ExpectExec("INSERT INTO clause_feedback \\(id, clause_id, user_id, rating, feedback, accuracy, relevance, completeness, created_at\\)").
		WithArgs("f1", "c-1", "user-1", 5, "", 4, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_feedback \\(id, document_id, user_id, rating, feedback, aspect, created_at\\)").
		WithArgs("f2", "doc-1", "user-1", 3, "ok", "overall", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	ctx := context.Background()
	if err := repo.Create(ctx, Feedback{ID: "f1", Kind: KindClauses, TargetID: "c-1", UserID: "user-1", Rating: 5, Accuracy: &four, CreatedAt: now}); err != nil {
		t.Fatalf("Create clause: %v", err)
	}
	if err := repo.Create(ctx, Feedback{ID: "f2", Kind: KindDocuments, TargetID: "doc-1", UserID: "user-1", Rating: 3, Feedback: "ok", Aspect: "overall", CreatedAt: now}); err != nil {
		t.Fatalf("Create document: %v", err)
	}
	if err := repo.Create(ctx, Feedback{Kind: "users"}); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListLowRated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, query_id, user_id, rating, feedback, feedback_type, ai_analysis, created_at FROM query_feedback WHERE 1=1 AND user_id = \\$1 AND rating <= \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3").
		WithArgs("user-1", 3, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query_id", "user_id", "rating", "feedback", "feedback_type", "ai_analysis", "created_at"}).
			AddRow("f1", "q-1", "user-1", 2, "Missed the deposit clause", "general", nil, now))

	rows, err := (&PGRepo{DB: db}).List(context.Background(), ListFilter{Kind: KindQueries, UserID: "user-1", MaxRating: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != KindQueries || rows[0].TargetID != "q-1" || rows[0].AIAnalysis != nil {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
