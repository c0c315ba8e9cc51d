package deletion

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/storage/db"
)

// Cascade removes a document row together with every row that references
// it. It returns documents.ErrNotFound when the document row is missing.
type Cascade interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

// PGCascade deletes inside one transaction so a failure leaves every row in place.
type PGCascade struct {
	DB *sql.DB
}

var cascadeStatements = []string{
	`DELETE FROM query_feedback WHERE query_id IN (SELECT id FROM document_queries WHERE document_id = $1)`,
	`DELETE FROM clause_feedback WHERE clause_id IN (SELECT id FROM document_clauses WHERE document_id = $1)`,
	`DELETE FROM document_feedback WHERE document_id = $1`,
	`DELETE FROM document_queries WHERE document_id = $1`,
	`DELETE FROM document_clauses WHERE document_id = $1`,
}

func (c *PGCascade) DeleteDocument(ctx context.Context, documentID string) error {
	return db.WithTx(ctx, c.DB, func(tx *sql.Tx) error {
		for _, stmt := range cascadeStatements {
			if _, err := tx.ExecContext(ctx, stmt, documentID); err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return documents.ErrNotFound
		}
		return nil
	})
}

// MemoryCascade walks the in-memory repositories in the same order as
// PGCascade. Calls are serialised but not atomic.
type MemoryCascade struct {
	mu       sync.Mutex
	Docs     documents.Repo
	Queries  queries.Repo
	Clauses  clauses.Repo
	Feedback feedback.Repo
}

func (c *MemoryCascade) DeleteDocument(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.Docs.GetByID(ctx, documentID); err != nil {
		return err
	}

	qs, _, err := c.Queries.List(ctx, queries.ListFilter{DocumentID: documentID})
	if err != nil {
		return err
	}
	queryIDs := make([]string, 0, len(qs))
	for _, q := range qs {
		queryIDs = append(queryIDs, q.ID)
	}
	cs, _, err := c.Clauses.List(ctx, clauses.ListFilter{DocumentID: documentID})
	if err != nil {
		return err
	}
	clauseIDs := make([]string, 0, len(cs))
	for _, e := range cs {
		clauseIDs = append(clauseIDs, e.ID)
	}

	steps := []func() error{
		func() error { _, err := c.Feedback.DeleteByTargets(ctx, feedback.KindQueries, queryIDs); return err },
		func() error { _, err := c.Feedback.DeleteByTargets(ctx, feedback.KindClauses, clauseIDs); return err },
		func() error {
			_, err := c.Feedback.DeleteByTargets(ctx, feedback.KindDocuments, []string{documentID})
			return err
		},
		func() error { _, err := c.Queries.DeleteByDocument(ctx, documentID); return err },
		func() error { _, err := c.Clauses.DeleteByDocument(ctx, documentID); return err },
		func() error { return c.Docs.Delete(ctx, documentID) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}
	return nil
}

var (
	_ Cascade = (*PGCascade)(nil)
	_ Cascade = (*MemoryCascade)(nil)
)
