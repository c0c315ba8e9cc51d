package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

const queryColumns = `id, document_id, user_id, question, answer, context, language, confidence, details, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (Query, error) {
	var q Query
	var raw []byte
	if err := row.Scan(&q.ID, &q.DocumentID, &q.UserID, &q.Question, &q.Answer, &q.Context, &q.Language,
		&q.Confidence, &raw, &q.CreatedAt); err != nil {
		return Query{}, err
	}
	if len(raw) > 0 {
		var d details
		if err := json.Unmarshal(raw, &d); err != nil {
			return Query{}, fmt.Errorf("decode query details: %w", err)
		}
		q.applyDetails(d)
	}
	return q, nil
}

func (r *PGRepo) Create(ctx context.Context, q Query) error {
	const query = `
INSERT INTO document_queries (id, document_id, user_id, question, answer, context, language, confidence, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	raw, err := json.Marshal(q.details())
	if err != nil {
		return fmt.Errorf("encode query details: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, q.ID, q.DocumentID, q.UserID, q.Question, q.Answer, q.Context,
		q.Language, q.Confidence, raw, q.CreatedAt)
	return err
}

func (r *PGRepo) Get(ctx context.Context, userID, id string) (Query, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM document_queries WHERE id = $1 AND user_id = $2`, id, userID)
	q, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Query{}, ErrNotFound
	}
	return q, err
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Query, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM document_queries WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + queryColumns + ` FROM document_queries WHERE ` + clause + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM document_queries WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Repo = (*PGRepo)(nil)
