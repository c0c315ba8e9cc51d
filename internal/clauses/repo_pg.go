package clauses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"legaldocs-backend/internal/shared/util"
)

type PGRepo struct {
	DB *sql.DB
}

const extractionColumns = `id, document_id, user_id, clause_types, language, extracted_data, extraction_status, created_at`

// clauseElements expands extracted_data.clauses, treating a missing or
// non-array value as empty.
const clauseElements = `jsonb_array_elements(CASE WHEN jsonb_typeof(extracted_data->'clauses') = 'array' THEN extracted_data->'clauses' ELSE '[]'::jsonb END)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (Extraction, error) {
	var e Extraction
	var raw []byte
	if err := row.Scan(&e.ID, &e.DocumentID, &e.UserID, &e.ClauseTypes, &e.Language, &raw, &e.ExtractionStatus, &e.CreatedAt); err != nil {
		return Extraction{}, err
	}
	e.ExtractedData = raw
	return e, nil
}

func (r *PGRepo) Create(ctx context.Context, e Extraction) error {
	const query = `
INSERT INTO document_clauses (id, document_id, user_id, clause_types, language, extracted_data, extraction_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query, e.ID, e.DocumentID, e.UserID, e.ClauseTypes, e.Language,
		[]byte(e.ExtractedData), e.ExtractionStatus, e.CreatedAt)
	return err
}

func (r *PGRepo) Get(ctx context.Context, userID, id string) (Extraction, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+extractionColumns+` FROM document_clauses WHERE id = $1 AND user_id = $2`, id, userID)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Extraction{}, ErrNotFound
	}
	return e, err
}

func (f ListFilter) sqlWhere() (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.DocumentID != "" {
		add("document_id = $%d", f.DocumentID)
	}
	if f.ClauseTypes != "" {
		add("clause_types = $%d", f.ClauseTypes)
	}
	if f.Since != nil {
		add("created_at >= $%d", f.Since.UTC())
	}
	if f.Search != "" {
		args = append(args, util.ContainsPattern(f.Search))
		n := len(args)
		where = append(where, fmt.Sprintf(`EXISTS (SELECT 1 FROM %s c WHERE c->>'title' ILIKE $%d ESCAPE '\' OR c->>'text' ILIKE $%d ESCAPE '\')`, clauseElements, n, n))
	}
	return strings.Join(where, " AND "), args
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Extraction, int, error) {
	clause, args := filter.sqlWhere()

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM document_clauses WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + extractionColumns + ` FROM document_clauses WHERE ` + clause + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Extraction{}
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) Tally(ctx context.Context, userID string) ([]Tally, error) {
	query := `SELECT clause_types, extraction_status, count(*) FROM document_clauses`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY clause_types, extraction_status`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Tally{}
	for rows.Next() {
		var t Tally
		if err := rows.Scan(&t.ClauseTypes, &t.Status, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM document_clauses WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Repo = (*PGRepo)(nil)
