package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

// table maps a feedback kind onto its table and target column.
type table struct {
	name   string
	target string
	extra  []string
}

var tables = map[string]table{
	KindQueries:   {name: "query_feedback", target: "query_id", extra: []string{"feedback_type", "ai_analysis"}},
	KindClauses:   {name: "clause_feedback", target: "clause_id", extra: []string{"accuracy", "relevance", "completeness"}},
	KindDocuments: {name: "document_feedback", target: "document_id", extra: []string{"aspect"}},
}

// TableFor returns the table holding feedback of the given kind.
func TableFor(kind string) (string, bool) {
	t, ok := tables[kind]
	return t.name, ok
}

func (t table) columns() string {
	cols := append([]string{"id", t.target, "user_id", "rating", "feedback"}, t.extra...)
	return strings.Join(append(cols, "created_at"), ", ")
}

func (r *PGRepo) Create(ctx context.Context, f Feedback) error {
	t, ok := tables[f.Kind]
	if !ok {
		return ErrInvalidType
	}
	args := []any{f.ID, f.TargetID, f.UserID, f.Rating, f.Feedback}
	switch f.Kind {
	case KindQueries:
		var analysis any
		if len(f.AIAnalysis) > 0 {
			analysis = []byte(f.AIAnalysis)
		}
		args = append(args, f.FeedbackType, analysis)
	case KindClauses:
		args = append(args, f.Accuracy, f.Relevance, f.Completeness)
	case KindDocuments:
		args = append(args, f.Aspect)
	}
	args = append(args, f.CreatedAt)

	marks := make([]string, len(args))
	for i := range args {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, t.columns(), strings.Join(marks, ", "))
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

func (r *PGRepo) SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE query_feedback SET ai_analysis = $2 WHERE id = $1`, id, []byte(analysis))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Feedback, error) {
	t, ok := tables[filter.Kind]
	if !ok {
		return nil, ErrInvalidType
	}
	where := []string{"1=1"}
	args := []any{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.MaxRating > 0 {
		args = append(args, filter.MaxRating)
		where = append(where, fmt.Sprintf("rating <= $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id DESC", t.columns(), t.name, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		f := Feedback{Kind: filter.Kind}
		dest := []any{&f.ID, &f.TargetID, &f.UserID, &f.Rating, &f.Feedback}
		var accuracy, relevance, completeness sql.NullInt32
		var analysis []byte
		switch filter.Kind {
		case KindQueries:
			dest = append(dest, &f.FeedbackType, &analysis)
		case KindClauses:
			dest = append(dest, &accuracy, &relevance, &completeness)
		case KindDocuments:
			dest = append(dest, &f.Aspect)
		}
		dest = append(dest, &f.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		f.Accuracy = intPtr(accuracy)
		f.Relevance = intPtr(relevance)
		f.Completeness = intPtr(completeness)
		if len(analysis) > 0 {
			f.AIAnalysis = analysis
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func intPtr(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func (r *PGRepo) DeleteByTargets(ctx context.Context, kind string, targetIDs []string) (int, error) {
	t, ok := tables[kind]
	if !ok {
		return 0, ErrInvalidType
	}
	if len(targetIDs) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)", t.name, t.target), targetIDs)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Repo = (*PGRepo)(nil)
