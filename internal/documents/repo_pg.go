package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"legaldocs-backend/internal/shared/util"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, title, description, category, file_name, file_path, file_url, file_size,
file_type, file_extension, upload_status, processing_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var processingError sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.Description,
		&doc.Category,
		&doc.FileName,
		&doc.FilePath,
		&doc.FileURL,
		&doc.FileSize,
		&doc.FileType,
		&doc.FileExtension,
		&doc.UploadStatus,
		&processingError,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.ProcessingError = processingError.String
	return doc, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    title,
    description,
    category,
    file_name,
    file_path,
    file_url,
    file_size,
    file_type,
    file_extension,
    upload_status,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.Description,
		doc.Category,
		doc.FileName,
		doc.FilePath,
		doc.FileURL,
		doc.FileSize,
		doc.FileType,
		doc.FileExtension,
		doc.UploadStatus,
		doc.CreatedAt,
	)
	return err
}

func (r *PGRepo) Get(ctx context.Context, userID, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND user_id = $2 LIMIT 1`
	return r.getOne(ctx, query, id, userID)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 LIMIT 1`, id)
}

func (r *PGRepo) getOne(ctx context.Context, query string, args ...any) (Document, error) {
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns matching documents and the total count before paging.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	where, args := filter.sqlWhere()

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY created_at %s, id %s`, documentColumns, where, order, order)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
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
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Status != "" {
		add("upload_status = $%d", f.Status)
	}
	if f.Since != nil {
		add("created_at >= $%d", f.Since.UTC())
	}
	if f.Until != nil {
		add("created_at <= $%d", f.Until.UTC())
	}
	if len(f.IDs) > 0 {
		add("id = ANY($%d)", f.IDs)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, util.ContainsPattern(s))
		n := len(args)
		where = append(where, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\' OR file_name ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	return strings.Join(where, " AND "), args
}

func (r *PGRepo) UpdateMeta(ctx context.Context, userID, id string, upd MetaUpdate) (Document, error) {
	query := `
UPDATE documents SET title = $3, description = $4, category = $5, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + documentColumns
	return r.getOne(ctx, query, id, userID, upd.Title, upd.Description, upd.Category)
}

func (r *PGRepo) SetStatus(ctx context.Context, id string, upd StatusUpdate) error {
	const query = `
UPDATE documents SET
  upload_status = $2,
  processing_error = $3,
  extracted_text = COALESCE($4, extracted_text),
  updated_at = now()
WHERE id = $1`
	var text sql.NullString
	if upd.Text != nil {
		text = sql.NullString{String: *upd.Text, Valid: true}
	}
	var procErr sql.NullString
	if upd.Error != "" {
		procErr = sql.NullString{String: upd.Error, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, id, upd.Status, procErr, text)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PGRepo) ExtractedText(ctx context.Context, id string) (string, error) {
	var text sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT extracted_text FROM documents WHERE id = $1`, id).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return text.String, nil
}

// Delete removes the document row only; dependent rows are handled by the
// deletion cascade.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
