package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"legaldocs-backend/internal/shared/util"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, username, full_name, avatar_url, password_hash, google_sub, role, status,
email_confirmed_at, last_sign_in_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var avatarURL, passwordHash, googleSub sql.NullString
	var confirmedAt, lastSignIn sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FullName,
		&avatarURL,
		&passwordHash,
		&googleSub,
		&user.Role,
		&user.Status,
		&confirmedAt,
		&lastSignIn,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	user.AvatarURL = avatarURL.String
	user.PasswordHash = passwordHash.String
	user.GoogleSub = googleSub.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		user.EmailConfirmedAt = &t
	}
	if lastSignIn.Valid {
		t := lastSignIn.Time
		user.LastSignInAt = &t
	}
	return user, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, username, full_name, avatar_url, password_hash, google_sub, role, status,
  email_confirmed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		nullableString(user.AvatarURL),
		nullableString(user.PasswordHash),
		nullableString(user.GoogleSub),
		user.Role,
		user.Status,
		nullableTime(user.EmailConfirmedAt),
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) LIMIT 1`, email)
}

func (r *PGRepo) GetByGoogleSub(ctx context.Context, sub string) (User, error) {
	if sub == "" {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1 LIMIT 1`, sub)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users SET
  username = $2,
  full_name = $3,
  avatar_url = $4,
  password_hash = $5,
  google_sub = $6,
  role = $7,
  status = $8,
  email_confirmed_at = $9,
  updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FullName,
		nullableString(user.AvatarURL),
		nullableString(user.PasswordHash),
		nullableString(user.GoogleSub),
		user.Role,
		user.Status,
		nullableTime(user.EmailConfirmedAt),
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PGRepo) TouchSignIn(ctx context.Context, userID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET last_sign_in_at = $2 WHERE id = $1`, userID, at.UTC())
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, util.ContainsPattern(s))
		n := len(args)
		where = append(where, fmt.Sprintf(`(email ILIKE $%d ESCAPE '\' OR username ILIKE $%d ESCAPE '\' OR full_name ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, filter.Limit, offset)
	dir := sortDirection(filter.SortOrder)
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s %s NULLS LAST, id %s LIMIT $%d OFFSET $%d`,
		userColumns, clause, sortColumn(filter.SortBy), dir, dir, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collect(rows)
	return out, total, err
}

func (r *PGRepo) All(ctx context.Context) ([]User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]User, error) {
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ Repo = (*PGRepo)(nil)
