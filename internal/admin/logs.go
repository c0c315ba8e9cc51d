package admin

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"legaldocs-backend/internal/shared/server/middleware"
)

// LogEntry is a persisted admin audit record.
type LogEntry struct {
	ID string `json:"id"`
	middleware.AuditEntry
}

type LogFilter struct {
	Since   *time.Time
	AdminID string
	// FailedOnly keeps entries whose response was not successful.
	FailedOnly bool
	Limit      int
}

// LogRepo stores the audit trail written by middleware.AdminAudit.
type LogRepo interface {
	RecordAdminAction(ctx context.Context, entry middleware.AuditEntry) error
	// List returns matching entries newest first.
	List(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

type MemoryLogRepo struct {
	mu      sync.RWMutex
	entries []LogEntry
}

func NewMemoryLogRepo() *MemoryLogRepo {
	return &MemoryLogRepo{}
}

func (r *MemoryLogRepo) RecordAdminAction(ctx context.Context, entry middleware.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, LogEntry{ID: uuid.NewString(), AuditEntry: entry})
	return nil
}

func (r *MemoryLogRepo) List(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]LogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.AdminID != "" && e.AdminID != filter.AdminID {
			continue
		}
		if filter.FailedOnly && e.ResponseSuccess {
			continue
		}
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type PGLogRepo struct {
	DB *sql.DB
}

const logColumns = `id, admin_id, action, endpoint, method, ip_address, user_agent, request_body, response_status, response_success, created_at`

func (r *PGLogRepo) RecordAdminAction(ctx context.Context, entry middleware.AuditEntry) error {
	const query = `
INSERT INTO admin_logs (` + logColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query, uuid.NewString(), entry.AdminID, entry.Action, entry.Endpoint, entry.Method,
		entry.IPAddress, entry.UserAgent, entry.RequestBody, entry.ResponseStatus, entry.ResponseSuccess, entry.CreatedAt)
	return err
}

func (r *PGLogRepo) List(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.AdminID != "" {
		args = append(args, filter.AdminID)
		where = append(where, fmt.Sprintf("admin_id = $%d", len(args)))
	}
	if filter.FailedOnly {
		where = append(where, "response_success = false")
	}
	query := `SELECT ` + logColumns + ` FROM admin_logs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.Endpoint, &e.Method, &e.IPAddress, &e.UserAgent,
			&e.RequestBody, &e.ResponseStatus, &e.ResponseSuccess, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var (
	_ LogRepo = (*PGLogRepo)(nil)
	_ LogRepo = (*MemoryLogRepo)(nil)
)
