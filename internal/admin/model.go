package admin

import (
	"strconv"
	"strings"
	"time"

	"legaldocs-backend/internal/users"
)

const (
	ActionSuspendUser    = "suspend_user"
	ActionActivateUser   = "activate_user"
	ActionDeleteUser     = "delete_user"
	ActionResetPassword  = "reset_user_password"
	ActionCleanupOrphans = "cleanup_orphaned_files"

	GranularityDaily  = "daily"
	GranularityWeekly = "weekly"

	dayLayout      = "2006-01-02"
	topUsersLimit  = 10
	recentActivity = 5
	liveWindow     = time.Hour
	liveSample     = 50
	errorAlertMin  = 10
)

// Actions lists the accepted POST /admin/actions values.
var Actions = []string{ActionSuspendUser, ActionActivateUser, ActionDeleteUser, ActionResetPassword, ActionCleanupOrphans}

var userSortFields = []string{"created_at", "last_sign_in_at", "email"}

func isAction(a string) bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

// Window is the reporting range of an admin endpoint.
type Window struct {
	Start       time.Time `json:"start_date"`
	End         time.Time `json:"end_date"`
	Days        int       `json:"days"`
	Granularity string    `json:"granularity,omitempty"`
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// parsePeriod reads "<n>d" and falls back to def unless n is in allowed.
func parsePeriod(raw string, def int, allowed ...int) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "d"))
	if err != nil {
		return def
	}
	for _, a := range allowed {
		if a == n {
			return n
		}
	}
	return def
}

func windowFor(now time.Time, days int) Window {
	end := now.UTC()
	return Window{Start: end.AddDate(0, 0, -days), End: end, Days: days}
}

// Action is one POST /admin/actions request.
type Action struct {
	Action   string `json:"action"`
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

// ActionResult echoes the request with what was done.
type ActionResult struct {
	Action            string  `json:"action"`
	TargetID          *string `json:"target_id"`
	Reason            *string `json:"reason"`
	AdminID           string  `json:"admin_id"`
	Status            string  `json:"status,omitempty"`
	DocumentsDeleted  *int    `json:"documents_deleted,omitempty"`
	TemporaryPassword string  `json:"temporary_password,omitempty"`
	FilesScanned      *int    `json:"files_scanned,omitempty"`
	OrphanedFiles     *int    `json:"orphaned_files,omitempty"`
	FilesDeleted      *int    `json:"files_deleted,omitempty"`
	FilesFailed       *int    `json:"files_failed,omitempty"`
	PerformedAt       string  `json:"performed_at"`
}

// UserStats are the per-user activity counters shown in admin listings.
type UserStats struct {
	TotalDocuments int       `json:"total_documents"`
	TotalQueries   int       `json:"total_queries"`
	TotalClauses   int       `json:"total_clauses"`
	TotalFeedback  int       `json:"total_feedback"`
	LastActivity   *Activity `json:"last_activity"`
}

type Activity struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

// UserSummary is a user row of the admin listing.
type UserSummary struct {
	users.AdminView
	AvatarURL   *string   `json:"avatar_url"`
	IsActive    bool      `json:"is_active"`
	IsConfirmed bool      `json:"is_confirmed"`
	Stats       UserStats `json:"stats"`
}

func summaryOf(u users.User, stats UserStats) UserSummary {
	var avatar *string
	if u.AvatarURL != "" {
		avatar = &u.AvatarURL
	}
	return UserSummary{
		AdminView:   u.AdminView(),
		AvatarURL:   avatar,
		IsActive:    u.Status == users.StatusActive,
		IsConfirmed: u.EmailConfirmedAt != nil,
		Stats:       stats,
	}
}

// Series is one chart: labels and values share an index.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func intPtr(n int) *int { return &n }
