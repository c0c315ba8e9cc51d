package users

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"

	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type User struct {
	ID               string
	Email            string
	Username         string
	FullName         string
	AvatarURL        string
	PasswordHash     string
	GoogleSub        string
	Role             string
	Status           string
	EmailConfirmedAt *time.Time
	LastSignInAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName falls back from username to full name to "User".
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "User"
}

// Profile is the public projection of a user.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       *string   `json:"full_name"`
	AvatarURL      *string   `json:"avatar_url"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.DisplayName(),
		FullName:       optional(u.FullName),
		AvatarURL:      optional(u.AvatarURL),
		EmailConfirmed: u.EmailConfirmedAt != nil,
		CreatedAt:      u.CreatedAt,
	}
}

// AdminView is the projection returned by the admin user endpoints.
type AdminView struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
}

func (u User) AdminView() AdminView {
	return AdminView{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.DisplayName(),
		FullName:     u.FullName,
		Role:         u.Role,
		Status:       u.Status,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

// ListFilter drives the paged admin listing.
type ListFilter struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
