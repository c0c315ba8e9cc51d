package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/telemetry"
)

type Service struct {
	Repo        Repo
	BcryptCost  int
	AdminEmails map[string]bool
	now         func() time.Time
}

func NewService(repo Repo, bcryptCost int, adminEmails []string) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Service{Repo: repo, BcryptCost: bcryptCost, AdminEmails: admins, now: time.Now}
}

type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FullName  string
	AvatarURL string
}

// ProfileUpdate holds the optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username  *string
	FullName  *string
	AvatarURL *string
}

// GoogleIdentity is the subset of the Google userinfo payload we persist.
type GoogleIdentity struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)

	var msgs []string
	msgs = append(msgs, validateEmail(in.Email)...)
	if in.Password == "" {
		msgs = append(msgs, "Password is required")
	} else if len(in.Password) < 6 {
		msgs = append(msgs, "Password must be at least 6 characters long")
	}
	msgs = append(msgs, validateUsername(in.Username, true)...)
	msgs = append(msgs, validateFullName(in.FullName, true)...)
	msgs = append(msgs, validateAvatar(in.AvatarURL)...)
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := User{
		ID:               uuid.NewString(),
		Email:            in.Email,
		Username:         in.Username,
		FullName:         in.FullName,
		AvatarURL:        in.AvatarURL,
		PasswordHash:     string(hash),
		Role:             s.roleFor(in.Email),
		Status:           StatusActive,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	telemetry.Info("auth.registered", map[string]any{"user_id": user.ID})
	return user, nil
}

// Login checks the password and stamps last_sign_in_at.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var msgs []string
	msgs = append(msgs, validateEmail(email)...)
	if password == "" {
		msgs = append(msgs, "Password is required")
	}
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		metrics.IncLoginFailures()
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.IncLoginFailures()
		return User{}, ErrInvalidCredentials
	}
	if user.Status == StatusSuspended {
		return User{}, ErrSuspended
	}

	now := s.now().UTC()
	if err := s.Repo.TouchSignIn(ctx, user.ID, now); err != nil {
		telemetry.Warn("auth.touch_sign_in_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	} else {
		user.LastSignInAt = &now
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (User, error) {
	if upd.Username == nil && upd.FullName == nil && upd.AvatarURL == nil {
		return User{}, &ValidationError{Messages: []string{"At least one field must be provided for update"}}
	}
	var msgs []string
	if upd.Username != nil {
		msgs = append(msgs, validateUsername(strings.TrimSpace(*upd.Username), false)...)
	}
	if upd.FullName != nil {
		msgs = append(msgs, validateFullName(strings.TrimSpace(*upd.FullName), false)...)
	}
	if upd.AvatarURL != nil {
		msgs = append(msgs, validateAvatar(strings.TrimSpace(*upd.AvatarURL))...)
	}
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if upd.Username != nil {
		user.Username = strings.TrimSpace(*upd.Username)
	}
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}
	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, userID)
}

// UpsertGoogle links a Google identity to an existing account by sub or email,
// creating the account on first sign-in.
func (s *Service) UpsertGoogle(ctx context.Context, id GoogleIdentity) (User, error) {
	if strings.TrimSpace(id.Sub) == "" || strings.TrimSpace(id.Email) == "" {
		return User{}, errors.New("google sub and email are required")
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	now := s.now().UTC()

	user, err := s.Repo.GetByGoogleSub(ctx, id.Sub)
	if errors.Is(err, ErrNotFound) {
		user, err = s.Repo.GetByEmail(ctx, email)
	}
	switch {
	case err == nil:
		if user.Status == StatusSuspended {
			return User{}, ErrSuspended
		}
		user.GoogleSub = id.Sub
		if user.FullName == "" {
			user.FullName = id.Name
		}
		if user.AvatarURL == "" {
			user.AvatarURL = id.Picture
		}
		if user.EmailConfirmedAt == nil {
			user.EmailConfirmedAt = &now
		}
		if err := s.Repo.Update(ctx, user); err != nil {
			return User{}, err
		}
	case errors.Is(err, ErrNotFound):
		user = User{
			ID:               uuid.NewString(),
			Email:            email,
			FullName:         id.Name,
			AvatarURL:        id.Picture,
			GoogleSub:        id.Sub,
			Role:             s.roleFor(email),
			Status:           StatusActive,
			EmailConfirmedAt: &now,
			CreatedAt:        now,
		}
		if err := s.Repo.Create(ctx, user); err != nil {
			return User{}, err
		}
	default:
		return User{}, err
	}

	if err := s.Repo.TouchSignIn(ctx, user.ID, now); err == nil {
		user.LastSignInAt = &now
	}
	return user, nil
}

// LookupAccount feeds the admin guards with the current role and status.
func (s *Service) LookupAccount(ctx context.Context, userID string) (middleware.Account, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return middleware.Account{}, err
	}
	return middleware.Account{Role: user.Role, Active: user.Status != StatusSuspended}, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	return s.Repo.List(ctx, filter)
}

func (s *Service) All(ctx context.Context) ([]User, error) {
	return s.Repo.All(ctx)
}

func (s *Service) SetStatus(ctx context.Context, userID, status string) (User, error) {
	if status != StatusActive && status != StatusSuspended {
		return User{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user.Status = status
	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ResetPassword replaces the password with a random temporary one and returns it.
func (s *Service) ResetPassword(ctx context.Context, userID string) (string, error) {
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	var b [9]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	temp := hex.EncodeToString(b[:])
	hash, err := bcrypt.GenerateFromPassword([]byte(temp), s.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.Repo.Update(ctx, user); err != nil {
		return "", err
	}
	return temp, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.Repo.Delete(ctx, userID)
}

func (s *Service) roleFor(email string) string {
	if s.AdminEmails[email] {
		return RoleAdmin
	}
	return RoleUser
}

func validateEmail(email string) []string {
	if email == "" {
		return []string{"Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return []string{"Please provide a valid email address"}
	}
	return nil
}

func validateUsername(username string, required bool) []string {
	if username == "" {
		if required {
			return []string{"Username is required"}
		}
		return []string{"Username must be at least 3 characters long"}
	}
	var msgs []string
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			msgs = append(msgs, "Username must contain only alphanumeric characters")
			break
		}
	}
	if len(username) < 3 {
		msgs = append(msgs, "Username must be at least 3 characters long")
	}
	if len(username) > 30 {
		msgs = append(msgs, "Username must not exceed 30 characters")
	}
	return msgs
}

func validateFullName(name string, required bool) []string {
	n := len([]rune(name))
	switch {
	case n == 0 && required:
		return []string{"Full name is required"}
	case n < 2:
		return []string{"Full name must be at least 2 characters long"}
	case n > 100:
		return []string{"Full name must not exceed 100 characters"}
	}
	return nil
}

func validateAvatar(raw string) []string {
	if raw == "" {
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []string{"Avatar URL must be a valid URL"}
	}
	return nil
}
