package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/users"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleService handles the Google OAuth authorization-code flow.
type GoogleService struct {
	oauthConfig *oauth2.Config
	clientURL   string
	stateTTL    time.Duration
	stateStore  *stateStore
	users       *users.Service
	sessions    *Sessions
	userInfoURL string
}

// NewGoogleService builds a GoogleService. clientURL is the frontend origin that
// receives /auth/success?token=.
func NewGoogleService(clientID, clientSecret, redirectURL, clientURL string, usersSvc *users.Service, sessions *Sessions) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		clientURL:   strings.TrimRight(clientURL, "/"),
		stateTTL:    5 * time.Minute,
		stateStore:  newStateStore(),
		users:       usersSvc,
		sessions:    sessions,
		userInfoURL: googleUserInfoURL,
	}
}

func (s *GoogleService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusBadRequest, "auth_not_configured", "Google login failed", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	authURL := s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	respond.Message(c, "Redirect to Google OAuth", gin.H{"url": authURL})
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Access token is required", nil)
		return
	}
	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "OAuth callback failed", gin.H{"reason": "invalid or expired state"})
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "OAuth callback failed", nil)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil || info.Sub == "" {
		telemetry.Error("auth.google_userinfo_failed", map[string]any{"error": fmt.Sprint(err)})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "OAuth callback failed", nil)
		return
	}

	user, err := s.users.UpsertGoogle(ctx, users.GoogleIdentity{
		Sub:     info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		if errors.Is(err, users.ErrSuspended) {
			respond.Error(c, http.StatusForbidden, "forbidden", "Account suspended", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}

	pair, err := s.sessions.Issue(ctx, user)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}

	redirectURL, err := appendToken(s.clientURL+"/auth/success", pair.Token)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}
	// v2 userinfo returns "id" rather than "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	return info, nil
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && !time.Now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
