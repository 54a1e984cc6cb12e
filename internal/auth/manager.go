// Package auth holds the OAuth2 session against the CRM: the authorization
// code exchange, refresh, revocation, encrypted token storage, and an HTTP
// transport that keeps outbound calls authenticated.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/neurothrive/thrive/internal/logging"
)

const (
	authorizePath = "/services/oauth2/authorize"
	tokenPath     = "/services/oauth2/token"
	revokePath    = "/services/oauth2/revoke"
	oauthScope    = "api refresh_token"
)

type State int

const (
	Unauthenticated State = iota
	Authorizing
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authorizing:
		return "authorizing"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

var (
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrNotAuthenticated = errors.New("not authenticated; run `thrive auth login`")
)

// TokenError is a non-2xx answer from the token endpoint.
type TokenError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// Rejected reports whether the server refused the grant itself, as opposed
// to being unavailable.
func (e *TokenError) Rejected() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	InstanceURL  string `json:"instance_url"`
	ID           string `json:"id"`
	TokenType    string `json:"token_type"`
	IssuedAt     string `json:"issued_at"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Manager owns the session lifecycle. The zero value is unusable; BaseURL,
// ClientID and Store are required.
type Manager struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Store        Store
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time

	mu          sync.Mutex
	authorizing bool
	lost        bool

	// refreshMu serializes refreshes. Callers that lost the race for it see
	// the rotated token in refreshAfter and skip their own refresh.
	refreshMu sync.Mutex
}

// State is Authorizing between AuthorizationURL and the code exchange,
// Authenticated while an access token is stored and usable.
func (m *Manager) State() State {
	m.mu.Lock()
	authorizing, lost := m.authorizing, m.lost
	m.mu.Unlock()
	if authorizing {
		return Authorizing
	}
	if lost {
		return Unauthenticated
	}
	sess, ok, err := m.Store.Load()
	if err != nil || !ok || sess.AccessToken == "" {
		return Unauthenticated
	}
	return Authenticated
}

// Session returns the stored session, if any.
func (m *Manager) Session() (Session, bool, error) {
	return m.Store.Load()
}

func (m *Manager) AuthorizationURL(state string) (string, error) {
	base, err := m.baseURL()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(m.ClientID) == "" {
		return "", fmt.Errorf("missing OAuth client id")
	}
	if strings.TrimSpace(m.RedirectURI) == "" {
		return "", fmt.Errorf("missing OAuth redirect URI")
	}
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", m.ClientID)
	q.Set("redirect_uri", m.RedirectURI)
	q.Set("scope", oauthScope)
	if state != "" {
		q.Set("state", state)
	}
	m.mu.Lock()
	m.authorizing = true
	m.mu.Unlock()
	return base + authorizePath + "?" + q.Encode(), nil
}

// Authorize trades a one-time authorization code for tokens and persists them.
func (m *Manager) Authorize(ctx context.Context, code string) (Session, error) {
	defer func() {
		m.mu.Lock()
		m.authorizing = false
		m.mu.Unlock()
	}()
	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, fmt.Errorf("authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", m.ClientID)
	if m.ClientSecret != "" {
		form.Set("client_secret", m.ClientSecret)
	}
	form.Set("redirect_uri", m.RedirectURI)

	resp, err := m.tokenRequest(ctx, "token exchange", form)
	if err != nil {
		m.logger().Warn("token_exchange_failed", "error", err.Error())
		return Session{}, err
	}
	if resp.AccessToken == "" {
		return Session{}, fmt.Errorf("token exchange returned no access token")
	}
	sess := Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		InstanceURL:  resp.InstanceURL,
		UserID:       userIDFromIdentity(resp.ID),
		IssuedAt:     m.now(),
	}
	if err := m.Store.Save(sess); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	m.mu.Lock()
	m.lost = false
	m.mu.Unlock()
	m.logger().Info("authenticated", "user_id", sess.UserID, "instance_url", sess.InstanceURL)
	return sess, nil
}

// Refresh obtains a new access token. Stored tokens are left untouched when
// it fails.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refreshLocked(ctx)
}

// refreshAfter refreshes unless the stored access token already differs from
// stale, the token the caller was rejected with.
func (m *Manager) refreshAfter(ctx context.Context, stale string) (Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	sess, ok, err := m.Store.Load()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if ok && sess.AccessToken != "" && sess.AccessToken != stale {
		return sess, nil
	}
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) (Session, error) {
	old, ok, err := m.Store.Load()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok || old.RefreshToken == "" {
		return Session{}, ErrNoRefreshToken
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.ClientID)
	if m.ClientSecret != "" {
		form.Set("client_secret", m.ClientSecret)
	}
	form.Set("refresh_token", old.RefreshToken)

	resp, err := m.tokenRequest(ctx, "token refresh", form)
	if err != nil {
		m.logger().Warn("token_refresh_failed", "error", err.Error())
		return Session{}, err
	}
	if resp.AccessToken == "" {
		return Session{}, fmt.Errorf("token refresh returned no access token")
	}
	sess := Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: firstNonEmpty(resp.RefreshToken, old.RefreshToken),
		InstanceURL:  firstNonEmpty(resp.InstanceURL, old.InstanceURL),
		UserID:       firstNonEmpty(userIDFromIdentity(resp.ID), old.UserID),
		IssuedAt:     m.now(),
	}
	if err := m.Store.Save(sess); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	m.mu.Lock()
	m.lost = false
	m.mu.Unlock()
	m.logger().Info("token_refreshed", "user_id", sess.UserID)
	return sess, nil
}

// Token returns a session whose access token has not expired, refreshing
// first when needed.
func (m *Manager) Token(ctx context.Context) (Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	sess, ok, err := m.Store.Load()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok || sess.AccessToken == "" {
		return Session{}, ErrNotAuthenticated
	}
	if !sess.Expired(m.now()) {
		return sess, nil
	}
	sess, err = m.refreshLocked(ctx)
	if err != nil {
		m.noteRefreshFailure(err)
		return Session{}, fmt.Errorf("refresh expired token: %w", err)
	}
	return sess, nil
}

// noteRefreshFailure drops to Unauthenticated when the refresh token itself
// is missing or was refused. Network failures keep the session.
func (m *Manager) noteRefreshFailure(err error) {
	var tokenErr *TokenError
	if errors.Is(err, ErrNoRefreshToken) || (errors.As(err, &tokenErr) && tokenErr.Rejected()) {
		m.mu.Lock()
		m.lost = true
		m.mu.Unlock()
		m.logger().Warn("session_lost", "error", err.Error())
	}
}

// Logout revokes the access token if it can and always clears local state.
func (m *Manager) Logout(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.authorizing, m.lost = false, false
		m.mu.Unlock()
	}()

	sess, ok, err := m.Store.Load()
	if err != nil {
		m.logger().Warn("logout_load_failed", "error", err.Error())
	}
	if ok && sess.AccessToken != "" {
		if err := m.revoke(ctx, sess.AccessToken); err != nil {
			m.logger().Warn("token_revoke_failed", "error", err.Error())
		}
	}
	if err := m.Store.Clear(); err != nil {
		m.logger().Warn("session_clear_failed", "error", err.Error())
	}
	m.logger().Info("logged_out")
}

func (m *Manager) revoke(ctx context.Context, token string) error {
	base, err := m.baseURL()
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("token", token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+revokePath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("execute revoke request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke failed with status %d", resp.StatusCode)
	}
	return nil
}

func (m *Manager) tokenRequest(ctx context.Context, op string, form url.Values) (tokenResponse, error) {
	base, err := m.baseURL()
	if err != nil {
		return tokenResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient().Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("execute %s request: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tokenErr := &TokenError{Op: op, StatusCode: resp.StatusCode}
		var parsed tokenErrorResponse
		if err := json.Unmarshal(body, &parsed); err == nil {
			tokenErr.Code, tokenErr.Description = parsed.Error, parsed.ErrorDescription
		}
		return tokenResponse{}, tokenErr
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return tokenResponse{}, fmt.Errorf("decode %s response: %w", op, err)
	}
	return out, nil
}

func (m *Manager) baseURL() (string, error) {
	base := strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("missing CRM base URL")
	}
	return base, nil
}

func (m *Manager) httpClient() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (m *Manager) logger() *slog.Logger {
	return logging.OrDiscard(m.Logger)
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// userIDFromIdentity takes the user id off the end of the identity URL
// (https://host/id/<org>/<user>).
func userIDFromIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ""
	}
	if u, err := url.Parse(identity); err == nil && u.Path != "" {
		return path.Base(strings.TrimRight(u.Path, "/"))
	}
	return identity
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
