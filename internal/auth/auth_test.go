package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCRM struct {
	tokenCalls  atomic.Int32
	revokeCalls atomic.Int32
	apiCalls    atomic.Int32

	// tokenStatus overrides the token endpoint status when non-zero.
	tokenStatus  atomic.Int32
	validToken   atomic.Value
	issuedTokens atomic.Int32
}

func newFakeCRM(t *testing.T) (*fakeCRM, *httptest.Server) {
	t.Helper()
	f := &fakeCRM{}
	f.validToken.Store("access-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			f.tokenCalls.Add(1)
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if status := f.tokenStatus.Load(); status != 0 {
				w.WriteHeader(int(status))
				_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"expired access/refresh token"}`)
				return
			}
			n := f.issuedTokens.Add(1)
			token := "access-" + string(rune('1'+n))
			f.validToken.Store(token)
			refresh := `"refresh_token":"refresh-1",`
			if r.Form.Get("grant_type") == "refresh_token" {
				refresh = ""
			}
			_, _ = io.WriteString(w, `{"access_token":"`+token+`",`+refresh+`"instance_url":"https://instance.example","id":"https://login.example/id/00D000/005USER","token_type":"Bearer","issued_at":"1700000000000"}`)
		case revokePath:
			f.revokeCalls.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			f.apiCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer "+f.validToken.Load().(string) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `[{"errorCode":"INVALID_SESSION_ID","message":"Session expired"}]`)
				return
			}
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestManager(baseURL string) *Manager {
	return &Manager{
		BaseURL:     baseURL,
		ClientID:    "client",
		RedirectURI: "http://127.0.0.1:8719/oauth/callback",
		Store:       &MemoryStore{},
	}
}

func TestAuthorizationURLMovesToAuthorizing(t *testing.T) {
	t.Parallel()

	m := newTestManager("https://crm.example/")
	if m.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
	raw, err := m.AuthorizationURL("xyz")
	if err != nil {
		t.Fatalf("AuthorizationURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != authorizePath {
		t.Fatalf("unexpected path %q", u.Path)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "client" || q.Get("scope") != "api refresh_token" || q.Get("state") != "xyz" {
		t.Fatalf("unexpected query %v", q)
	}
	if m.State() != Authorizing {
		t.Fatalf("expected authorizing, got %s", m.State())
	}
}

func TestAuthorizePersistsSession(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(srv.URL)
	m.Now = func() time.Time { return now }

	sess, err := m.Authorize(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if sess.UserID != "005USER" || sess.InstanceURL != "https://instance.example" || sess.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !sess.ExpiresAt().Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("expected expiry two hours after issue, got %v", sess.ExpiresAt())
	}
	if m.State() != Authenticated {
		t.Fatalf("expected authenticated, got %s", m.State())
	}
	if f.tokenCalls.Load() != 1 {
		t.Fatalf("expected one token call, got %d", f.tokenCalls.Load())
	}
}

func TestAuthorizeFailureStaysUnauthenticated(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	f.tokenStatus.Store(http.StatusBadRequest)
	m := newTestManager(srv.URL)
	if _, err := m.AuthorizationURL("s"); err != nil {
		t.Fatalf("AuthorizationURL: %v", err)
	}

	_, err := m.Authorize(context.Background(), "bad")
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected TokenError, got %v", err)
	}
	if tokenErr.Code != "invalid_grant" || !strings.Contains(err.Error(), "expired access/refresh token") {
		t.Fatalf("expected descriptive error, got %v", err)
	}
	if m.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
}

func TestRefreshKeepsRefreshTokenAndTokensOnFailure(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}

	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	sess, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sess.RefreshToken != "refresh-1" {
		t.Fatalf("expected refresh token to be kept, got %q", sess.RefreshToken)
	}

	f.tokenStatus.Store(http.StatusBadRequest)
	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh failure")
	}
	stored, ok, _ := m.Store.Load()
	if !ok || stored.AccessToken != sess.AccessToken || stored.RefreshToken != "refresh-1" {
		t.Fatalf("failed refresh must not clear tokens, got %+v", stored)
	}
}

func TestLogoutClearsEvenWhenRevokeFails(t *testing.T) {
	t.Parallel()

	m := newTestManager("http://127.0.0.1:1")
	_ = m.Store.Save(Session{AccessToken: "a", RefreshToken: "r", IssuedAt: time.Now()})
	m.HTTPClient = &http.Client{Timeout: time.Second}

	m.Logout(context.Background())
	if _, ok, _ := m.Store.Load(); ok {
		t.Fatalf("expected session cleared")
	}
	if m.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	m.Logout(context.Background())
	if f.revokeCalls.Load() != 1 {
		t.Fatalf("expected one revoke call, got %d", f.revokeCalls.Load())
	}
}

func TestTransportRefreshesProactivelyWhenExpired(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	now := time.Now()
	m := newTestManager(srv.URL)
	m.Now = func() time.Time { return now }
	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	now = now.Add(TokenTTL + time.Minute)

	client := NewClient(m)
	resp, err := client.Get(srv.URL + "/services/data/v59.0/query")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if f.tokenCalls.Load() != 2 || f.apiCalls.Load() != 1 {
		t.Fatalf("expected exchange+refresh and a single api call, got token=%d api=%d", f.tokenCalls.Load(), f.apiCalls.Load())
	}
}

func TestTransportRetriesOnceAfter401WithBody(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	// Server-side revocation: the stored token no longer works.
	f.validToken.Store("rotated-elsewhere")
	f.issuedTokens.Store(10)

	client := NewClient(m)
	resp, err := client.Post(srv.URL+"/services/data/v59.0/sobjects/Mood_Entry__c", "application/json", strings.NewReader(`{"Mood_Level__c":7}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != `{"Mood_Level__c":7}` {
		t.Fatalf("expected replayed body after refresh, got %d %q", resp.StatusCode, body)
	}
	if f.apiCalls.Load() != 2 {
		t.Fatalf("expected exactly one retry, got %d api calls", f.apiCalls.Load())
	}
}

func TestTransportConcurrent401sShareOneRefresh(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	f.validToken.Store("rotated-elsewhere")

	client := NewClient(m)
	var wg sync.WaitGroup
	statuses := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/services/data/v59.0/query")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)
	for status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("expected every request to succeed after the refresh, got %d", status)
		}
	}
	if f.tokenCalls.Load() != 2 {
		t.Fatalf("expected exchange plus a single refresh, got %d token calls", f.tokenCalls.Load())
	}
}

func TestTransportRejectedRefreshLosesSession(t *testing.T) {
	t.Parallel()

	f, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	if _, err := m.Authorize(context.Background(), "code"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	f.validToken.Store("rotated-elsewhere")
	f.tokenStatus.Store(http.StatusBadRequest)

	resp, err := NewClient(m).Get(srv.URL + "/services/data/v59.0/query")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the first 401 to be returned, got %d", resp.StatusCode)
	}
	if m.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated after refused refresh, got %s", m.State())
	}
	if _, ok, _ := m.Store.Load(); !ok {
		t.Fatalf("tokens must survive a refused refresh")
	}
}

func TestTransportWithoutSession(t *testing.T) {
	t.Parallel()

	_, srv := newFakeCRM(t)
	m := newTestManager(srv.URL)
	_, err := NewClient(m).Get(srv.URL + "/services/data/v59.0/query")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := &FileStore{Path: filepath.Join(dir, "session.enc"), KeyPath: filepath.Join(dir, "device.key")}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	want := Session{AccessToken: "secret-access", RefreshToken: "secret-refresh", InstanceURL: "https://i", UserID: "u", IssuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if strings.Contains(string(raw), "secret-access") || strings.Contains(string(raw), "secret-refresh") {
		t.Fatalf("session file holds plaintext tokens")
	}
	for _, p := range []string{store.Path, store.KeyPath} {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if st.Mode().Perm() != 0o600 {
			t.Fatalf("expected 0600 on %s, got %v", p, st.Mode().Perm())
		}
	}

	reopened := &FileStore{Path: store.Path, KeyPath: store.KeyPath}
	got, ok, err := reopened.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.IssuedAt.Equal(want.IssuedAt) {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := os.WriteFile(store.KeyPath, make([]byte, deviceSecretSize), 0o600); err != nil {
		t.Fatalf("overwrite key: %v", err)
	}
	if _, _, err := reopened.Load(); err == nil {
		t.Fatalf("expected decrypt failure with a different device key")
	}

	if err := reopened.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := reopened.Load(); ok {
		t.Fatalf("expected cleared store")
	}
}

func TestCallbackServerDeliversCode(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cb := NewCallbackServer("st-1", "/oauth/callback")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := cb.Serve(ctx, ln)
		done <- result{code, err}
	}()

	base := "http://" + ln.Addr().String() + "/oauth/callback"
	resp, err := http.Get(base + "?code=abc&state=wrong")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected state mismatch rejection, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "?code=abc&state=st-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	res := <-done
	if res.err != nil || res.code != "abc" {
		t.Fatalf("expected code abc, got %q %v", res.code, res.err)
	}
}

func TestCallbackAddr(t *testing.T) {
	t.Parallel()

	addr, path, err := CallbackAddr("http://localhost:8719/oauth/callback")
	if err != nil || addr != "localhost:8719" || path != "/oauth/callback" {
		t.Fatalf("unexpected %q %q %v", addr, path, err)
	}
	if _, _, err := CallbackAddr("neurothrive://oauth/callback"); err == nil {
		t.Fatalf("expected custom scheme to be rejected")
	}
}
