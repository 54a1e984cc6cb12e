package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
)

// CallbackServer receives the OAuth redirect on a local port and hands the
// authorization code back to the waiting login command.
type CallbackServer struct {
	State string
	Path  string

	codes chan callbackResult
}

type callbackResult struct {
	code string
	err  error
}

// NewCallbackServer expects the redirect on path carrying the given state.
func NewCallbackServer(state, path string) *CallbackServer {
	if path == "" {
		path = "/oauth/callback"
	}
	return &CallbackServer{State: state, Path: path, codes: make(chan callbackResult, 1)}
}

// CallbackAddr splits a loopback redirect URI into the address to listen on
// and the callback path.
func CallbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("parse redirect URI: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return "", "", fmt.Errorf("redirect URI %q is not a local http address; use `thrive auth exchange` with the code instead", redirectURI)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return host, path, nil
}

func (s *CallbackServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(s.Path, s.handleCallback).Methods("GET")
	return r
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != s.State {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthErr := q.Get("error"); oauthErr != "" {
		http.Error(w, "authorization failed: "+oauthErr, http.StatusBadRequest)
		s.deliver(callbackResult{err: fmt.Errorf("authorization denied: %s %s", oauthErr, q.Get("error_description"))})
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Login complete. You can close this window.")
	s.deliver(callbackResult{code: code})
}

func (s *CallbackServer) deliver(res callbackResult) {
	select {
	case s.codes <- res:
	default:
	}
}

// Serve runs the callback handler on ln until a code arrives or ctx ends.
func (s *CallbackServer) Serve(ctx context.Context, ln net.Listener) (string, error) {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case res := <-s.codes:
		return res.code, res.err
	case err := <-serveErr:
		return "", fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("wait for authorization: %w", ctx.Err())
	}
}
