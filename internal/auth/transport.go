package auth

import (
	"io"
	"net/http"
	"strings"
)

// Transport attaches the bearer token to every request except the OAuth
// endpoints. Expired tokens are refreshed before sending; a 401 triggers one
// refresh and one retry. Concurrent 401s for the same token share a refresh.
type Transport struct {
	Manager *Manager
	Base    http.RoundTripper
}

// NewClient wraps the manager in an *http.Client for the CRM.
func NewClient(m *Manager) *http.Client {
	base := http.DefaultTransport
	if m.HTTPClient != nil && m.HTTPClient.Transport != nil {
		base = m.HTTPClient.Transport
	}
	return &http.Client{Transport: &Transport{Manager: m, Base: base}, Timeout: m.httpClient().Timeout}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Path, "/oauth2/") {
		return t.base().RoundTrip(req)
	}
	ctx := req.Context()
	sess, err := t.Manager.Token(ctx)
	if err != nil {
		closeBody(req)
		return nil, err
	}
	resp, err := t.send(req, sess.AccessToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A consumed body that cannot be rebuilt makes a retry impossible.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	sess, err = t.Manager.refreshAfter(ctx, sess.AccessToken)
	if err != nil {
		t.Manager.noteRefreshFailure(err)
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.send(retry, sess.AccessToken)
}

func (t *Transport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base().RoundTrip(out)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
