package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIVersion = "v59.0"
	defaultTimeout    = 30 * time.Second
)

// Client talks to the CRM REST API. Authentication is the HTTP client's
// concern; pass one whose transport attaches the bearer token.
type Client struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

type ErrorDetail struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
}

// CreateResult is the body of a successful POST.
type CreateResult struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []ErrorDetail `json:"errors"`
}

type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Details    []ErrorDetail
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s failed with status %d", e.Method, e.Path, e.StatusCode)
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			code := d.ErrorCode
			if code == "" {
				code = d.StatusCode
			}
			parts = append(parts, strings.TrimSpace(code+": "+d.Message))
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

// Retryable reports failures worth another attempt on a later pass.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from the API, which for an update
// means the remote row no longer exists.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) Create(ctx context.Context, sobject string, payload any) (CreateResult, error) {
	body, err := c.do(ctx, http.MethodPost, c.sobjectPath(sobject), payload)
	if err != nil {
		return CreateResult{}, err
	}
	var out CreateResult
	if err := json.Unmarshal(body, &out); err != nil {
		return CreateResult{}, fmt.Errorf("decode create %s response: %w", sobject, err)
	}
	if !out.Success || strings.TrimSpace(out.ID) == "" {
		return out, &APIError{StatusCode: http.StatusOK, Method: http.MethodPost, Path: c.sobjectPath(sobject), Details: out.Errors, Body: string(body)}
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, sobject, id string, payload any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("update %s: remote id is required", sobject)
	}
	_, err := c.do(ctx, http.MethodPatch, c.sobjectPath(sobject)+"/"+url.PathEscape(id), payload)
	return err
}

// Query runs a query and follows pagination until done. Each record is left
// raw for the caller to decode.
func (c *Client) Query(ctx context.Context, q string) ([]json.RawMessage, error) {
	path := c.versionPath() + "/query?q=" + url.QueryEscape(q)
	records := make([]json.RawMessage, 0)
	for path != "" {
		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var page queryResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode query response: %w", err)
		}
		records = append(records, page.Records...)
		if page.Done || page.NextRecordsURL == "" {
			break
		}
		path = page.NextRecordsURL
	}
	return records, nil
}

func (c *Client) versionPath() string {
	v := strings.TrimSpace(c.APIVersion)
	if v == "" {
		v = DefaultAPIVersion
	}
	return "/services/data/" + v
}

func (c *Client) sobjectPath(sobject string) string {
	return c.versionPath() + "/sobjects/" + sobject
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing CRM base URL")
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s payload: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create CRM request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(body)}
		_ = json.Unmarshal(body, &apiErr.Details)
		return nil, apiErr
	}
	return body, nil
}

// Remote timestamps are UTC with millisecond precision.
const (
	dateTimeLayout = "2006-01-02T15:04:05.000Z"
	dateLayout     = "2006-01-02"
)

func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

// FormatDate renders the local calendar day of t.
func FormatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

// ParseDate accepts a plain date or a full timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	for _, layout := range []string{dateTimeLayout, "2006-01-02T15:04:05.000-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
