package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreatePostsPayloadAndReturnsID(t *testing.T) {
	t.Parallel()

	var gotPath, gotMethod string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"a0B000000000001","success":true,"errors":[]}`))
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	res, err := c.Create(context.Background(), "Mood_Entry__c", map[string]any{"Mood_Level__c": 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.ID != "a0B000000000001" {
		t.Fatalf("unexpected id %q", res.ID)
	}
	if gotMethod != http.MethodPost || gotPath != "/services/data/v59.0/sobjects/Mood_Entry__c" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotBody["Mood_Level__c"] != float64(7) {
		t.Fatalf("unexpected payload %+v", gotBody)
	}
}

func TestCreateWithUnsuccessfulBodyIsAnError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"","success":false,"errors":[{"statusCode":"REQUIRED_FIELD_MISSING","message":"Name missing"}]}`))
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	_, err := c.Create(context.Background(), "Win_Entry__c", map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Retryable() {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestUpdateUsesPatchAndSurfacesNotFound(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/services/data/v59.0/sobjects/Win_Entry__c/a01":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`))
		}
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if err := c.Update(context.Background(), "Win_Entry__c", "a01", map[string]any{"Description__c": "x"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	err := c.Update(context.Background(), "Win_Entry__c", "gone", map[string]any{})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServerErrorsAreRetryable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	err := c.Update(context.Background(), "Job_Posting__c", "a01", map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Retryable() {
		t.Fatalf("expected retryable APIError, got %v", err)
	}
}

func TestQueryFollowsNextRecordsURL(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			if r.URL.Query().Get("q") != "SELECT Id FROM Meal__c" {
				t.Errorf("unexpected query %q", r.URL.Query().Get("q"))
			}
			_, _ = w.Write([]byte(`{"totalSize":3,"done":false,"nextRecordsUrl":"/services/data/v59.0/query/01g-2000","records":[{"Id":"m1"},{"Id":"m2"}]}`))
		case "/services/data/v59.0/query/01g-2000":
			_, _ = w.Write([]byte(`{"totalSize":3,"done":true,"records":[{"Id":"m3"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	records, err := c.Query(context.Background(), "SELECT Id FROM Meal__c")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
}

func TestFormatAndParseDates(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 678000000, time.UTC)
	if got := FormatDateTime(ts); got != "2026-01-02T03:04:05.678Z" {
		t.Fatalf("unexpected datetime %q", got)
	}
	d, err := ParseDate("2026-07-14")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.July || d.Day() != 14 {
		t.Fatalf("unexpected date %s", d)
	}
	if _, err := ParseDate("2026-01-02T03:04:05.000+0000"); err != nil {
		t.Fatalf("parse remote timestamp: %v", err)
	}
}
