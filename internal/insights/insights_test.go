package insights

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/provider/anthropic"
	"github.com/neurothrive/thrive/internal/service"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []anthropic.Request
	fail     string
}

func (f *fakeCompleter) Complete(_ context.Context, r anthropic.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	prompt := r.Messages[0].Content
	if f.fail != "" && strings.Contains(prompt, f.fail) {
		return "", errors.New("upstream unavailable")
	}
	return "  insight for " + firstLine(prompt) + "\n", nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "thrive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

func seed(t *testing.T, sqldb *sql.DB, now time.Time) {
	t.Helper()
	if _, err := service.CreateMoodEntry(sqldb, service.MoodInput{MoodLevel: 6, EnergyLevel: 4, PainLevel: 2, RecordedAt: now.Add(-24 * time.Hour)}); err != nil {
		t.Fatalf("seed mood: %v", err)
	}
	// Outside the seven day window.
	if _, err := service.CreateMoodEntry(sqldb, service.MoodInput{MoodLevel: 1, EnergyLevel: 1, PainLevel: 9, RecordedAt: now.Add(-10 * 24 * time.Hour)}); err != nil {
		t.Fatalf("seed old mood: %v", err)
	}
	if _, err := service.CreateWinEntry(sqldb, service.WinInput{Description: "Shipped the release", Category: "work", RecordedAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("seed win: %v", err)
	}
	if _, err := service.CreateTherapySession(sqldb, service.TherapyInput{ThoughtText: "I am not good enough", BelievabilityBefore: 8, PatternDetected: "imposter", RecordedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed therapy: %v", err)
	}
}

func TestGenerateAllBuildsPromptsFromLocalData(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	now := time.Now()
	seed(t, sqldb, now)
	fc := &fakeCompleter{}
	g := &Generator{DB: sqldb, Completer: fc, Now: func() time.Time { return now }}

	got, err := g.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 insights, got %d", len(got))
	}
	wantTypes := []string{"mood", "wins", "therapy"}
	for i, in := range got {
		if in.Type != wantTypes[i] {
			t.Fatalf("insight %d type = %q, want %q", i, in.Type, wantTypes[i])
		}
		if strings.HasPrefix(in.Text, " ") || strings.HasSuffix(in.Text, "\n") {
			t.Fatalf("insight text not trimmed: %q", in.Text)
		}
	}

	var moodPrompt string
	for _, r := range fc.requests {
		if r.MaxTokens != anthropic.DefaultMaxTokens {
			t.Fatalf("unexpected max tokens %d", r.MaxTokens)
		}
		if strings.Contains(r.Messages[0].Content, "mood tracking") {
			moodPrompt = r.Messages[0].Content
		}
	}
	if !strings.Contains(moodPrompt, "mood 6/10, energy 4/10, pain 2/10") {
		t.Fatalf("mood prompt missing recent entry:\n%s", moodPrompt)
	}
	if strings.Contains(moodPrompt, "pain 9/10") {
		t.Fatalf("mood prompt includes entry outside window:\n%s", moodPrompt)
	}
}

func TestGenerateAllSkipsEmptyAndFailedSections(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	now := time.Now()
	if _, err := service.CreateMoodEntry(sqldb, service.MoodInput{MoodLevel: 7, EnergyLevel: 7, PainLevel: 1, RecordedAt: now}); err != nil {
		t.Fatalf("seed mood: %v", err)
	}
	if _, err := service.CreateWinEntry(sqldb, service.WinInput{Description: "Cooked dinner", RecordedAt: now}); err != nil {
		t.Fatalf("seed win: %v", err)
	}
	fc := &fakeCompleter{fail: "achievements"}
	g := &Generator{DB: sqldb, Completer: fc}

	got, err := g.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 1 || got[0].Type != "mood" {
		t.Fatalf("expected only the mood insight, got %+v", got)
	}
	// Therapy has no rows, so only mood and wins reach the completer.
	if len(fc.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fc.requests))
	}
}

func TestGenerateAllWithNoDataMakesNoRequests(t *testing.T) {
	t.Parallel()
	fc := &fakeCompleter{}
	g := &Generator{DB: newTestDB(t), Completer: fc}
	got, err := g.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 0 || len(fc.requests) != 0 {
		t.Fatalf("expected nothing, got %d insights and %d requests", len(got), len(fc.requests))
	}
}

func TestCustom(t *testing.T) {
	t.Parallel()
	fc := &fakeCompleter{}
	g := &Generator{DB: newTestDB(t), Completer: fc}

	text, err := g.Custom(context.Background(), "How was my week?")
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if text != "insight for How was my week?" {
		t.Fatalf("unexpected text %q", text)
	}
	if fc.requests[0].MaxTokens != 512 {
		t.Fatalf("expected 512 max tokens, got %d", fc.requests[0].MaxTokens)
	}
	if _, err := g.Custom(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for blank prompt")
	}
}
