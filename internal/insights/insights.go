// Package insights asks a language model for short summaries of recent mood,
// win and therapy records.
package insights

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/neurothrive/thrive/internal/logging"
	"github.com/neurothrive/thrive/internal/model"
	"github.com/neurothrive/thrive/internal/provider/anthropic"
	"github.com/neurothrive/thrive/internal/service"
)

const (
	moodWindow      = 7 * 24 * time.Hour
	winWindow       = 30 * 24 * time.Hour
	therapySessions = 5

	customMaxTokens = 512
	dateLayout      = "Jan 02, 2006"
)

type Completer interface {
	Complete(ctx context.Context, r anthropic.Request) (string, error)
}

type Insight struct {
	Type        string    `json:"type" yaml:"type"`
	Title       string    `json:"title" yaml:"title"`
	Text        string    `json:"insight" yaml:"insight"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

type Generator struct {
	DB        *sql.DB
	Completer Completer
	Logger    *slog.Logger
	Now       func() time.Time
}

type section struct {
	kind  string
	title string
	build func(now time.Time) (string, bool, error)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// GenerateAll requests the mood, win and therapy insights concurrently.
// Sections without local data make no request; a failed section is logged and
// left out. Results keep mood, wins, therapy order.
func (g *Generator) GenerateAll(ctx context.Context) ([]Insight, error) {
	if g.Completer == nil {
		return nil, fmt.Errorf("insights: no completer configured")
	}
	log := logging.OrDiscard(g.Logger)
	now := g.now()
	sections := []section{
		{kind: "mood", title: "Mood Trends", build: g.moodPrompt},
		{kind: "wins", title: "Achievement Analysis", build: g.winsPrompt},
		{kind: "therapy", title: "Therapy Progress", build: g.therapyPrompt},
	}

	// Prompts are built up front since the store allows one connection.
	prompts := make([]string, len(sections))
	for i, s := range sections {
		prompt, ok, err := s.build(now)
		if err != nil {
			return nil, fmt.Errorf("build %s prompt: %w", s.kind, err)
		}
		if ok {
			prompts[i] = prompt
		}
	}

	results := make([]*Insight, len(sections))
	var wg sync.WaitGroup
	for i, s := range sections {
		if prompts[i] == "" {
			continue
		}
		wg.Add(1)
		go func(i int, s section) {
			defer wg.Done()
			text, err := g.Completer.Complete(ctx, anthropic.Request{
				Messages:  []anthropic.Message{{Role: "user", Content: prompts[i]}},
				MaxTokens: anthropic.DefaultMaxTokens,
			})
			if err != nil {
				log.Warn("insight_failed", "section", s.kind, "error", err.Error())
				return
			}
			results[i] = &Insight{Type: s.kind, Title: s.title, Text: strings.TrimSpace(text), GeneratedAt: now}
		}(i, s)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Insight, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Custom sends prompt as-is with a larger token budget.
func (g *Generator) Custom(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if g.Completer == nil {
		return "", fmt.Errorf("insights: no completer configured")
	}
	text, err := g.Completer.Complete(ctx, anthropic.Request{
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		MaxTokens: customMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("custom insight: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (g *Generator) moodPrompt(now time.Time) (string, bool, error) {
	moods, err := service.MoodsSince(g.DB, now.Add(-moodWindow))
	if err != nil {
		return "", false, err
	}
	if len(moods) == 0 {
		return "", false, nil
	}
	var b strings.Builder
	b.WriteString("Based on the following mood tracking data from the past week, provide a brief insight and suggestion:\n\n")
	for _, m := range moods {
		fmt.Fprintf(&b, "- %s: mood %d/10, energy %d/10, pain %d/10", day(m.RecordedAt), m.MoodLevel, m.EnergyLevel, m.PainLevel)
		if m.TimeOfDay != "" {
			fmt.Fprintf(&b, " (%s)", m.TimeOfDay)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nAverages: mood %.1f, energy %.1f, pain %.1f\n", average(moods, func(m model.MoodEntry) int { return m.MoodLevel }),
		average(moods, func(m model.MoodEntry) int { return m.EnergyLevel }), average(moods, func(m model.MoodEntry) int { return m.PainLevel }))
	b.WriteString(`
Please analyze patterns and provide:
1. Overall mood trend
2. Energy levels observation
3. One actionable suggestion for improvement

Keep the response to 2-3 sentences, warm and encouraging.`)
	return b.String(), true, nil
}

func (g *Generator) winsPrompt(now time.Time) (string, bool, error) {
	wins, err := service.WinsSince(g.DB, now.Add(-winWindow))
	if err != nil {
		return "", false, err
	}
	if len(wins) == 0 {
		return "", false, nil
	}
	var b strings.Builder
	b.WriteString("Based on recent achievements and wins:\n\n")
	for _, w := range wins {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", day(w.RecordedAt), w.Category, w.Description)
	}
	b.WriteString(`
Provide:
1. Recognition of progress
2. Pattern in successes
3. Encouragement for continued growth

Keep response to 2-3 sentences, positive and motivating.`)
	return b.String(), true, nil
}

func (g *Generator) therapyPrompt(time.Time) (string, bool, error) {
	sessions, err := service.ListTherapySessions(g.DB, service.TherapyFilter{Limit: therapySessions})
	if err != nil {
		return "", false, err
	}
	if len(sessions) == 0 {
		return "", false, nil
	}
	var b strings.Builder
	b.WriteString("Based on recent therapy sessions using the Find Your Facts method:\n\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "- %s: thought %q, believability %d/10", day(s.RecordedAt), s.ThoughtText, s.BelievabilityBefore)
		if s.BelievabilityAfter != nil {
			fmt.Fprintf(&b, " -> %d/10", *s.BelievabilityAfter)
		}
		if s.PatternDetected != "" {
			fmt.Fprintf(&b, ", pattern: %s", s.PatternDetected)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Provide:
1. Progress observation
2. Common thought patterns identified
3. Supportive recommendation

Keep response to 2-3 sentences, compassionate and insightful.`)
	return b.String(), true, nil
}

func day(t time.Time) string {
	return t.Local().Format(dateLayout)
}

func average(moods []model.MoodEntry, pick func(model.MoodEntry) int) float64 {
	total := 0
	for _, m := range moods {
		total += pick(m)
	}
	return float64(total) / float64(len(moods))
}
