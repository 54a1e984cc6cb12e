package voice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/neurothrive/thrive/internal/logging"
	"github.com/neurothrive/thrive/internal/service"
)

const (
	defaultMoodLevel   = 5
	defaultEnergyLevel = 5
	defaultPainLevel   = 1

	winCategory   = "personal"
	notRecognized = "Command not recognized. Try again."
)

// Outcome describes what a transcript did. RecordID is set when a row was
// written.
type Outcome struct {
	Type       CommandType `json:"type"`
	Recognized bool        `json:"recognized"`
	RecordID   string      `json:"record_id,omitempty"`
	Message    string      `json:"message"`
}

// Interpreter applies transcripts to the local store. Sync is optional; a
// sync command without it is reported as unavailable.
type Interpreter struct {
	DB     *sql.DB
	Sync   func(ctx context.Context) error
	Now    func() time.Time
	Logger *slog.Logger
}

func (in *Interpreter) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Handle classifies text and persists the resulting command. An unrecognized
// transcript is not an error; the returned error covers store and sync
// failures only.
func (in *Interpreter) Handle(ctx context.Context, text string) (Outcome, error) {
	kind := Classify(text)
	out := Outcome{Type: kind, Message: notRecognized}
	log := logging.OrDiscard(in.Logger)

	switch kind {
	case Mood:
		cmd := ParseMood(text)
		if cmd == nil {
			break
		}
		mood := orDefault(cmd.MoodLevel, defaultMoodLevel)
		energy := orDefault(cmd.EnergyLevel, defaultEnergyLevel)
		pain := orDefault(cmd.PainLevel, defaultPainLevel)
		id, err := service.CreateMoodEntry(in.DB, service.MoodInput{
			MoodLevel:   mood,
			EnergyLevel: energy,
			PainLevel:   pain,
			RecordedAt:  in.now(),
			Notes:       "Voice entry: " + text,
		})
		if err != nil {
			return out, fmt.Errorf("save voice mood: %w", err)
		}
		out.Recognized, out.RecordID = true, id
		out.Message = fmt.Sprintf("Mood Entry: Mood=%d Energy=%d Pain=%d", mood, energy, pain)

	case Win:
		cmd := ParseWin(text)
		if cmd == nil {
			break
		}
		cmd.Category = winCategory
		id, err := service.CreateWinEntry(in.DB, service.WinInput{
			Description: cmd.Description,
			Category:    cmd.Category,
			RecordedAt:  in.now(),
		})
		if err != nil {
			return out, fmt.Errorf("save voice win: %w", err)
		}
		out.Recognized, out.RecordID = true, id
		out.Message = "Win: " + cmd.Description

	case Journal:
		cmd := ParseJournal(text)
		if cmd == nil {
			break
		}
		id, err := service.AppendJournal(in.DB, in.now(), cmd.Text)
		if err != nil {
			return out, fmt.Errorf("save voice journal: %w", err)
		}
		out.Recognized, out.RecordID = true, id
		out.Message = "Journal: " + cmd.Text

	case Sync:
		out.Recognized = true
		if in.Sync == nil {
			out.Message = "Sync is not configured."
			return out, nil
		}
		if err := in.Sync(ctx); err != nil {
			out.Message = "Sync failed."
			return out, fmt.Errorf("voice sync: %w", err)
		}
		out.Message = "Sync complete."
	}

	log.Debug("voice_command", "type", kind.String(), "recognized", out.Recognized)
	return out, nil
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
