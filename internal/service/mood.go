package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

var validTimesOfDay = map[string]bool{
	"":          true,
	"morning":   true,
	"afternoon": true,
	"evening":   true,
	"night":     true,
}

type MoodInput struct {
	MoodLevel   int
	EnergyLevel int
	PainLevel   int
	RecordedAt  time.Time
	TimeOfDay   string
	Notes       string
}

type MoodFilter struct {
	FromDate  string
	ToDate    string
	TimeOfDay string
	Unsynced  bool
	Limit     int
}

const moodColumns = `id, mood_level, energy_level, pain_level, recorded_at, IFNULL(time_of_day, ''), IFNULL(notes, ''), synced, remote_id`

// MoodInputFrom is the starting point for a partial edit of m.
func MoodInputFrom(m model.MoodEntry) MoodInput {
	return MoodInput{
		MoodLevel:   m.MoodLevel,
		EnergyLevel: m.EnergyLevel,
		PainLevel:   m.PainLevel,
		RecordedAt:  m.RecordedAt,
		TimeOfDay:   m.TimeOfDay,
		Notes:       m.Notes,
	}
}

func validateMoodInput(in *MoodInput) error {
	if err := validateLevel("mood", in.MoodLevel); err != nil {
		return err
	}
	if err := validateLevel("energy", in.EnergyLevel); err != nil {
		return err
	}
	if err := validateLevel("pain", in.PainLevel); err != nil {
		return err
	}
	in.TimeOfDay = normalizeName(in.TimeOfDay)
	if !validTimesOfDay[in.TimeOfDay] {
		return fmt.Errorf("time of day must be one of morning, afternoon, evening, night")
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func CreateMoodEntry(db *sql.DB, in MoodInput) (string, error) {
	if err := validateMoodInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO mood_entries(id, mood_level, energy_level, pain_level, recorded_at, time_of_day, notes)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, id, in.MoodLevel, in.EnergyLevel, in.PainLevel, formatTime(nowOr(in.RecordedAt)), nullableString(in.TimeOfDay), nullableString(in.Notes))
	if err != nil {
		return "", fmt.Errorf("insert mood entry: %w", err)
	}
	return id, nil
}

// BulkCreateMoods inserts all entries or none.
func BulkCreateMoods(db *sql.DB, inputs []MoodInput) ([]string, error) {
	for i := range inputs {
		if err := validateMoodInput(&inputs[i]); err != nil {
			return nil, fmt.Errorf("mood entry %d: %w", i+1, err)
		}
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin bulk mood insert: %w", err)
	}
	stmt, err := tx.Prepare(`
INSERT INTO mood_entries(id, mood_level, energy_level, pain_level, recorded_at, time_of_day, notes)
VALUES(?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("prepare bulk mood insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		id := newID()
		if _, err := stmt.Exec(id, in.MoodLevel, in.EnergyLevel, in.PainLevel, formatTime(nowOr(in.RecordedAt)), nullableString(in.TimeOfDay), nullableString(in.Notes)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert mood entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk mood insert: %w", err)
	}
	return ids, nil
}

func GetMoodEntry(db *sql.DB, id string) (model.MoodEntry, error) {
	row := db.QueryRow(`SELECT `+moodColumns+` FROM mood_entries WHERE id = ?`, id)
	m, err := scanMood(row)
	if err == sql.ErrNoRows {
		return model.MoodEntry{}, fmt.Errorf("mood entry %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.MoodEntry{}, err
	}
	return m, nil
}

func ListMoodEntries(db *sql.DB, f MoodFilter) ([]model.MoodEntry, error) {
	from, to, err := dateRange(f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + moodColumns + ` FROM mood_entries WHERE 1=1`
	args := make([]any, 0)
	if from != "" {
		query += ` AND recorded_at >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND recorded_at < ?`
		args = append(args, to)
	}
	if strings.TrimSpace(f.TimeOfDay) != "" {
		query += ` AND time_of_day = ?`
		args = append(args, normalizeName(f.TimeOfDay))
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mood entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.MoodEntry, 0)
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood entries: %w", err)
	}
	return out, nil
}

// MoodsSince returns every entry recorded at or after since, oldest first.
func MoodsSince(db *sql.DB, since time.Time) ([]model.MoodEntry, error) {
	rows, err := db.Query(`SELECT `+moodColumns+` FROM mood_entries WHERE recorded_at >= ? ORDER BY recorded_at ASC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("list mood entries since %s: %w", since.Format(time.DateOnly), err)
	}
	defer rows.Close()

	out := make([]model.MoodEntry, 0)
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood entries: %w", err)
	}
	return out, nil
}

// UpdateMoodEntry replaces the domain fields and queues the row for another
// push. The remote id is kept so the next sync issues an update.
func UpdateMoodEntry(db *sql.DB, id string, in MoodInput) error {
	if err := validateMoodInput(&in); err != nil {
		return err
	}
	if in.RecordedAt.IsZero() {
		return fmt.Errorf("recorded time is required")
	}
	res, err := db.Exec(`
UPDATE mood_entries
SET mood_level = ?, energy_level = ?, pain_level = ?, recorded_at = ?, time_of_day = ?, notes = ?, synced = 0
WHERE id = ?
`, in.MoodLevel, in.EnergyLevel, in.PainLevel, formatTime(in.RecordedAt), nullableString(in.TimeOfDay), nullableString(in.Notes), id)
	if err != nil {
		return fmt.Errorf("update mood entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "mood entry", id)
}

func DeleteMoodEntry(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM mood_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mood entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "mood entry", id)
}

func scanMood(row rowScanner) (model.MoodEntry, error) {
	var m model.MoodEntry
	var recordedAt string
	var remoteID sql.NullString
	if err := row.Scan(&m.ID, &m.MoodLevel, &m.EnergyLevel, &m.PainLevel, &recordedAt, &m.TimeOfDay, &m.Notes, &m.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return m, err
		}
		return m, fmt.Errorf("scan mood entry: %w", err)
	}
	t, err := parseTime("recorded_at", recordedAt)
	if err != nil {
		return m, err
	}
	m.RecordedAt = t
	m.RemoteID = stringPtr(remoteID)
	return m, nil
}
