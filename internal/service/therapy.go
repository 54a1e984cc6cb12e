package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

type TherapyInput struct {
	ThoughtText            string
	BelievabilityBefore    int
	EvidenceFor            string
	EvidenceAgainst        string
	AlternativePerspective string
	ReframeSuggestion      string
	BelievabilityAfter     *int
	PatternDetected        string
	RecordedAt             time.Time
}

type TherapyFilter struct {
	FromDate string
	ToDate   string
	Pattern  string
	Unsynced bool
	Limit    int
}

const therapyColumns = `id, thought_text, believability_before, IFNULL(evidence_for, ''), IFNULL(evidence_against, ''),
IFNULL(alternative_perspective, ''), IFNULL(reframe_suggestion, ''), believability_after, IFNULL(pattern_detected, ''),
recorded_at, synced, remote_id`

func TherapyInputFrom(s model.TherapySession) TherapyInput {
	return TherapyInput{
		ThoughtText:            s.ThoughtText,
		BelievabilityBefore:    s.BelievabilityBefore,
		EvidenceFor:            s.EvidenceFor,
		EvidenceAgainst:        s.EvidenceAgainst,
		AlternativePerspective: s.AlternativePerspective,
		ReframeSuggestion:      s.ReframeSuggestion,
		BelievabilityAfter:     s.BelievabilityAfter,
		PatternDetected:        s.PatternDetected,
		RecordedAt:             s.RecordedAt,
	}
}

func validateTherapyInput(in *TherapyInput) error {
	in.ThoughtText = strings.TrimSpace(in.ThoughtText)
	if in.ThoughtText == "" {
		return fmt.Errorf("thought text is required")
	}
	if err := validateLevel("believability before", in.BelievabilityBefore); err != nil {
		return err
	}
	if err := validateOptionalLevel("believability after", in.BelievabilityAfter); err != nil {
		return err
	}
	in.PatternDetected = normalizeName(in.PatternDetected)
	return nil
}

func CreateTherapySession(db *sql.DB, in TherapyInput) (string, error) {
	if err := validateTherapyInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO therapy_sessions(id, thought_text, believability_before, evidence_for, evidence_against,
  alternative_perspective, reframe_suggestion, believability_after, pattern_detected, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, in.ThoughtText, in.BelievabilityBefore, nullableString(in.EvidenceFor), nullableString(in.EvidenceAgainst),
		nullableString(in.AlternativePerspective), nullableString(in.ReframeSuggestion), nullableInt(in.BelievabilityAfter),
		nullableString(in.PatternDetected), formatTime(nowOr(in.RecordedAt)))
	if err != nil {
		return "", fmt.Errorf("insert therapy session: %w", err)
	}
	return id, nil
}

func GetTherapySession(db *sql.DB, id string) (model.TherapySession, error) {
	s, err := scanTherapy(db.QueryRow(`SELECT `+therapyColumns+` FROM therapy_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.TherapySession{}, fmt.Errorf("therapy session %q: %w", id, ErrNotFound)
	}
	return s, err
}

func ListTherapySessions(db *sql.DB, f TherapyFilter) ([]model.TherapySession, error) {
	from, to, err := dateRange(f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + therapyColumns + ` FROM therapy_sessions WHERE 1=1`
	args := make([]any, 0)
	if from != "" {
		query += ` AND recorded_at >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND recorded_at < ?`
		args = append(args, to)
	}
	if strings.TrimSpace(f.Pattern) != "" {
		query += ` AND pattern_detected = ?`
		args = append(args, normalizeName(f.Pattern))
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list therapy sessions: %w", err)
	}
	defer rows.Close()

	out := make([]model.TherapySession, 0)
	for rows.Next() {
		s, err := scanTherapy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate therapy sessions: %w", err)
	}
	return out, nil
}

// CompleteTherapySession records the reframe and the post-exercise
// believability of an existing session.
func CompleteTherapySession(db *sql.DB, id, reframe string, believabilityAfter int) error {
	if err := validateLevel("believability after", believabilityAfter); err != nil {
		return err
	}
	res, err := db.Exec(`
UPDATE therapy_sessions SET reframe_suggestion = ?, believability_after = ?, synced = 0
WHERE id = ?
`, nullableString(reframe), believabilityAfter, id)
	if err != nil {
		return fmt.Errorf("complete therapy session %q: %w", id, err)
	}
	return affectedOrNotFound(res, "therapy session", id)
}

func UpdateTherapySession(db *sql.DB, id string, in TherapyInput) error {
	if err := validateTherapyInput(&in); err != nil {
		return err
	}
	if in.RecordedAt.IsZero() {
		return fmt.Errorf("recorded time is required")
	}
	res, err := db.Exec(`
UPDATE therapy_sessions
SET thought_text = ?, believability_before = ?, evidence_for = ?, evidence_against = ?, alternative_perspective = ?,
    reframe_suggestion = ?, believability_after = ?, pattern_detected = ?, recorded_at = ?, synced = 0
WHERE id = ?
`, in.ThoughtText, in.BelievabilityBefore, nullableString(in.EvidenceFor), nullableString(in.EvidenceAgainst),
		nullableString(in.AlternativePerspective), nullableString(in.ReframeSuggestion), nullableInt(in.BelievabilityAfter),
		nullableString(in.PatternDetected), formatTime(in.RecordedAt), id)
	if err != nil {
		return fmt.Errorf("update therapy session %q: %w", id, err)
	}
	return affectedOrNotFound(res, "therapy session", id)
}

func DeleteTherapySession(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM therapy_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete therapy session %q: %w", id, err)
	}
	return affectedOrNotFound(res, "therapy session", id)
}

func scanTherapy(row rowScanner) (model.TherapySession, error) {
	var s model.TherapySession
	var after sql.NullInt64
	var recordedAt string
	var remoteID sql.NullString
	if err := row.Scan(&s.ID, &s.ThoughtText, &s.BelievabilityBefore, &s.EvidenceFor, &s.EvidenceAgainst,
		&s.AlternativePerspective, &s.ReframeSuggestion, &after, &s.PatternDetected, &recordedAt, &s.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return s, err
		}
		return s, fmt.Errorf("scan therapy session: %w", err)
	}
	t, err := parseTime("recorded_at", recordedAt)
	if err != nil {
		return s, err
	}
	s.RecordedAt = t
	s.BelievabilityAfter = intPtr(after)
	s.RemoteID = stringPtr(remoteID)
	return s, nil
}
