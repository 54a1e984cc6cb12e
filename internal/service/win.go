package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

type WinInput struct {
	Description string
	Category    string
	RecordedAt  time.Time
}

type WinFilter struct {
	FromDate string
	ToDate   string
	Category string
	Unsynced bool
	Limit    int
}

const winColumns = `id, description, IFNULL(category, ''), recorded_at, synced, remote_id`

func WinInputFrom(w model.WinEntry) WinInput {
	return WinInput{Description: w.Description, Category: w.Category, RecordedAt: w.RecordedAt}
}

func validateWinInput(in *WinInput) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return fmt.Errorf("win description is required")
	}
	in.Category = normalizeName(in.Category)
	return nil
}

func CreateWinEntry(db *sql.DB, in WinInput) (string, error) {
	if err := validateWinInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO win_entries(id, description, category, recorded_at)
VALUES(?, ?, ?, ?)
`, id, in.Description, nullableString(in.Category), formatTime(nowOr(in.RecordedAt)))
	if err != nil {
		return "", fmt.Errorf("insert win entry: %w", err)
	}
	return id, nil
}

func GetWinEntry(db *sql.DB, id string) (model.WinEntry, error) {
	w, err := scanWin(db.QueryRow(`SELECT `+winColumns+` FROM win_entries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.WinEntry{}, fmt.Errorf("win entry %q: %w", id, ErrNotFound)
	}
	return w, err
}

func ListWinEntries(db *sql.DB, f WinFilter) ([]model.WinEntry, error) {
	from, to, err := dateRange(f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + winColumns + ` FROM win_entries WHERE 1=1`
	args := make([]any, 0)
	if from != "" {
		query += ` AND recorded_at >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND recorded_at < ?`
		args = append(args, to)
	}
	if strings.TrimSpace(f.Category) != "" {
		query += ` AND category = ?`
		args = append(args, normalizeName(f.Category))
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))
	return queryWins(db, query, args...)
}

// WinsSince returns wins recorded at or after since, newest first.
func WinsSince(db *sql.DB, since time.Time) ([]model.WinEntry, error) {
	return queryWins(db, `SELECT `+winColumns+` FROM win_entries WHERE recorded_at >= ? ORDER BY recorded_at DESC`, formatTime(since))
}

func UpdateWinEntry(db *sql.DB, id string, in WinInput) error {
	if err := validateWinInput(&in); err != nil {
		return err
	}
	if in.RecordedAt.IsZero() {
		return fmt.Errorf("recorded time is required")
	}
	res, err := db.Exec(`
UPDATE win_entries SET description = ?, category = ?, recorded_at = ?, synced = 0
WHERE id = ?
`, in.Description, nullableString(in.Category), formatTime(in.RecordedAt), id)
	if err != nil {
		return fmt.Errorf("update win entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "win entry", id)
}

func DeleteWinEntry(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM win_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete win entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "win entry", id)
}

func queryWins(db *sql.DB, query string, args ...any) ([]model.WinEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list win entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.WinEntry, 0)
	for rows.Next() {
		w, err := scanWin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate win entries: %w", err)
	}
	return out, nil
}

func scanWin(row rowScanner) (model.WinEntry, error) {
	var w model.WinEntry
	var recordedAt string
	var remoteID sql.NullString
	if err := row.Scan(&w.ID, &w.Description, &w.Category, &recordedAt, &w.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return w, err
		}
		return w, fmt.Errorf("scan win entry: %w", err)
	}
	t, err := parseTime("recorded_at", recordedAt)
	if err != nil {
		return w, err
	}
	w.RecordedAt = t
	w.RemoteID = stringPtr(remoteID)
	return w, nil
}
