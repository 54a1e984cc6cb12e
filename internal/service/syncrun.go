package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

func StartSyncRun(db *sql.DB, trigger string, startedAt time.Time) (int64, error) {
	res, err := db.Exec(`INSERT INTO sync_runs(trigger_source, started_at) VALUES(?, ?)`, trigger, formatTime(nowOr(startedAt)))
	if err != nil {
		return 0, fmt.Errorf("insert sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve sync run id: %w", err)
	}
	return id, nil
}

func FinishSyncRun(db *sql.DB, id int64, finishedAt time.Time, synced, failed int, counts map[string]int, runErr error) error {
	countsJSON := ""
	if len(counts) > 0 {
		b, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("encode sync counts: %w", err)
		}
		countsJSON = string(b)
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	res, err := db.Exec(`
UPDATE sync_runs SET finished_at = ?, total_synced = ?, total_failed = ?, counts_json = ?, error = ?
WHERE id = ?
`, formatTime(nowOr(finishedAt)), synced, failed, countsJSON, errText, id)
	if err != nil {
		return fmt.Errorf("finish sync run %d: %w", id, err)
	}
	return affectedOrNotFound(res, "sync run", fmt.Sprint(id))
}

func ListSyncRuns(db *sql.DB, limit int) ([]model.SyncRun, error) {
	rows, err := db.Query(`
SELECT id, trigger_source, started_at, finished_at, total_synced, total_failed, counts_json, error
FROM sync_runs
ORDER BY id DESC
LIMIT ?
`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	out := make([]model.SyncRun, 0)
	for rows.Next() {
		var r model.SyncRun
		var started, countsJSON string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Trigger, &started, &finished, &r.TotalSynced, &r.TotalFailed, &countsJSON, &r.Error); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if r.StartedAt, err = parseTime("started_at", started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime("finished_at", finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		if countsJSON != "" {
			if err := json.Unmarshal([]byte(countsJSON), &r.Counts); err != nil {
				return nil, fmt.Errorf("decode counts for sync run %d: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return out, nil
}
