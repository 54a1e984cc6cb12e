package service

import (
	"database/sql"
	"fmt"
	"strings"
)

// Table names a locally owned table whose rows are pushed to the remote
// backend. Only these tables accept sync-state mutations.
type Table string

const (
	TableMoodEntries     Table = "mood_entries"
	TableWinEntries      Table = "win_entries"
	TableJobPostings     Table = "job_postings"
	TableDailyRoutines   Table = "daily_routines"
	TableTherapySessions Table = "therapy_sessions"
	TableMealEntries     Table = "meal_entries"
	TableMealPlans       Table = "meal_plans"
	TableMealPlanItems   Table = "meal_plan_items"
	TableGroceryItems    Table = "grocery_items"
)

// PushTables lists every push-synced table in a stable order.
var PushTables = []Table{
	TableMoodEntries,
	TableWinEntries,
	TableJobPostings,
	TableDailyRoutines,
	TableTherapySessions,
	TableMealEntries,
	TableMealPlans,
	TableMealPlanItems,
	TableGroceryItems,
}

func (t Table) validate() error {
	for _, known := range PushTables {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("table %q is not sync-tracked", string(t))
}

// MarkSynced records a successful create: the row gets its remote id and
// leaves the unsynced set.
func MarkSynced(db *sql.DB, table Table, id, remoteID string) error {
	if err := table.validate(); err != nil {
		return err
	}
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return fmt.Errorf("remote id is required to mark %s %q synced", table, id)
	}
	res, err := db.Exec(fmt.Sprintf(`UPDATE %s SET synced = 1, remote_id = ? WHERE id = ?`, table), remoteID, id)
	if err != nil {
		return fmt.Errorf("mark %s %q synced: %w", table, id, err)
	}
	return affectedOrNotFound(res, string(table), id)
}

// MarkUpdated records a successful update of a row that already has a remote
// id. The remote id is left untouched.
func MarkUpdated(db *sql.DB, table Table, id string) error {
	if err := table.validate(); err != nil {
		return err
	}
	res, err := db.Exec(fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE id = ? AND remote_id IS NOT NULL`, table), id)
	if err != nil {
		return fmt.Errorf("mark %s %q updated: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve affected rows for %s %q: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q has no remote id or does not exist: %w", table, id, ErrNotFound)
	}
	return nil
}

// MarkUnsynced puts a row back into the push set, keeping its remote id.
func MarkUnsynced(db *sql.DB, table Table, id string) error {
	if err := table.validate(); err != nil {
		return err
	}
	res, err := db.Exec(fmt.Sprintf(`UPDATE %s SET synced = 0 WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("mark %s %q unsynced: %w", table, id, err)
	}
	return affectedOrNotFound(res, string(table), id)
}

func CountUnsynced(db *sql.DB, table Table) (int, error) {
	if err := table.validate(); err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE synced = 0`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsynced %s: %w", table, err)
	}
	return n, nil
}

// PendingCounts reports unsynced rows per push table.
func PendingCounts(db *sql.DB) (map[string]int, error) {
	out := make(map[string]int, len(PushTables))
	for _, t := range PushTables {
		n, err := CountUnsynced(db, t)
		if err != nil {
			return nil, err
		}
		out[string(t)] = n
	}
	return out, nil
}

// unsyncedClause is appended to list queries when a caller asks for pending
// rows only.
func unsyncedClause(alias string, unsynced bool) string {
	if !unsynced {
		return ""
	}
	if alias != "" {
		return ` AND ` + alias + `.synced = 0`
	}
	return ` AND synced = 0`
}

// PendingRow identifies one row waiting to be pushed.
type PendingRow struct {
	ID       string
	RemoteID *string
}

// ListUnsynced returns every row of table with synced = 0, oldest insert
// first.
func ListUnsynced(db *sql.DB, table Table) ([]PendingRow, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	rows, err := db.Query(fmt.Sprintf(`SELECT id, remote_id FROM %s WHERE synced = 0 ORDER BY rowid ASC`, table))
	if err != nil {
		return nil, fmt.Errorf("list unsynced %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]PendingRow, 0)
	for rows.Next() {
		var p PendingRow
		var remoteID sql.NullString
		if err := rows.Scan(&p.ID, &remoteID); err != nil {
			return nil, fmt.Errorf("scan unsynced %s: %w", table, err)
		}
		p.RemoteID = stringPtr(remoteID)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unsynced %s: %w", table, err)
	}
	return out, nil
}

// RemoteIDFor resolves the remote id of a row in any push table, used to
// reference already-pushed parents.
func RemoteIDFor(db *sql.DB, table Table, id string) (string, bool, error) {
	if err := table.validate(); err != nil {
		return "", false, err
	}
	var remoteID sql.NullString
	err := db.QueryRow(fmt.Sprintf(`SELECT remote_id FROM %s WHERE id = ?`, table), id).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", false, fmt.Errorf("%s %q: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return "", false, fmt.Errorf("get remote id for %s %q: %w", table, id, err)
	}
	return remoteID.String, remoteID.Valid, nil
}
