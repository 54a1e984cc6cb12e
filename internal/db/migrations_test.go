package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neurothrive/thrive/internal/db"
)

func TestApplyMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "thrive.db")
	sqldb, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("first apply migrations: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("second apply migrations: %v", err)
	}

	version, err := db.CurrentVersion(sqldb)
	if err != nil || version != db.LatestVersion() {
		t.Fatalf("CurrentVersion = %d, %v; want %d", version, err, db.LatestVersion())
	}

	var migrationCount int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&migrationCount); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if migrationCount != db.LatestVersion() {
		t.Fatalf("expected %d migration versions, got %d", db.LatestVersion(), migrationCount)
	}

	tables := []string{
		"mood_entries", "win_entries", "job_postings", "daily_routines", "therapy_sessions",
		"meal_entries", "recipes", "ingredients", "meal_plans", "meal_plan_items",
		"grocery_items", "coupons", "app_config", "sync_runs",
	}
	for _, table := range tables {
		var n int
		if err := sqldb.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n); err != nil {
			t.Fatalf("check %s table: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("expected %s table to exist", table)
		}
	}

	var wakeCol int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM pragma_table_info('daily_routines') WHERE name = 'wake_time'`).Scan(&wakeCol); err != nil {
		t.Fatalf("check daily_routines wake_time column: %v", err)
	}
	if wakeCol != 1 {
		t.Fatalf("expected wake_time column in daily_routines table")
	}

	var timeOfDayCol int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM pragma_table_info('mood_entries') WHERE name = 'time_of_day'`).Scan(&timeOfDayCol); err != nil {
		t.Fatalf("check mood_entries time_of_day column: %v", err)
	}
	if timeOfDayCol != 1 {
		t.Fatalf("expected time_of_day column in mood_entries table")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db file to exist: %v", err)
	}
}

func TestSyncedRequiresRemoteID(t *testing.T) {
	t.Parallel()

	sqldb, err := db.OpenMigrated(filepath.Join(t.TempDir(), "thrive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	_, err = sqldb.Exec(`
INSERT INTO win_entries(id, description, recorded_at, synced, remote_id)
VALUES('w1', 'shipped', '2026-01-01T00:00:00.000000000Z', 1, NULL)
`)
	if err == nil {
		t.Fatalf("expected check constraint to reject synced row without remote id")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	t.Parallel()

	sqldb, err := db.OpenMigrated(filepath.Join(t.TempDir(), "thrive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	_, err = sqldb.Exec(`
INSERT INTO ingredients(id, recipe_id, ingredient_name, quantity, remote_id)
VALUES('i1', 'missing', 'oats', '1', 'r-i1')
`)
	if err == nil {
		t.Fatalf("expected foreign key violation for missing recipe")
	}
}
