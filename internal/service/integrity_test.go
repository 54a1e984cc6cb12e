package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/service"
)

func TestRunDoctorFindsAndFixesOrphans(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	ids := seedRecipes(t, sqlDB)
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.Local)
	if _, err := service.CreateMealPlan(sqlDB, service.MealPlanInput{
		StartDate: start,
		EndDate:   start,
		Items:     []service.MealPlanItemInput{{RecipeID: ids["a0R2"], DayOfWeek: 0, MealType: "dinner"}},
	}); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	// Simulate rows written while foreign keys were off.
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("disable fks: %v", err)
	}
	if _, err := sqlDB.Exec(`DELETE FROM recipes WHERE id = ?`, ids["a0R1"]); err != nil {
		t.Fatalf("delete recipe: %v", err)
	}
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("enable fks: %v", err)
	}

	report, err := service.RunDoctor(sqlDB, false)
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if report.OrphanIngredients != 2 {
		t.Fatalf("expected 2 orphan ingredients, got %d", report.OrphanIngredients)
	}
	if report.ItemsAwaitingParent != 1 {
		t.Fatalf("expected 1 item awaiting its plan, got %d", report.ItemsAwaitingParent)
	}
	if report.Healthy() {
		t.Fatalf("expected unhealthy report")
	}

	fixed, err := service.RunDoctor(sqlDB, true)
	if err != nil {
		t.Fatalf("doctor fix: %v", err)
	}
	if fixed.FixedRows != 2 {
		t.Fatalf("expected 2 fixed rows, got %d", fixed.FixedRows)
	}
	after, err := service.RunDoctor(sqlDB, false)
	if err != nil {
		t.Fatalf("doctor after fix: %v", err)
	}
	if !after.Healthy() {
		t.Fatalf("expected healthy report after fix: %+v", after)
	}
}

func TestRestoreRelinksRowsSyncedAfterTheSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "thrive.db")
	live, err := db.OpenMigrated(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	before, err := service.CreateWinEntry(live, service.WinInput{Description: "before the snapshot"})
	if err != nil {
		t.Fatalf("create win: %v", err)
	}
	info, err := service.CreateBackup(live, filepath.Join(dir, "backups", "b1.db"))
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if info.Checksum == "" || info.SizeBytes == 0 {
		t.Fatalf("unexpected backup info: %+v", info)
	}
	if _, err := service.CreateBackup(live, info.Path); err == nil {
		t.Fatalf("expected an existing snapshot to be left alone")
	}
	list, err := service.ListBackups(filepath.Join(dir, "backups"))
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one backup, got %d (%v)", len(list), err)
	}

	if err := service.MarkSynced(live, service.TableWinEntries, before, "a0W1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	after, err := service.CreateWinEntry(live, service.WinInput{Description: "after the snapshot"})
	if err != nil {
		t.Fatalf("create win: %v", err)
	}
	if err := service.MarkSynced(live, service.TableWinEntries, after, "a0W2"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := live.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	if _, err := service.RestoreBackup(info.Path, path, false); err == nil {
		t.Fatalf("expected restore without force to refuse to replace the database")
	}
	previous, err := service.RestoreBackup(info.Path, path, true)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if previous != path+service.PreRestoreSuffix {
		t.Fatalf("unexpected previous path %q", previous)
	}

	restored, err := db.OpenMigrated(path)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()
	report, err := service.RelinkRemoteIDs(restored, previous)
	if err != nil {
		t.Fatalf("relink: %v", err)
	}
	if report.Relinked["win_entries"] != 1 || report.Orphaned["win_entries"] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	win, err := service.GetWinEntry(restored, before)
	if err != nil {
		t.Fatalf("get win: %v", err)
	}
	if win.RemoteID == nil || *win.RemoteID != "a0W1" || win.Synced {
		t.Fatalf("expected relinked row queued as an update, got %+v", win)
	}
	if _, err := service.GetWinEntry(restored, after); err == nil {
		t.Fatalf("row created after the snapshot must not survive the restore")
	}
	pending, err := service.CountUnsynced(restored, service.TableWinEntries)
	if err != nil || pending != 1 {
		t.Fatalf("expected one pending win, got %d (%v)", pending, err)
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sqldb, err := db.OpenMigrated(filepath.Join(dir, "thrive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()
	info, err := service.CreateBackup(sqldb, filepath.Join(dir, "b.db"))
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if err := os.WriteFile(info.Path+".sha256", []byte("deadbeef\n"), 0o600); err != nil {
		t.Fatalf("tamper checksum: %v", err)
	}
	target := filepath.Join(dir, "restored.db")
	if _, err := service.RestoreBackup(info.Path, target, false); err == nil {
		t.Fatalf("expected checksum mismatch")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("nothing must be written on mismatch, stat err=%v", err)
	}
}
