package service_test

import (
	"errors"
	"testing"

	"github.com/neurothrive/thrive/internal/service"
)

func TestListUnsyncedNeverReturnsSyncedRows(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	ids := make([]string, 0, 4)
	for _, d := range []string{"one", "two", "three", "four"} {
		id, err := service.CreateWinEntry(db, service.WinInput{Description: d})
		if err != nil {
			t.Fatalf("create win: %v", err)
		}
		ids = append(ids, id)
	}
	if err := service.MarkSynced(db, service.TableWinEntries, ids[1], "remote-2"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	pending, err := service.ListUnsynced(db, service.TableWinEntries)
	if err != nil {
		t.Fatalf("list unsynced: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 unsynced rows, got %d", len(pending))
	}
	for _, p := range pending {
		if p.ID == ids[1] {
			t.Fatalf("synced row %s returned as unsynced", p.ID)
		}
		w, err := service.GetWinEntry(db, p.ID)
		if err != nil {
			t.Fatalf("get win: %v", err)
		}
		if w.Synced {
			t.Fatalf("row %s is synced but listed as pending", p.ID)
		}
	}

	w, err := service.GetWinEntry(db, ids[1])
	if err != nil {
		t.Fatalf("get synced win: %v", err)
	}
	if !w.Synced || w.RemoteID == nil || *w.RemoteID != "remote-2" {
		t.Fatalf("expected synced win with remote id remote-2, got %+v", w.SyncState)
	}
}

func TestMarkSyncedRequiresRemoteID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	id, err := service.CreateWinEntry(db, service.WinInput{Description: "shipped"})
	if err != nil {
		t.Fatalf("create win: %v", err)
	}
	if err := service.MarkSynced(db, service.TableWinEntries, id, "  "); err == nil {
		t.Fatalf("expected blank remote id to be rejected")
	}
	if err := service.MarkSynced(db, service.TableWinEntries, "missing", "r"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
	if err := service.MarkSynced(db, service.Table("recipes"), id, "r"); err == nil {
		t.Fatalf("expected pull-only table to be rejected")
	}
}

func TestMarkUpdatedNeedsExistingRemoteID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	id, err := service.CreateJobPosting(db, service.JobInput{JobTitle: "Engineer", CompanyName: "Acme", URL: "https://acme.test/jobs/1"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := service.MarkUpdated(db, service.TableJobPostings, id); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected update without remote id to fail, got %v", err)
	}
	if err := service.MarkSynced(db, service.TableJobPostings, id, "r-job"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := service.MarkUnsynced(db, service.TableJobPostings, id); err != nil {
		t.Fatalf("mark unsynced: %v", err)
	}
	if err := service.MarkUpdated(db, service.TableJobPostings, id); err != nil {
		t.Fatalf("mark updated: %v", err)
	}
	j, err := service.GetJobPosting(db, id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !j.Synced || j.RemoteID == nil || *j.RemoteID != "r-job" {
		t.Fatalf("unexpected sync state after update: %+v", j.SyncState)
	}
}

func TestPendingCountsCoversEveryPushTable(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	if _, err := service.CreateGroceryItem(db, service.GroceryInput{ItemName: "oats"}); err != nil {
		t.Fatalf("create grocery: %v", err)
	}
	counts, err := service.PendingCounts(db)
	if err != nil {
		t.Fatalf("pending counts: %v", err)
	}
	if len(counts) != len(service.PushTables) {
		t.Fatalf("expected %d tables, got %d", len(service.PushTables), len(counts))
	}
	if counts[string(service.TableGroceryItems)] != 1 {
		t.Fatalf("expected one pending grocery item, got %d", counts[string(service.TableGroceryItems)])
	}
}
