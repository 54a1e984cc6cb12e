package syncer_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/service"
	"github.com/neurothrive/thrive/internal/syncer"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqldb, err := db.OpenMigrated(filepath.Join(t.TempDir(), "thrive.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return sqldb
}

type remoteCall struct {
	resource string
	id       string
	payload  map[string]any
}

type fakeRemote struct {
	mu      sync.Mutex
	seq     int
	creates []remoteCall
	updates []remoteCall

	failCreate func(resource string, payload map[string]any) error
	failUpdate func(resource, id string) error
	query      func(q string) []json.RawMessage
	queryErr   func(q string) error

	// When set, Create signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeRemote) Create(ctx context.Context, resource string, payload any) (crm.CreateResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	p := payload.(map[string]any)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, remoteCall{resource: resource, payload: p})
	if f.failCreate != nil {
		if err := f.failCreate(resource, p); err != nil {
			return crm.CreateResult{}, err
		}
	}
	f.seq++
	return crm.CreateResult{ID: fmt.Sprintf("a0%s%03d", resource[:2], f.seq), Success: true}, nil
}

func (f *fakeRemote) Update(ctx context.Context, resource, id string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, remoteCall{resource: resource, id: id, payload: payload.(map[string]any)})
	if f.failUpdate != nil {
		return f.failUpdate(resource, id)
	}
	return nil
}

func (f *fakeRemote) Query(ctx context.Context, q string) ([]json.RawMessage, error) {
	if f.queryErr != nil {
		if err := f.queryErr(q); err != nil {
			return nil, err
		}
	}
	if f.query == nil {
		return nil, nil
	}
	return f.query(q), nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

func addMood(t *testing.T, sqlDB *sql.DB, mood int, notes string) string {
	t.Helper()
	id, err := service.CreateMoodEntry(sqlDB, service.MoodInput{MoodLevel: mood, EnergyLevel: 5, PainLevel: 2, Notes: notes})
	if err != nil {
		t.Fatalf("create mood: %v", err)
	}
	return id
}

func TestSyncAllPushesOnlyUnsyncedRows(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	addMood(t, sqlDB, 7, "")
	addMood(t, sqlDB, 4, "tired")
	already := addMood(t, sqlDB, 6, "")
	if err := service.MarkSynced(sqlDB, service.TableMoodEntries, already, "a0Mo999"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if _, err := service.CreateWinEntry(sqlDB, service.WinInput{Description: "shipped the release"}); err != nil {
		t.Fatalf("create win: %v", err)
	}

	remote := &fakeRemote{}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	res, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if res.Total != 3 || res.Counts["mood_entries"] != 2 || res.Counts["win_entries"] != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if remote.calls() != 3 || len(remote.updates) != 0 {
		t.Fatalf("expected three creates, got %d creates %d updates", len(remote.creates), len(remote.updates))
	}
	for _, c := range remote.creates {
		if c.resource == "Mood_Entry__c" && c.payload["External_Id__c"] == already {
			t.Fatalf("synced row was pushed again")
		}
	}

	pending, err := service.PendingCounts(sqlDB)
	if err != nil {
		t.Fatalf("pending counts: %v", err)
	}
	for table, n := range pending {
		if n != 0 {
			t.Fatalf("expected nothing pending in %s, got %d", table, n)
		}
	}

	res, err = r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("second SyncAll: %v", err)
	}
	if res.Total != 0 || remote.calls() != 3 {
		t.Fatalf("idle pass must not call the remote, total=%d calls=%d", res.Total, remote.calls())
	}
}

func TestSyncUpdatesEditedRowsInPlace(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	id := addMood(t, sqlDB, 5, "")
	remote := &fakeRemote{}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	if _, err := r.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	first, err := service.GetMoodEntry(sqlDB, id)
	if err != nil {
		t.Fatalf("get mood: %v", err)
	}
	if !first.Synced || first.RemoteID == nil {
		t.Fatalf("expected synced row with remote id, got %+v", first)
	}

	in := service.MoodInputFrom(first)
	in.MoodLevel = 8
	if err := service.UpdateMoodEntry(sqlDB, id, in); err != nil {
		t.Fatalf("update mood: %v", err)
	}
	if _, err := r.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll after edit: %v", err)
	}
	if len(remote.creates) != 1 || len(remote.updates) != 1 {
		t.Fatalf("expected one create then one update, got %d/%d", len(remote.creates), len(remote.updates))
	}
	if remote.updates[0].id != *first.RemoteID || remote.updates[0].payload["Mood_Level__c"] != 8 {
		t.Fatalf("unexpected update call %+v", remote.updates[0])
	}
	after, _ := service.GetMoodEntry(sqlDB, id)
	if !after.Synced || *after.RemoteID != *first.RemoteID {
		t.Fatalf("update must keep remote id, got %+v", after)
	}
}

func TestSyncRowFailuresAreCountedAndSkipped(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	addMood(t, sqlDB, 3, "ok")
	addMood(t, sqlDB, 3, "fail")
	addMood(t, sqlDB, 3, "ok")
	stale := addMood(t, sqlDB, 3, "stale")
	if err := service.MarkSynced(sqlDB, service.TableMoodEntries, stale, "a0gone"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := service.MarkUnsynced(sqlDB, service.TableMoodEntries, stale); err != nil {
		t.Fatalf("mark unsynced: %v", err)
	}

	before, _ := service.CountUnsynced(sqlDB, service.TableMoodEntries)
	remote := &fakeRemote{
		failCreate: func(resource string, p map[string]any) error {
			if p["Notes__c"] == "fail" {
				return &crm.APIError{StatusCode: 400, Method: "POST", Path: resource}
			}
			return nil
		},
		failUpdate: func(resource, id string) error {
			return &crm.APIError{StatusCode: 404, Method: "PATCH", Path: resource + "/" + id}
		},
	}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	res, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("row failures must not fail the pass: %v", err)
	}
	if res.Counts["mood_entries"] != 2 || res.Failed["mood_entries"] != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	after, _ := service.CountUnsynced(sqlDB, service.TableMoodEntries)
	if after != before-res.Counts["mood_entries"] {
		t.Fatalf("expected %d pending, got %d", before-res.Counts["mood_entries"], after)
	}
	got, _ := service.GetMoodEntry(sqlDB, stale)
	if got.Synced || got.RemoteID == nil || *got.RemoteID != "a0gone" {
		t.Fatalf("failed update must leave the row unsynced with its remote id, got %+v", got)
	}
}

func TestSyncAllRejectsConcurrentPass(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	addMood(t, sqlDB, 5, "")
	remote := &fakeRemote{started: make(chan struct{}), release: make(chan struct{})}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}

	done := make(chan error, 1)
	go func() {
		_, err := r.SyncAll(context.Background())
		done <- err
	}()
	<-remote.started
	if _, err := r.SyncAll(context.Background()); !errors.Is(err, syncer.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
}

func TestSyncLockExcludesSecondProcessOnSameDatabase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "thrive.db")
	first, err := db.OpenMigrated(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer first.Close()
	second, err := db.OpenMigrated(path)
	if err != nil {
		t.Fatalf("open second handle: %v", err)
	}
	defer second.Close()

	addMood(t, first, 5, "")
	lockPath := filepath.Join(dir, "sync.lock")
	slow := &fakeRemote{started: make(chan struct{}), release: make(chan struct{})}
	other := &fakeRemote{}
	a := &syncer.Reconciler{DB: first, Remote: slow, LockPath: lockPath}
	b := &syncer.Reconciler{DB: second, Remote: other, LockPath: lockPath}

	done := make(chan error, 1)
	go func() {
		_, err := a.SyncAll(context.Background())
		done <- err
	}()
	<-slow.started
	if _, err := b.SyncAll(context.Background()); !errors.Is(err, syncer.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress from the second handle, got %v", err)
	}
	if _, err := b.Run(context.Background(), syncer.TriggerManual, false); !errors.Is(err, syncer.ErrSyncInProgress) {
		t.Fatalf("expected Run to be refused too, got %v", err)
	}
	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if slow.calls() != 1 || other.calls() != 0 {
		t.Fatalf("expected exactly one create, got %d and %d", slow.calls(), other.calls())
	}
	runs, err := service.ListSyncRuns(second, 10)
	if err != nil {
		t.Fatalf("list sync runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("refused run must not be recorded, got %+v", runs)
	}

	res, err := b.SyncAll(context.Background())
	if err != nil || res.Total != 0 {
		t.Fatalf("lock must be free after the first pass: %+v %v", res, err)
	}
}

func TestSyncCancellationStopsBetweenRows(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	addMood(t, sqlDB, 5, "")
	addMood(t, sqlDB, 5, "")
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeRemote{failCreate: func(string, map[string]any) error {
		cancel()
		return nil
	}}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	if _, err := r.SyncAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(remote.creates) != 1 {
		t.Fatalf("expected the loop to stop after one row, got %d creates", len(remote.creates))
	}
}

func TestMealPlanItemsReferenceRemoteParents(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	if _, err := service.ReplaceRecipes(sqlDB, []service.RecipeImport{{RemoteID: "a0R1", Name: "Lentil Soup"}}, time.Now()); err != nil {
		t.Fatalf("replace recipes: %v", err)
	}
	recipe, err := service.ResolveRecipe(sqlDB, "Lentil Soup")
	if err != nil {
		t.Fatalf("resolve recipe: %v", err)
	}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	if _, err := service.CreateMealPlan(sqlDB, service.MealPlanInput{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		Items:     []service.MealPlanItemInput{{RecipeID: recipe.ID, DayOfWeek: 1, MealType: "dinner"}},
	}); err != nil {
		t.Fatalf("create meal plan: %v", err)
	}

	remote := &fakeRemote{}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	if _, err := r.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	var planRemote string
	var item map[string]any
	for i, c := range remote.creates {
		switch c.resource {
		case "Meal_Plan__c":
			planRemote = fmt.Sprintf("a0Me%03d", i+1)
			if c.payload["Start_Date__c"] != "2026-03-02" {
				t.Fatalf("unexpected plan payload %v", c.payload)
			}
		case "Meal_Plan_Item__c":
			item = c.payload
		}
	}
	if item == nil || item["Meal_Plan__c"] != planRemote || item["Meal__c"] != "a0R1" {
		t.Fatalf("item must carry parent remote ids, got %v (plan %s)", item, planRemote)
	}
}

func TestPullReplacesRecipesAndCoupons(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	remote := &fakeRemote{query: func(q string) []json.RawMessage {
		switch {
		case strings.Contains(q, "FROM Meal_Ingredient__c") && strings.Contains(q, "'a0R1'"):
			return []json.RawMessage{
				json.RawMessage(`{"Id":"a0I1","Meal__c":"a0R1","Ingredient_Name__c":"Oats","Quantity__c":"1","Unit__c":"cup"}`),
				json.RawMessage(`{"Id":"a0I2","Meal__c":"a0R1","Ingredient_Name__c":"Milk","Quantity__c":0.5,"Unit__c":"cup"}`),
			}
		case strings.Contains(q, "FROM Meal_Ingredient__c"):
			return nil
		case strings.Contains(q, "FROM Meal__c"):
			return []json.RawMessage{
				json.RawMessage(`{"Id":"a0R1","Name":"Overnight Oats","Meal_Type__c":"Breakfast","Prep_Time_Minutes__c":5.0,"Cook_Time_Minutes__c":null,"Instructions__c":"Soak."}`),
				json.RawMessage(`{"Id":"a0R2","Name":"Lentil Soup","Meal_Type__c":null}`),
			}
		case strings.Contains(q, "FROM Coupon__c"):
			return []json.RawMessage{
				json.RawMessage(`{"Id":"a0C1","Item_Name__c":"Oats","Discount_Amount__c":1.5,"Discount_Type__c":"Amount","Expiration_Date__c":"2099-01-31","Is_Active__c":true}`),
			}
		}
		return nil
	}}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}

	n, err := r.PullRecipes(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("PullRecipes: n=%d err=%v", n, err)
	}
	oats, err := service.ResolveRecipe(sqlDB, "Overnight Oats")
	if err != nil {
		t.Fatalf("resolve recipe: %v", err)
	}
	if oats.MealType != "breakfast" || oats.PrepTimeMin == nil || *oats.PrepTimeMin != 5 || oats.CookTimeMin != nil {
		t.Fatalf("unexpected recipe %+v", oats)
	}
	ings, err := service.ListIngredients(sqlDB, oats.ID)
	if err != nil {
		t.Fatalf("list ingredients: %v", err)
	}
	if len(ings) != 2 {
		t.Fatalf("expected two ingredients, got %+v", ings)
	}
	for _, ing := range ings {
		if ing.Name == "Milk" && ing.Quantity != "0.5" {
			t.Fatalf("numeric quantity must be kept as text, got %q", ing.Quantity)
		}
	}

	n, err = r.PullCoupons(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("PullCoupons: n=%d err=%v", n, err)
	}
	coupons, err := service.MatchCoupons(sqlDB, []string{"oats"})
	if err != nil || len(coupons) != 1 || coupons[0].DiscountType != "amount" {
		t.Fatalf("expected matching coupon, got %+v %v", coupons, err)
	}
	if remote.calls() != 0 {
		t.Fatalf("pulls must not push anything")
	}
}

func TestPullKeepsIngredientsWhenTheirQueryFails(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	if _, err := service.ReplaceRecipes(sqlDB, []service.RecipeImport{{
		RemoteID:    "a0R1",
		Name:        "Overnight Oats",
		Ingredients: []service.IngredientImport{{RemoteID: "a0I1", Name: "Oats", Quantity: "1", Unit: "cup"}},
	}}, time.Now()); err != nil {
		t.Fatalf("seed recipes: %v", err)
	}

	remote := &fakeRemote{
		query: func(q string) []json.RawMessage {
			switch {
			case strings.Contains(q, "FROM Meal_Ingredient__c"):
				return []json.RawMessage{json.RawMessage(`{"Id":"a0I9","Meal__c":"a0R2","Ingredient_Name__c":"Lentils","Quantity__c":"200","Unit__c":"g"}`)}
			case strings.Contains(q, "FROM Meal__c"):
				return []json.RawMessage{
					json.RawMessage(`{"Id":"a0R1","Name":"Overnight Oats","Meal_Type__c":"Breakfast"}`),
					json.RawMessage(`{"Id":"a0R2","Name":"Lentil Soup","Meal_Type__c":"Dinner"}`),
				}
			}
			return nil
		},
		queryErr: func(q string) error {
			if strings.Contains(q, "FROM Meal_Ingredient__c") && strings.Contains(q, "'a0R1'") {
				return &crm.APIError{StatusCode: 500, Method: "GET", Path: "query"}
			}
			return nil
		},
	}
	r := &syncer.Reconciler{DB: sqlDB, Remote: remote}
	n, err := r.PullRecipes(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("one failed ingredient query must not abort the pull: n=%d err=%v", n, err)
	}

	oats, err := service.ResolveRecipe(sqlDB, "Overnight Oats")
	if err != nil {
		t.Fatalf("resolve oats: %v", err)
	}
	ings, _ := service.ListIngredients(sqlDB, oats.ID)
	if len(ings) != 1 || ings[0].Name != "Oats" {
		t.Fatalf("expected previously pulled ingredients to be kept, got %+v", ings)
	}
	soup, err := service.ResolveRecipe(sqlDB, "Lentil Soup")
	if err != nil {
		t.Fatalf("resolve soup: %v", err)
	}
	ings, _ = service.ListIngredients(sqlDB, soup.ID)
	if len(ings) != 1 || ings[0].Name != "Lentils" {
		t.Fatalf("expected soup ingredients, got %+v", ings)
	}
}

func TestRunRecordsSyncRun(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	addMood(t, sqlDB, 5, "")
	r := &syncer.Reconciler{DB: sqlDB, Remote: &fakeRemote{}}
	if _, err := r.Run(context.Background(), syncer.TriggerManual, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs, err := service.ListSyncRuns(sqlDB, 10)
	if err != nil {
		t.Fatalf("list sync runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != "manual" || runs[0].TotalSynced != 1 || runs[0].FinishedAt == nil || runs[0].Error != "" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].Counts["mood_entries"] != 1 {
		t.Fatalf("expected per-table counts, got %v", runs[0].Counts)
	}
}

func TestReconcilerAgainstCRMClient(t *testing.T) {
	t.Parallel()
	sqlDB := newTestDB(t)
	defer sqlDB.Close()

	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"Description__c":"ran 5k"`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"a0W000001","success":true,"errors":[]}`)
	}))
	defer srv.Close()

	id, err := service.CreateWinEntry(sqlDB, service.WinInput{Description: "ran 5k"})
	if err != nil {
		t.Fatalf("create win: %v", err)
	}
	r := &syncer.Reconciler{DB: sqlDB, Remote: &crm.Client{BaseURL: srv.URL}}
	res, err := r.SyncAll(context.Background())
	if err != nil || res.Total != 1 {
		t.Fatalf("SyncAll: %+v %v", res, err)
	}
	win, _ := service.GetWinEntry(sqlDB, id)
	if !win.Synced || win.RemoteID == nil || *win.RemoteID != "a0W000001" {
		t.Fatalf("unexpected win %+v", win)
	}
	if len(paths) != 1 || paths[0] != "POST /services/data/v59.0/sobjects/Win_Entry__c" {
		t.Fatalf("unexpected requests %v", paths)
	}
}
