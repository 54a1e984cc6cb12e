// Package syncer pushes locally recorded rows to the CRM, pulls the
// read-only recipe and coupon catalogues, and schedules periodic passes.
package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/neurothrive/thrive/internal/lock"
	"github.com/neurothrive/thrive/internal/logging"
	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/service"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// Remote is the part of the CRM client used here. *crm.Client satisfies it.
type Remote interface {
	Create(ctx context.Context, sobject string, payload any) (crm.CreateResult, error)
	Update(ctx context.Context, sobject, id string, payload any) error
	Query(ctx context.Context, q string) ([]json.RawMessage, error)
}

// Count is the outcome of one entity pass.
type Count struct {
	Synced int
	Failed int
}

// Result aggregates a full pass, keyed by table name.
type Result struct {
	Counts map[string]int `json:"counts" yaml:"counts"`
	Failed map[string]int `json:"failed" yaml:"failed"`
	Total  int            `json:"total" yaml:"total"`
}

func (r Result) TotalFailed() int {
	n := 0
	for _, v := range r.Failed {
		n += v
	}
	return n
}

type Reconciler struct {
	DB       *sql.DB
	Remote   Remote
	Logger   *slog.Logger
	Entities []Entity
	Now      func() time.Time
	// LockPath, when set, is flocked for the length of every pass so that
	// separate processes sharing the database never push the same rows.
	LockPath string

	running atomic.Bool
}

// acquire claims the single pass slot, in process and then on disk.
func (r *Reconciler) acquire() (func(), error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	if r.LockPath == "" {
		return func() { r.running.Store(false) }, nil
	}
	l, err := lock.TryAcquire(r.LockPath)
	if err != nil {
		r.running.Store(false)
		if errors.Is(err, lock.ErrHeld) {
			return nil, ErrSyncInProgress
		}
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			logging.OrDiscard(r.Logger).Warn("sync_lock_release_failed", "error", err.Error())
		}
		r.running.Store(false)
	}, nil
}

func (r *Reconciler) entities() []Entity {
	if len(r.Entities) == 0 {
		return DefaultEntities()
	}
	return r.Entities
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// SyncEntity pushes every unsynced row of one entity, one at a time. A row
// without a remote id is created; a row with one is updated. Row failures are
// logged and counted without stopping the pass.
func (r *Reconciler) SyncEntity(ctx context.Context, e Entity) (Count, error) {
	release, err := r.acquire()
	if err != nil {
		return Count{}, err
	}
	defer release()
	return r.syncEntity(ctx, e)
}

func (r *Reconciler) syncEntity(ctx context.Context, e Entity) (Count, error) {
	logger := logging.OrDiscard(r.Logger).With("table", e.Name())
	pending, err := service.ListUnsynced(r.DB, e.Table)
	if err != nil {
		return Count{}, err
	}

	var c Count
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if err := r.pushRow(ctx, e, row); err != nil {
			c.Failed++
			attrs := []any{"id", row.ID, "error", err.Error()}
			if row.RemoteID != nil && crm.IsNotFound(err) {
				attrs = append(attrs, "remote_id", *row.RemoteID, "remote_missing", true)
			}
			logger.Warn("sync_row_failed", attrs...)
			continue
		}
		c.Synced++
	}
	if len(pending) > 0 {
		logger.Info("sync_entity_finished", "synced", c.Synced, "failed", c.Failed)
	}
	return c, nil
}

func (r *Reconciler) pushRow(ctx context.Context, e Entity, row service.PendingRow) error {
	body, err := e.Payload(r.DB, row.ID)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	if row.RemoteID == nil || *row.RemoteID == "" {
		res, err := r.Remote.Create(ctx, e.Resource, body)
		if err != nil {
			return err
		}
		return service.MarkSynced(r.DB, e.Table, row.ID, res.ID)
	}
	if err := r.Remote.Update(ctx, e.Resource, *row.RemoteID, body); err != nil {
		return err
	}
	return service.MarkUpdated(r.DB, e.Table, row.ID)
}

// SyncAll runs every entity independently. Only one pass may run at a time.
func (r *Reconciler) SyncAll(ctx context.Context) (Result, error) {
	release, err := r.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()
	return r.syncAll(ctx)
}

func (r *Reconciler) syncAll(ctx context.Context) (Result, error) {
	res := Result{Counts: map[string]int{}, Failed: map[string]int{}}
	var errs []error
	for _, e := range r.entities() {
		c, err := r.syncEntity(ctx, e)
		res.Counts[e.Name()] = c.Synced
		res.Total += c.Synced
		if c.Failed > 0 {
			res.Failed[e.Name()] = c.Failed
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			logging.OrDiscard(r.Logger).Error("sync_entity_failed", "table", e.Name(), "error", err.Error())
			errs = append(errs, fmt.Errorf("sync %s: %w", e.Name(), err))
		}
	}
	return res, errors.Join(errs...)
}

// Run performs a recorded pass: push everything, then refresh the pulled
// catalogues when pull is set. The run lands in sync_runs either way, unless
// another pass holds the lock.
func (r *Reconciler) Run(ctx context.Context, trigger string, pull bool) (Result, error) {
	release, err := r.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	runID, err := service.StartSyncRun(r.DB, trigger, r.now())
	if err != nil {
		return Result{}, err
	}
	logger := logging.OrDiscard(r.Logger).With("run_id", runID, "trigger", trigger)
	logger.Info("sync_started")

	res, runErr := r.syncAll(ctx)
	if pull && runErr == nil {
		if _, err := r.PullRecipes(ctx); err != nil {
			runErr = err
		} else if _, err := r.PullCoupons(ctx); err != nil {
			runErr = err
		}
	}

	if err := service.FinishSyncRun(r.DB, runID, r.now(), res.Total, res.TotalFailed(), res.Counts, runErr); err != nil {
		logger.Error("sync_run_record_failed", "error", err.Error())
	}
	if runErr != nil {
		logger.Warn("sync_finished", "total", res.Total, "failed", res.TotalFailed(), "error", runErr.Error())
		return res, runErr
	}
	logger.Info("sync_finished", "total", res.Total, "failed", res.TotalFailed())
	return res, nil
}
