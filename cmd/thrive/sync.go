package thrive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/neurothrive/thrive/internal/app"
	"github.com/neurothrive/thrive/internal/lock"
	"github.com/neurothrive/thrive/internal/service"
	"github.com/neurothrive/thrive/internal/syncer"
	"github.com/spf13/cobra"
)

const probeTimeout = 5 * time.Second

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local records to the CRM",
}

var (
	syncPull   bool
	daemonPull bool
	syncEntity string
	syncRuns   int
	syncLocal  bool
)

// signalDaemon asks a running daemon for an immediate pass, which replaces
// its pending one. It reports false when no daemon holds the lock.
func signalDaemon(dbPath string) (int, bool, error) {
	pid, held, err := lock.Holder(app.DaemonLockPath(dbPath))
	if err != nil || !held || pid == os.Getpid() {
		return 0, false, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false, fmt.Errorf("find sync daemon %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return pid, false, fmt.Errorf("signal sync daemon %d: %w", pid, err)
	}
	return pid, true, nil
}

func printSyncResult(cmd *cobra.Command, res syncer.Result) {
	names := make([]string, 0, len(res.Counts))
	for name := range res.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(cmd.OutOrStdout(), "ENTITY\tSYNCED\tFAILED")
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", name, res.Counts[name], res.Failed[name])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d record(s), %d failed\n", res.Total, res.TotalFailed())
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync pass now, or wake a running sync daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			if syncEntity == "" && !syncLocal {
				pid, ok, err := signalDaemon(env.dbPath)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Sync daemon (pid %d) is running a pass now; see `thrive sync status`\n", pid)
					return nil
				}
			}
			rec, err := env.reconciler()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			if syncEntity != "" {
				e, err := syncer.EntityFor(syncer.DefaultEntities(), syncEntity)
				if err != nil {
					return err
				}
				c, err := rec.SyncEntity(ctx, e)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: synced %d, failed %d\n", e.Name(), c.Synced, c.Failed)
				return nil
			}
			res, err := rec.Run(ctx, syncer.TriggerManual, syncPull)
			printSyncResult(cmd, res)
			return err
		})
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending rows and recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Auth: %s\n", env.auth.State())

			pending, err := service.PendingCounts(env.db)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "ENTITY\tPENDING")
			for _, e := range syncer.DefaultEntities() {
				fmt.Fprintf(out, "%s\t%d\n", e.Name(), pending[e.Name()])
			}

			runs, err := service.ListSyncRuns(env.db, syncRuns)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No sync runs yet")
				return nil
			}
			fmt.Fprintln(out, "\nRUN\tTRIGGER\tSTARTED\tSYNCED\tFAILED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(out, "%d\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Trigger, localStamp(r.StartedAt), r.TotalSynced, r.TotalFailed, r.Error)
			}
			return nil
		})
	},
}

var syncRequeueCmd = &cobra.Command{
	Use:   "requeue <table> <id>",
	Short: "Push a row again on the next pass, e.g. after it was edited in the CRM",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			e, err := syncer.EntityFor(syncer.DefaultEntities(), args[0])
			if err != nil {
				return err
			}
			if err := service.MarkUnsynced(sqldb, e.Table, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s for the next sync\n", e.Name(), args[1])
			return nil
		})
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync on an interval until interrupted; SIGHUP forces a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			daemonLock, err := lock.TryAcquire(app.DaemonLockPath(env.dbPath))
			if errors.Is(err, lock.ErrHeld) {
				pid, _, _ := lock.Holder(app.DaemonLockPath(env.dbPath))
				return fmt.Errorf("a sync daemon is already running (pid %d)", pid)
			}
			if err != nil {
				return err
			}
			defer daemonLock.Release()

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := syncer.NewScheduler(func(ctx context.Context, trigger string) error {
				rec, err := env.reconciler()
				if err != nil {
					return err
				}
				res, err := rec.Run(ctx, trigger, daemonPull)
				if errors.Is(err, syncer.ErrSyncInProgress) {
					env.logger.Info("sync_skipped", "trigger", trigger, "reason", "in_progress")
					return nil
				}
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s sync: %d record(s), %d failed\n", trigger, res.Total, res.TotalFailed())
				}
				return err
			})
			sched.Interval = env.cfg.SyncInterval
			sched.Logger = env.logger
			sched.Probe = syncer.TCPProbe(env.cfg.APIBaseURL, probeTimeout)

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						sched.Trigger()
					}
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s; press Ctrl-C to stop\n", sched.Interval)
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRunCmd, syncStatusCmd, syncRequeueCmd, syncDaemonCmd)

	syncRunCmd.Flags().BoolVar(&syncPull, "pull", false, "Also refresh recipes and coupons after pushing")
	syncRunCmd.Flags().StringVar(&syncEntity, "entity", "", "Push only this table, e.g. mood_entries")
	syncRunCmd.Flags().BoolVar(&syncLocal, "local", false, "Run here even when a sync daemon is running")
	syncStatusCmd.Flags().IntVar(&syncRuns, "runs", 5, "Recent runs to show")
	syncDaemonCmd.Flags().BoolVar(&daemonPull, "pull", true, "Also refresh recipes and coupons after pushing")
}
