package thrive

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/neurothrive/thrive/internal/app"
	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/lock"
	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot and restore the local database",
}

var (
	backupOut    string
	backupDir    string
	restoreForce bool
)

func backupDirFor(dbPath string) string {
	if backupDir != "" {
		return backupDir
	}
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a consistent snapshot of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		out := backupOut
		if out == "" {
			out = filepath.Join(backupDirFor(path), fmt.Sprintf("thrive-%s.db", time.Now().Format("20060102-150405")))
		}
		return withDB(func(sqldb *sql.DB) error {
			info, err := service.CreateBackup(sqldb, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created backup %s (%d bytes)\n", info.Path, info.SizeBytes)
			fmt.Fprintf(cmd.OutOrStdout(), "sha256 %s\n", info.Checksum)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		items, err := service.ListBackups(backupDirFor(path))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "FILE\tSIZE\tCREATED\tCHECKSUM")
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n", it.Path, it.SizeBytes, it.CreatedAt.Format(time.RFC3339), it.Checksum)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup file>",
	Short: "Replace the database with a snapshot and relink already-synced rows",
	Long: `Replace the database with a snapshot.

Rows pushed to the CRM after the snapshot was taken would otherwise be
created again on the next sync. Restore carries their remote ids over from
the database being replaced and queues them as updates instead. Remote
records for rows the snapshot lacks are reported and left in the CRM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		syncLock, err := lock.TryAcquire(app.SyncLockPath(path))
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("a sync pass is running against %s; retry when it finishes", path)
		}
		if err != nil {
			return err
		}
		defer syncLock.Release()

		previous, err := service.RestoreBackup(args[0], path, restoreForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, args[0])
		sqldb, err := db.OpenMigrated(path)
		if err != nil {
			return err
		}
		defer sqldb.Close()
		if previous == "" {
			return nil
		}

		report, err := service.RelinkRemoteIDs(sqldb, previous)
		if err != nil {
			return err
		}
		printRestoreReport(cmd, report)
		return nil
	},
}

func printRestoreReport(cmd *cobra.Command, report service.RestoreReport) {
	out := cmd.OutOrStdout()
	relinked, orphaned := report.Totals()
	tables := make([]string, 0, len(report.Relinked)+len(report.Orphaned))
	seen := map[string]bool{}
	for _, m := range []map[string]int{report.Relinked, report.Orphaned} {
		for t := range m {
			if !seen[t] {
				seen[t] = true
				tables = append(tables, t)
			}
		}
	}
	sort.Strings(tables)
	if len(tables) > 0 {
		fmt.Fprintln(out, "TABLE\tRELINKED\tORPHANED")
		for _, t := range tables {
			fmt.Fprintf(out, "%s\t%d\t%d\n", t, report.Relinked[t], report.Orphaned[t])
		}
	}
	fmt.Fprintf(out, "Relinked %d row(s) to existing CRM records; the next sync updates them\n", relinked)
	if orphaned > 0 {
		fmt.Fprintf(out, "%d CRM record(s) belong to rows this snapshot does not have; they were left in the CRM\n", orphaned)
	}
	fmt.Fprintf(out, "Previous database kept at %s\n", report.Previous)
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)

	backupCreateCmd.Flags().StringVar(&backupOut, "out", "", "Snapshot file path")
	backupCreateCmd.Flags().StringVar(&backupDir, "dir", "", "Snapshot directory (used when --out is empty)")
	backupListCmd.Flags().StringVar(&backupDir, "dir", "", "Snapshot directory (default: backups/ next to the database)")
	backupRestoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Replace an existing database")
}
