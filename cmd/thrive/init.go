package thrive

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/app"
	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/lock"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the local profile and show where its files live",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			version, err := db.CurrentVersion(sqldb)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s (schema v%d)\n", path, version)
			fmt.Fprintf(out, "Session: %s\n", app.TokenPath(path))
			fmt.Fprintf(out, "Log: %s\n", app.LogPath(path))
			fmt.Fprintf(out, "Env: %s\n", app.EnvPath(path))
			if pid, held, err := lock.Holder(app.DaemonLockPath(path)); err == nil && held {
				fmt.Fprintf(out, "Sync daemon: running (pid %d)\n", pid)
			} else {
				fmt.Fprintln(out, "Sync daemon: not running")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// resolveDBPath honours --db, then THRIVE_HOME, then the user config dir.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	return app.DefaultDBPath()
}
