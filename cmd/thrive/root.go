package thrive

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "thrive",
	Short: "thrive tracks mood, wins and routines and syncs them to your CRM",
	Long: "thrive is a local-first wellness tracker. Records are written to a local SQLite database " +
		"and pushed to the CRM when you are online; recipes and coupons are pulled back.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database")
}
