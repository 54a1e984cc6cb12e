package thrive

import (
	"fmt"
	"runtime/debug"

	"github.com/neurothrive/thrive/internal/db"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/neurothrive/thrive/cmd/thrive.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version/build metadata",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "thrive %s\n", version)
	fmt.Fprintf(out, "schema version: %d\n", db.LatestVersion())
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fmt.Fprintf(out, "go: %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			fmt.Fprintf(out, "%s: %s\n", s.Key, s.Value)
		}
	}
}
