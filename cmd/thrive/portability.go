package thrive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local data (json or yaml)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(exportOut) == "" {
			return fmt.Errorf("--out is required")
		}
		format := strings.ToLower(strings.TrimSpace(exportFormat))
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported --format %q (use json or yaml)", exportFormat)
		}
		return withDB(func(sqldb *sql.DB) error {
			data, err := service.ExportDataSnapshot(sqldb, db.LatestVersion())
			if err != nil {
				return err
			}
			var b []byte
			if format == "json" {
				b, err = json.MarshalIndent(data, "", "  ")
			} else {
				b, err = yaml.Marshal(data)
			}
			if err != nil {
				return fmt.Errorf("marshal export %s: %w", format, err)
			}
			if err := os.WriteFile(exportOut, b, 0o600); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported data to %s\n", exportOut)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json|yaml")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path")
}
