package thrive

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			report, err := service.RunDoctor(sqldb, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced rows without remote id: %d\n", report.SyncedWithoutRemoteID)
			fmt.Fprintf(out, "Orphan ingredients: %d\n", report.OrphanIngredients)
			fmt.Fprintf(out, "Orphan meal plan items: %d\n", report.OrphanMealPlanItems)
			fmt.Fprintf(out, "Dangling recipe refs: %d\n", report.DanglingRecipeRefs)
			fmt.Fprintf(out, "Dangling meal plan refs: %d\n", report.DanglingMealPlanRefs)
			fmt.Fprintf(out, "Items awaiting parent push: %d\n", report.ItemsAwaitingParent)
			if doctorFix {
				fmt.Fprintf(out, "Fixed rows: %d\n", report.FixedRows)
				// Re-check after fixes so exit status reflects final state.
				report, err = service.RunDoctor(sqldb, false)
				if err != nil {
					return err
				}
			}
			if !report.Healthy() {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Attempt safe auto-fixes")
}
