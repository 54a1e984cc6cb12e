package thrive

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var winCmd = &cobra.Command{
	Use:   "win",
	Short: "Record wins, big and small",
}

var (
	winCategory    string
	winDate        string
	winTime        string
	winDescription string
)

var winAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Record a win",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordedAt, err := parseDateTimeOrNow(winDate, winTime)
		if err != nil {
			return err
		}
		in := service.WinInput{Description: strings.Join(args, " "), Category: winCategory, RecordedAt: recordedAt}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateWinEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded win %s\n", id)
			return nil
		})
	},
}

var (
	winFrom     string
	winTo       string
	winUnsynced bool
	winLimit    int
)

var winListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wins",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.WinFilter{FromDate: winFrom, ToDate: winTo, Category: winCategory, Unsynced: winUnsynced, Limit: winLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListWinEntries(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tRECORDED\tCATEGORY\tSYNCED\tDESCRIPTION")
			for _, w := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", w.ID, localStamp(w.RecordedAt), w.Category, syncMark(w.Synced), w.Description)
			}
			return nil
		})
	},
}

var winUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a win; it is pushed again on the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetWinEntry(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.WinInputFrom(existing)
			if cmd.Flags().Changed("description") {
				in.Description = winDescription
			}
			if cmd.Flags().Changed("category") {
				in.Category = winCategory
			}
			if in.RecordedAt, err = overlayDateTime(cmd, in.RecordedAt, winDate, winTime); err != nil {
				return err
			}
			if err := service.UpdateWinEntry(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated win %s\n", args[0])
			return nil
		})
	},
}

var winDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a win locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteWinEntry(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted win %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(winCmd)
	winCmd.AddCommand(winAddCmd, winListCmd, winUpdateCmd, winDeleteCmd)

	winAddCmd.Flags().StringVar(&winCategory, "category", "", "Category, e.g. work, health, personal")
	winAddCmd.Flags().StringVar(&winDate, "date", "", "Date YYYY-MM-DD (default now)")
	winAddCmd.Flags().StringVar(&winTime, "time", "", "Time HH:MM")
	winUpdateCmd.Flags().StringVar(&winDescription, "description", "", "What you achieved")
	winUpdateCmd.Flags().StringVar(&winCategory, "category", "", "Category")
	winUpdateCmd.Flags().StringVar(&winDate, "date", "", "Date YYYY-MM-DD")
	winUpdateCmd.Flags().StringVar(&winTime, "time", "", "Time HH:MM")
	winListCmd.Flags().StringVar(&winFrom, "from", "", "From date YYYY-MM-DD")
	winListCmd.Flags().StringVar(&winTo, "to", "", "To date YYYY-MM-DD")
	winListCmd.Flags().StringVar(&winCategory, "category", "", "Filter by category")
	winListCmd.Flags().BoolVar(&winUnsynced, "unsynced", false, "Only wins waiting to sync")
	winListCmd.Flags().IntVar(&winLimit, "limit", 50, "Max rows")
}
