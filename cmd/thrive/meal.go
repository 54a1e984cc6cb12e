package thrive

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var mealCmd = &cobra.Command{
	Use:   "meal",
	Short: "Log meals",
}

var (
	mealType        string
	mealDescription string
	mealPhoto       string
	mealRecipe      string
	mealDate        string
	mealTime        string
)

var mealAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log a meal, optionally from a recipe",
	RunE: func(cmd *cobra.Command, args []string) error {
		recordedAt, err := parseDateTimeOrNow(mealDate, mealTime)
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			in := service.MealInput{MealType: mealType, Description: mealDescription, RecordedAt: recordedAt, PhotoURI: mealPhoto}
			if mealRecipe != "" {
				r, err := service.ResolveRecipe(sqldb, mealRecipe)
				if err != nil {
					return err
				}
				in.RecipeID = &r.ID
				if in.Description == "" {
					in.Description = r.Name
				}
			}
			id, err := service.CreateMealEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged meal %s\n", id)
			return nil
		})
	},
}

var (
	mealFrom     string
	mealTo       string
	mealUnsynced bool
	mealLimit    int
)

var mealListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meals",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.MealFilter{FromDate: mealFrom, ToDate: mealTo, MealType: mealType, Unsynced: mealUnsynced, Limit: mealLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListMealEntries(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tRECORDED\tTYPE\tRECIPE\tSYNCED\tDESCRIPTION")
			for _, m := range items {
				recipe := "-"
				if m.RecipeID != nil {
					recipe = *m.RecipeID
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, localStamp(m.RecordedAt), m.MealType, recipe, syncMark(m.Synced), m.Description)
			}
			return nil
		})
	},
}

var mealUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a logged meal; --recipe \"\" unlinks the recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetMealEntry(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.MealInputFrom(existing)
			f := cmd.Flags()
			if f.Changed("type") {
				in.MealType = mealType
			}
			if f.Changed("description") {
				in.Description = mealDescription
			}
			if f.Changed("photo") {
				in.PhotoURI = mealPhoto
			}
			if f.Changed("recipe") {
				in.RecipeID = nil
				if mealRecipe != "" {
					r, err := service.ResolveRecipe(sqldb, mealRecipe)
					if err != nil {
						return err
					}
					in.RecipeID = &r.ID
				}
			}
			if in.RecordedAt, err = overlayDateTime(cmd, in.RecordedAt, mealDate, mealTime); err != nil {
				return err
			}
			if err := service.UpdateMealEntry(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated meal %s\n", args[0])
			return nil
		})
	},
}

var mealDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a meal locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteMealEntry(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted meal %s\n", args[0])
			return nil
		})
	},
}

func addMealFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&mealType, "type", "", "breakfast|lunch|dinner|snack")
	f.StringVar(&mealDescription, "description", "", "What you ate")
	f.StringVar(&mealPhoto, "photo", "", "Photo URI")
	f.StringVar(&mealRecipe, "recipe", "", "Recipe id or name")
	f.StringVar(&mealDate, "date", "", "Date YYYY-MM-DD (default now)")
	f.StringVar(&mealTime, "time", "", "Time HH:MM")
}

func init() {
	rootCmd.AddCommand(mealCmd)
	mealCmd.AddCommand(mealAddCmd, mealListCmd, mealUpdateCmd, mealDeleteCmd)

	addMealFlags(mealAddCmd)
	addMealFlags(mealUpdateCmd)
	_ = mealAddCmd.MarkFlagRequired("type")

	mealListCmd.Flags().StringVar(&mealFrom, "from", "", "From date YYYY-MM-DD")
	mealListCmd.Flags().StringVar(&mealTo, "to", "", "To date YYYY-MM-DD")
	mealListCmd.Flags().StringVar(&mealType, "type", "", "Filter by meal type")
	mealListCmd.Flags().BoolVar(&mealUnsynced, "unsynced", false, "Only meals waiting to sync")
	mealListCmd.Flags().IntVar(&mealLimit, "limit", 50, "Max rows")
}
