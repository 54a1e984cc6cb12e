package thrive

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var groceryCmd = &cobra.Command{
	Use:   "grocery",
	Short: "Manage the grocery list",
}

var (
	groceryCategory string
	groceryQuantity string
	groceryUnit     string
	groceryPrice    float64
	groceryPlan     string
	groceryPending  bool
	groceryUnsynced bool
	groceryLimit    int
	groceryUndo     bool
	groceryName     string
)

var groceryAddCmd = &cobra.Command{
	Use:   "add <item name>",
	Short: "Add a grocery item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := service.GroceryInput{
			ItemName:       strings.Join(args, " "),
			Category:       groceryCategory,
			Quantity:       groceryQuantity,
			Unit:           groceryUnit,
			EstimatedPrice: optionalFloat(cmd, "price", groceryPrice),
			MealPlanID:     optionalString(cmd, "plan", groceryPlan),
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateGroceryItem(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added grocery item %s\n", id)
			return nil
		})
	},
}

var groceryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List grocery items",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.GroceryFilter{MealPlanID: groceryPlan, Category: groceryCategory, Pending: groceryPending, Unsynced: groceryUnsynced, Limit: groceryLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListGroceryItems(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tITEM\tQTY\tUNIT\tCATEGORY\tPRICE\tDONE\tSYNCED")
			for _, g := range items {
				done := ""
				if g.IsPurchased {
					done = "x"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					g.ID, g.ItemName, g.Quantity, g.Unit, g.Category, formatOptionalFloat(g.EstimatedPrice), done, syncMark(g.Synced))
			}
			return nil
		})
	},
}

var groceryPurchaseCmd = &cobra.Command{
	Use:   "purchase <id>",
	Short: "Mark a grocery item as purchased",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.SetGroceryPurchased(sqldb, args[0], !groceryUndo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated grocery item %s\n", args[0])
			return nil
		})
	},
}

var groceryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a grocery item; --plan \"\" detaches it from its meal plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetGroceryItem(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.GroceryInputFrom(existing)
			f := cmd.Flags()
			if f.Changed("name") {
				in.ItemName = groceryName
			}
			if f.Changed("category") {
				in.Category = groceryCategory
			}
			if f.Changed("qty") {
				in.Quantity = groceryQuantity
			}
			if f.Changed("unit") {
				in.Unit = groceryUnit
			}
			if v := optionalFloat(cmd, "price", groceryPrice); v != nil {
				in.EstimatedPrice = v
			}
			if f.Changed("plan") {
				in.MealPlanID = nil
				if groceryPlan != "" {
					in.MealPlanID = &groceryPlan
				}
			}
			if err := service.UpdateGroceryItem(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated grocery item %s\n", args[0])
			return nil
		})
	},
}

var groceryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a grocery item locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteGroceryItem(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted grocery item %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(groceryCmd)
	groceryCmd.AddCommand(groceryAddCmd, groceryListCmd, groceryUpdateCmd, groceryPurchaseCmd, groceryDeleteCmd)

	for _, c := range []*cobra.Command{groceryAddCmd, groceryUpdateCmd} {
		f := c.Flags()
		f.StringVar(&groceryCategory, "category", "", "Aisle or category")
		f.StringVar(&groceryQuantity, "qty", "", "Quantity")
		f.StringVar(&groceryUnit, "unit", "", "Unit")
		f.Float64Var(&groceryPrice, "price", 0, "Estimated price")
		f.StringVar(&groceryPlan, "plan", "", "Meal plan id")
	}
	groceryUpdateCmd.Flags().StringVar(&groceryName, "name", "", "Item name")

	groceryListCmd.Flags().StringVar(&groceryPlan, "plan", "", "Filter by meal plan id")
	groceryListCmd.Flags().StringVar(&groceryCategory, "category", "", "Filter by category")
	groceryListCmd.Flags().BoolVar(&groceryPending, "pending", false, "Only items not yet purchased")
	groceryListCmd.Flags().BoolVar(&groceryUnsynced, "unsynced", false, "Only items waiting to sync")
	groceryListCmd.Flags().IntVar(&groceryLimit, "limit", 50, "Max rows")
	groceryPurchaseCmd.Flags().BoolVar(&groceryUndo, "undo", false, "Mark as not purchased")
}
