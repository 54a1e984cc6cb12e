package thrive

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var mealPlanCmd = &cobra.Command{
	Use:   "mealplan",
	Short: "Plan meals for a week and build grocery lists",
}

var (
	planStart string
	planEnd   string
	planItems []string
	planLimit int
)

// parsePlanItem reads "day:meal_type:recipe", e.g. "mon:dinner:Veggie Curry".
func parsePlanItem(sqldb *sql.DB, raw string) (service.MealPlanItemInput, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return service.MealPlanItemInput{}, fmt.Errorf("invalid plan item %q (expected day:meal_type:recipe)", raw)
	}
	day, err := parseDayOfWeek(parts[0])
	if err != nil {
		return service.MealPlanItemInput{}, err
	}
	r, err := service.ResolveRecipe(sqldb, strings.TrimSpace(parts[2]))
	if err != nil {
		return service.MealPlanItemInput{}, err
	}
	return service.MealPlanItemInput{RecipeID: r.ID, DayOfWeek: day, MealType: parts[1]}, nil
}

var mealPlanCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a meal plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDayOrToday("--start", planStart)
		if err != nil {
			return err
		}
		end := start.AddDate(0, 0, 6)
		if planEnd != "" {
			if end, err = parseDay("--end", planEnd); err != nil {
				return err
			}
		}
		return withDB(func(sqldb *sql.DB) error {
			in := service.MealPlanInput{StartDate: start, EndDate: end}
			for _, raw := range planItems {
				item, err := parsePlanItem(sqldb, raw)
				if err != nil {
					return err
				}
				in.Items = append(in.Items, item)
			}
			id, err := service.CreateMealPlan(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created meal plan %s (%s to %s, %d item(s))\n", id, localDay(start), localDay(end), len(in.Items))
			return nil
		})
	},
}

var mealPlanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meal plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			plans, err := service.ListMealPlans(sqldb, planLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tSTART\tEND\tSYNCED")
			for _, p := range plans {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", p.ID, localDay(p.StartDate), localDay(p.EndDate), syncMark(p.Synced))
			}
			return nil
		})
	},
}

var mealPlanShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a meal plan (default: the plan covering today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			} else {
				plan, ok, err := service.ActiveMealPlan(sqldb, time.Now())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no meal plan covers today")
				}
				id = plan.ID
			}
			detail, err := service.GetMealPlan(sqldb, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Meal plan %s: %s to %s\n", detail.Plan.ID, localDay(detail.Plan.StartDate), localDay(detail.Plan.EndDate))
			fmt.Fprintln(out, "ITEM\tDAY\tMEAL\tRECIPE")
			for _, item := range detail.Items {
				name := item.RecipeID
				if r, err := service.GetRecipe(sqldb, item.RecipeID); err == nil {
					name = r.Name
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", item.ID, time.Weekday(item.DayOfWeek), item.MealType, name)
			}
			return nil
		})
	},
}

var mealPlanDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a meal plan and its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteMealPlan(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted meal plan %s\n", args[0])
			return nil
		})
	},
}

var mealPlanAddItemCmd = &cobra.Command{
	Use:   "add-item <plan id> <day:meal_type:recipe>...",
	Short: "Add planned meals to an existing plan",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if _, err := service.GetMealPlan(sqldb, args[0]); err != nil {
				return err
			}
			for _, raw := range args[1:] {
				item, err := parsePlanItem(sqldb, raw)
				if err != nil {
					return err
				}
				id, err := service.AddMealPlanItem(sqldb, args[0], item)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added meal plan item %s\n", id)
			}
			return nil
		})
	},
}

var mealPlanRemoveItemCmd = &cobra.Command{
	Use:   "remove-item <item id>",
	Short: "Remove one planned meal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteMealPlanItem(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed meal plan item %s\n", args[0])
			return nil
		})
	},
}

var mealPlanGroceriesCmd = &cobra.Command{
	Use:   "groceries <id>",
	Short: "Add the plan's ingredients to the grocery list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			ids, err := service.GenerateGroceryList(sqldb, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d grocery item(s)\n", len(ids))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(mealPlanCmd)
	mealPlanCmd.AddCommand(mealPlanCreateCmd, mealPlanListCmd, mealPlanShowCmd, mealPlanDeleteCmd,
		mealPlanAddItemCmd, mealPlanRemoveItemCmd, mealPlanGroceriesCmd)

	mealPlanCreateCmd.Flags().StringVar(&planStart, "start", "", "Start date YYYY-MM-DD (default today)")
	mealPlanCreateCmd.Flags().StringVar(&planEnd, "end", "", "End date YYYY-MM-DD (default start + 6 days)")
	mealPlanCreateCmd.Flags().StringArrayVar(&planItems, "item", nil, "Planned meal as day:meal_type:recipe (repeatable)")
	mealPlanListCmd.Flags().IntVar(&planLimit, "limit", 50, "Max rows")
}
