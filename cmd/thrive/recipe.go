package thrive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Browse recipes pulled from the CRM",
}

var (
	recipeSearch    string
	recipeMealType  string
	recipeFavorites bool
	recipeLimit     int
	recipeUnset     bool
)

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.RecipeFilter{Search: recipeSearch, MealType: recipeMealType, FavoritesOnly: recipeFavorites, Limit: recipeLimit}
		return withDB(func(sqldb *sql.DB) error {
			recipes, err := service.ListRecipes(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tTYPE\tPREP\tCOOK\tFAVORITE")
			for _, r := range recipes {
				fav := ""
				if r.IsFavorite {
					fav = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.MealType, formatOptionalInt(r.PrepTimeMin), formatOptionalInt(r.CookTimeMin), fav)
			}
			return nil
		})
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show a recipe with its ingredients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			r, err := service.ResolveRecipe(sqldb, args[0])
			if err != nil {
				return err
			}
			ings, err := service.ListIngredients(sqldb, r.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", r.Name, r.ID)
			if r.MealType != "" {
				fmt.Fprintf(out, "Meal type: %s\n", r.MealType)
			}
			fmt.Fprintf(out, "Prep: %s min  Cook: %s min\n", formatOptionalInt(r.PrepTimeMin), formatOptionalInt(r.CookTimeMin))
			if r.Description != "" {
				fmt.Fprintf(out, "\n%s\n", r.Description)
			}
			fmt.Fprintln(out, "\nIngredients:")
			for _, i := range ings {
				fmt.Fprintf(out, "- %s %s %s\n", i.Quantity, i.Unit, i.Name)
			}
			if r.Instructions != "" {
				fmt.Fprintf(out, "\nInstructions:\n%s\n", r.Instructions)
			}
			return nil
		})
	},
}

var recipeFavoriteCmd = &cobra.Command{
	Use:   "favorite <id|name>",
	Short: "Mark a recipe as favorite (local only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			r, err := service.ResolveRecipe(sqldb, args[0])
			if err != nil {
				return err
			}
			if err := service.SetRecipeFavorite(sqldb, r.ID, !recipeUnset); err != nil {
				return err
			}
			verb := "Favorited"
			if recipeUnset {
				verb = "Unfavorited"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, r.Name)
			return nil
		})
	},
}

var recipePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local recipes with the CRM catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			rec, err := env.reconciler()
			if err != nil {
				return err
			}
			n, err := rec.PullRecipes(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d recipe(s)\n", n)
			return nil
		})
	},
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(recipeCmd)
	recipeCmd.AddCommand(recipeListCmd, recipeShowCmd, recipeFavoriteCmd, recipePullCmd)

	recipeListCmd.Flags().StringVar(&recipeSearch, "search", "", "Name contains")
	recipeListCmd.Flags().StringVar(&recipeMealType, "type", "", "Filter by meal type")
	recipeListCmd.Flags().BoolVar(&recipeFavorites, "favorites", false, "Only favorites")
	recipeListCmd.Flags().IntVar(&recipeLimit, "limit", 50, "Max rows")
	recipeFavoriteCmd.Flags().BoolVar(&recipeUnset, "unset", false, "Remove the favorite mark")
}
