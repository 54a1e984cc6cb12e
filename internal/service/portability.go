package service

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

const exportLimit = 1<<31 - 1

type ExportRecipe struct {
	model.Recipe `yaml:",inline"`
	Ingredients  []model.Ingredient `json:"ingredients" yaml:"ingredients"`
}

type ExportData struct {
	ExportedAt      time.Time              `json:"exported_at" yaml:"exported_at"`
	SchemaVersion   int                    `json:"schema_version" yaml:"schema_version"`
	Moods           []model.MoodEntry      `json:"moods" yaml:"moods"`
	Wins            []model.WinEntry       `json:"wins" yaml:"wins"`
	Jobs            []model.JobPosting     `json:"jobs" yaml:"jobs"`
	Routines        []model.DailyRoutine   `json:"routines" yaml:"routines"`
	TherapySessions []model.TherapySession `json:"therapy_sessions" yaml:"therapy_sessions"`
	Meals           []model.MealEntry      `json:"meals" yaml:"meals"`
	Recipes         []ExportRecipe         `json:"recipes" yaml:"recipes"`
	MealPlans       []MealPlanDetail       `json:"meal_plans" yaml:"meal_plans"`
	Groceries       []model.GroceryItem    `json:"groceries" yaml:"groceries"`
	Coupons         []model.Coupon         `json:"coupons" yaml:"coupons"`
}

// ExportDataSnapshot reads every table into one document.
func ExportDataSnapshot(db *sql.DB, schemaVersion int) (*ExportData, error) {
	out := &ExportData{ExportedAt: time.Now().UTC(), SchemaVersion: schemaVersion}
	var err error

	if out.Moods, err = ListMoodEntries(db, MoodFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export moods: %w", err)
	}
	if out.Wins, err = ListWinEntries(db, WinFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export wins: %w", err)
	}
	if out.Jobs, err = ListJobPostings(db, JobFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export jobs: %w", err)
	}
	if out.Routines, err = ListDailyRoutines(db, RoutineFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export routines: %w", err)
	}
	if out.TherapySessions, err = ListTherapySessions(db, TherapyFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export therapy sessions: %w", err)
	}
	if out.Meals, err = ListMealEntries(db, MealFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export meals: %w", err)
	}

	recipes, err := ListRecipes(db, RecipeFilter{Limit: exportLimit})
	if err != nil {
		return nil, fmt.Errorf("export recipes: %w", err)
	}
	for _, r := range recipes {
		ings, err := ListIngredients(db, r.ID)
		if err != nil {
			return nil, fmt.Errorf("export recipe ingredients: %w", err)
		}
		out.Recipes = append(out.Recipes, ExportRecipe{Recipe: r, Ingredients: ings})
	}

	plans, err := ListMealPlans(db, exportLimit)
	if err != nil {
		return nil, fmt.Errorf("export meal plans: %w", err)
	}
	for _, p := range plans {
		items, err := ListMealPlanItems(db, p.ID)
		if err != nil {
			return nil, fmt.Errorf("export meal plan items: %w", err)
		}
		out.MealPlans = append(out.MealPlans, MealPlanDetail{Plan: p, Items: items})
	}

	if out.Groceries, err = ListGroceryItems(db, GroceryFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export groceries: %w", err)
	}
	if out.Coupons, err = ListCoupons(db, CouponFilter{Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export coupons: %w", err)
	}
	return out, nil
}
