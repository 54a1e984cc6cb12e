package service

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

type MealPlanInput struct {
	StartDate time.Time
	EndDate   time.Time
	Items     []MealPlanItemInput
}

type MealPlanItemInput struct {
	RecipeID  string
	DayOfWeek int
	MealType  string
}

type MealPlanDetail struct {
	Plan  model.MealPlan       `json:"plan" yaml:"plan"`
	Items []model.MealPlanItem `json:"items" yaml:"items"`
}

const mealPlanColumns = `id, start_date, end_date, created_at, synced, remote_id`

const mealPlanItemColumns = `id, meal_plan_id, recipe_id, day_of_week, meal_type, synced, remote_id`

func validateMealPlanItem(in *MealPlanItemInput) error {
	if in.RecipeID == "" {
		return fmt.Errorf("meal plan item recipe is required")
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return fmt.Errorf("day of week must be between 0 and 6")
	}
	mealType, err := normalizeMealType(in.MealType)
	if err != nil {
		return err
	}
	in.MealType = mealType
	return nil
}

// CreateMealPlan inserts the plan and all of its items in one transaction.
func CreateMealPlan(db *sql.DB, in MealPlanInput) (string, error) {
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return "", fmt.Errorf("meal plan start and end dates are required")
	}
	start, end := routineDay(in.StartDate), routineDay(in.EndDate)
	if end.Before(start) {
		return "", fmt.Errorf("meal plan end date must not be before start date")
	}
	for i := range in.Items {
		if err := validateMealPlanItem(&in.Items[i]); err != nil {
			return "", fmt.Errorf("meal plan item %d: %w", i+1, err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin meal plan insert: %w", err)
	}
	planID := newID()
	if _, err := tx.Exec(`
INSERT INTO meal_plans(id, start_date, end_date, created_at)
VALUES(?, ?, ?, ?)
`, planID, formatTime(start), formatTime(end), formatTime(time.Now())); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert meal plan: %w", err)
	}
	for _, item := range in.Items {
		if _, err := tx.Exec(`
INSERT INTO meal_plan_items(id, meal_plan_id, recipe_id, day_of_week, meal_type)
VALUES(?, ?, ?, ?, ?)
`, newID(), planID, item.RecipeID, item.DayOfWeek, item.MealType); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert meal plan item for recipe %q: %w", item.RecipeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit meal plan insert: %w", err)
	}
	return planID, nil
}

func AddMealPlanItem(db *sql.DB, planID string, in MealPlanItemInput) (string, error) {
	if err := validateMealPlanItem(&in); err != nil {
		return "", err
	}
	id := newID()
	if _, err := db.Exec(`
INSERT INTO meal_plan_items(id, meal_plan_id, recipe_id, day_of_week, meal_type)
VALUES(?, ?, ?, ?, ?)
`, id, planID, in.RecipeID, in.DayOfWeek, in.MealType); err != nil {
		return "", fmt.Errorf("insert meal plan item: %w", err)
	}
	return id, nil
}

func GetMealPlan(db *sql.DB, id string) (MealPlanDetail, error) {
	plan, err := scanMealPlan(db.QueryRow(`SELECT `+mealPlanColumns+` FROM meal_plans WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return MealPlanDetail{}, fmt.Errorf("meal plan %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return MealPlanDetail{}, err
	}
	items, err := ListMealPlanItems(db, id)
	if err != nil {
		return MealPlanDetail{}, err
	}
	return MealPlanDetail{Plan: plan, Items: items}, nil
}

// ActiveMealPlan returns the newest plan whose range covers day.
func ActiveMealPlan(db *sql.DB, day time.Time) (model.MealPlan, bool, error) {
	d := formatTime(routineDay(day))
	plan, err := scanMealPlan(db.QueryRow(`
SELECT `+mealPlanColumns+` FROM meal_plans
WHERE start_date <= ? AND end_date >= ?
ORDER BY created_at DESC LIMIT 1
`, d, d))
	if err == sql.ErrNoRows {
		return model.MealPlan{}, false, nil
	}
	if err != nil {
		return model.MealPlan{}, false, err
	}
	return plan, true, nil
}

func ListMealPlans(db *sql.DB, limit int) ([]model.MealPlan, error) {
	rows, err := db.Query(`SELECT `+mealPlanColumns+` FROM meal_plans ORDER BY start_date DESC LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	out := make([]model.MealPlan, 0)
	for rows.Next() {
		p, err := scanMealPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal plans: %w", err)
	}
	return out, nil
}

func ListMealPlanItems(db *sql.DB, planID string) ([]model.MealPlanItem, error) {
	rows, err := db.Query(`
SELECT `+mealPlanItemColumns+` FROM meal_plan_items
WHERE meal_plan_id = ?
ORDER BY day_of_week ASC, CASE meal_type WHEN 'breakfast' THEN 0 WHEN 'lunch' THEN 1 WHEN 'dinner' THEN 2 ELSE 3 END
`, planID)
	if err != nil {
		return nil, fmt.Errorf("list items for meal plan %q: %w", planID, err)
	}
	defer rows.Close()

	out := make([]model.MealPlanItem, 0)
	for rows.Next() {
		item, err := scanMealPlanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal plan items: %w", err)
	}
	return out, nil
}

func GetMealPlanItem(db *sql.DB, id string) (model.MealPlanItem, error) {
	item, err := scanMealPlanItem(db.QueryRow(`SELECT `+mealPlanItemColumns+` FROM meal_plan_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.MealPlanItem{}, fmt.Errorf("meal plan item %q: %w", id, ErrNotFound)
	}
	return item, err
}

// DeleteMealPlan cascades to items and detaches grocery items.
func DeleteMealPlan(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM meal_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meal plan %q: %w", id, err)
	}
	return affectedOrNotFound(res, "meal plan", id)
}

func DeleteMealPlanItem(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM meal_plan_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meal plan item %q: %w", id, err)
	}
	return affectedOrNotFound(res, "meal plan item", id)
}

func scanMealPlan(row rowScanner) (model.MealPlan, error) {
	var p model.MealPlan
	var start, end, created string
	var remoteID sql.NullString
	if err := row.Scan(&p.ID, &start, &end, &created, &p.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("scan meal plan: %w", err)
	}
	var err error
	if p.StartDate, err = parseTime("start_date", start); err != nil {
		return p, err
	}
	if p.EndDate, err = parseTime("end_date", end); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime("created_at", created); err != nil {
		return p, err
	}
	p.RemoteID = stringPtr(remoteID)
	return p, nil
}

func scanMealPlanItem(row rowScanner) (model.MealPlanItem, error) {
	var item model.MealPlanItem
	var remoteID sql.NullString
	if err := row.Scan(&item.ID, &item.MealPlanID, &item.RecipeID, &item.DayOfWeek, &item.MealType, &item.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return item, err
		}
		return item, fmt.Errorf("scan meal plan item: %w", err)
	}
	item.RemoteID = stringPtr(remoteID)
	return item, nil
}
