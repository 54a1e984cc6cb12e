package service

import (
	"database/sql"
	"fmt"
)

type DoctorReport struct {
	SyncedWithoutRemoteID int `json:"synced_without_remote_id" yaml:"synced_without_remote_id"`
	OrphanIngredients     int `json:"orphan_ingredients" yaml:"orphan_ingredients"`
	OrphanMealPlanItems   int `json:"orphan_meal_plan_items" yaml:"orphan_meal_plan_items"`
	DanglingRecipeRefs    int `json:"dangling_recipe_refs" yaml:"dangling_recipe_refs"`
	DanglingMealPlanRefs  int `json:"dangling_meal_plan_refs" yaml:"dangling_meal_plan_refs"`
	ItemsAwaitingParent   int `json:"items_awaiting_parent" yaml:"items_awaiting_parent"`
	FixedRows             int `json:"fixed_rows,omitempty" yaml:"fixed_rows,omitempty"`
}

// Healthy reports whether no check found a problem. Items waiting on an
// unpushed plan are informational.
func (r DoctorReport) Healthy() bool {
	return r.SyncedWithoutRemoteID == 0 && r.OrphanIngredients == 0 && r.OrphanMealPlanItems == 0 &&
		r.DanglingRecipeRefs == 0 && r.DanglingMealPlanRefs == 0
}

type doctorCheck struct {
	count string
	fix   string
	into  *int
}

// RunDoctor audits the sync invariant and parent references. Databases
// written with foreign keys disabled can hold orphans the schema would
// otherwise reject.
func RunDoctor(db *sql.DB, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	checks := []doctorCheck{
		{
			count: `SELECT COUNT(1) FROM ingredients i LEFT JOIN recipes r ON r.id = i.recipe_id WHERE r.id IS NULL`,
			fix:   `DELETE FROM ingredients WHERE recipe_id NOT IN (SELECT id FROM recipes)`,
			into:  &report.OrphanIngredients,
		},
		{
			count: `SELECT COUNT(1) FROM meal_plan_items mpi
LEFT JOIN meal_plans mp ON mp.id = mpi.meal_plan_id
LEFT JOIN recipes r ON r.id = mpi.recipe_id
WHERE mp.id IS NULL OR r.id IS NULL`,
			fix: `DELETE FROM meal_plan_items
WHERE meal_plan_id NOT IN (SELECT id FROM meal_plans) OR recipe_id NOT IN (SELECT id FROM recipes)`,
			into: &report.OrphanMealPlanItems,
		},
		{
			count: `SELECT COUNT(1) FROM meal_entries m LEFT JOIN recipes r ON r.id = m.recipe_id WHERE m.recipe_id IS NOT NULL AND r.id IS NULL`,
			fix:   `UPDATE meal_entries SET recipe_id = NULL WHERE recipe_id IS NOT NULL AND recipe_id NOT IN (SELECT id FROM recipes)`,
			into:  &report.DanglingRecipeRefs,
		},
		{
			count: `SELECT COUNT(1) FROM grocery_items g LEFT JOIN meal_plans mp ON mp.id = g.meal_plan_id WHERE g.meal_plan_id IS NOT NULL AND mp.id IS NULL`,
			fix:   `UPDATE grocery_items SET meal_plan_id = NULL WHERE meal_plan_id IS NOT NULL AND meal_plan_id NOT IN (SELECT id FROM meal_plans)`,
			into:  &report.DanglingMealPlanRefs,
		},
	}
	for _, t := range PushTables {
		checks = append(checks, doctorCheck{
			count: fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE synced = 1 AND remote_id IS NULL`, t),
			fix:   fmt.Sprintf(`UPDATE %s SET synced = 0 WHERE synced = 1 AND remote_id IS NULL`, t),
			into:  &report.SyncedWithoutRemoteID,
		})
	}

	for _, c := range checks {
		var n int
		if err := db.QueryRow(c.count).Scan(&n); err != nil {
			return report, fmt.Errorf("doctor check: %w", err)
		}
		*c.into += n
	}
	if err := db.QueryRow(`
SELECT COUNT(1) FROM meal_plan_items mpi
JOIN meal_plans mp ON mp.id = mpi.meal_plan_id
WHERE mpi.synced = 0 AND mp.remote_id IS NULL
`).Scan(&report.ItemsAwaitingParent); err != nil {
		return report, fmt.Errorf("doctor pending parent check: %w", err)
	}

	if fix && !report.Healthy() {
		tx, err := db.Begin()
		if err != nil {
			return report, fmt.Errorf("doctor fix begin tx: %w", err)
		}
		for _, c := range checks {
			res, err := tx.Exec(c.fix)
			if err != nil {
				_ = tx.Rollback()
				return report, fmt.Errorf("doctor fix: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				_ = tx.Rollback()
				return report, fmt.Errorf("doctor fix rows: %w", err)
			}
			report.FixedRows += int(n)
		}
		if err := tx.Commit(); err != nil {
			return report, fmt.Errorf("doctor fix commit: %w", err)
		}
	}

	return report, nil
}
