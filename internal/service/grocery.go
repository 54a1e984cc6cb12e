package service

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/neurothrive/thrive/internal/model"
)

type GroceryInput struct {
	ItemName       string
	Category       string
	Quantity       string
	Unit           string
	EstimatedPrice *float64
	MealPlanID     *string
}

type GroceryFilter struct {
	MealPlanID string
	Category   string
	Pending    bool
	Unsynced   bool
	Limit      int
}

const groceryColumns = `id, item_name, category, quantity, IFNULL(unit, ''), estimated_price, is_purchased, meal_plan_id, synced, remote_id`

// GroceryInputFrom leaves out the purchased flag, which has its own setter.
func GroceryInputFrom(g model.GroceryItem) GroceryInput {
	return GroceryInput{
		ItemName:       g.ItemName,
		Category:       g.Category,
		Quantity:       g.Quantity,
		Unit:           g.Unit,
		EstimatedPrice: g.EstimatedPrice,
		MealPlanID:     g.MealPlanID,
	}
}

func validateGroceryInput(in *GroceryInput) error {
	in.ItemName = strings.TrimSpace(in.ItemName)
	if in.ItemName == "" {
		return fmt.Errorf("grocery item name is required")
	}
	in.Category = normalizeName(in.Category)
	if in.Category == "" {
		in.Category = "other"
	}
	in.Quantity = strings.TrimSpace(in.Quantity)
	if in.Quantity == "" {
		in.Quantity = "1"
	}
	in.Unit = strings.TrimSpace(in.Unit)
	return validateNonNegativeFloat("estimated price", in.EstimatedPrice)
}

func CreateGroceryItem(db *sql.DB, in GroceryInput) (string, error) {
	if err := validateGroceryInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO grocery_items(id, item_name, category, quantity, unit, estimated_price, meal_plan_id)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, id, in.ItemName, in.Category, in.Quantity, nullableString(in.Unit), nullableFloat(in.EstimatedPrice), nullableStringPtr(in.MealPlanID))
	if err != nil {
		return "", fmt.Errorf("insert grocery item: %w", err)
	}
	return id, nil
}

func GetGroceryItem(db *sql.DB, id string) (model.GroceryItem, error) {
	g, err := scanGrocery(db.QueryRow(`SELECT `+groceryColumns+` FROM grocery_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.GroceryItem{}, fmt.Errorf("grocery item %q: %w", id, ErrNotFound)
	}
	return g, err
}

func ListGroceryItems(db *sql.DB, f GroceryFilter) ([]model.GroceryItem, error) {
	query := `SELECT ` + groceryColumns + ` FROM grocery_items WHERE 1=1`
	args := make([]any, 0)
	if strings.TrimSpace(f.MealPlanID) != "" {
		query += ` AND meal_plan_id = ?`
		args = append(args, f.MealPlanID)
	}
	if strings.TrimSpace(f.Category) != "" {
		query += ` AND category = ?`
		args = append(args, normalizeName(f.Category))
	}
	if f.Pending {
		query += ` AND is_purchased = 0`
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY is_purchased ASC, category ASC, item_name ASC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grocery items: %w", err)
	}
	defer rows.Close()

	out := make([]model.GroceryItem, 0)
	for rows.Next() {
		g, err := scanGrocery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grocery items: %w", err)
	}
	return out, nil
}

func UpdateGroceryItem(db *sql.DB, id string, in GroceryInput) error {
	if err := validateGroceryInput(&in); err != nil {
		return err
	}
	res, err := db.Exec(`
UPDATE grocery_items
SET item_name = ?, category = ?, quantity = ?, unit = ?, estimated_price = ?, meal_plan_id = ?, synced = 0
WHERE id = ?
`, in.ItemName, in.Category, in.Quantity, nullableString(in.Unit), nullableFloat(in.EstimatedPrice), nullableStringPtr(in.MealPlanID), id)
	if err != nil {
		return fmt.Errorf("update grocery item %q: %w", id, err)
	}
	return affectedOrNotFound(res, "grocery item", id)
}

func SetGroceryPurchased(db *sql.DB, id string, purchased bool) error {
	res, err := db.Exec(`UPDATE grocery_items SET is_purchased = ?, synced = 0 WHERE id = ?`, purchased, id)
	if err != nil {
		return fmt.Errorf("set purchased on grocery item %q: %w", id, err)
	}
	return affectedOrNotFound(res, "grocery item", id)
}

func DeleteGroceryItem(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM grocery_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete grocery item %q: %w", id, err)
	}
	return affectedOrNotFound(res, "grocery item", id)
}

// GenerateGroceryList adds one grocery item per distinct ingredient (name and
// unit) used by the plan's recipes. A recipe planned twice counts twice.
// Numeric quantities are summed; anything else is joined with " + ".
func GenerateGroceryList(db *sql.DB, planID string) ([]string, error) {
	if _, err := GetMealPlan(db, planID); err != nil {
		return nil, err
	}
	rows, err := db.Query(`
SELECT LOWER(TRIM(i.ingredient_name)), i.quantity, IFNULL(i.unit, '')
FROM meal_plan_items mpi
JOIN ingredients i ON i.recipe_id = mpi.recipe_id
WHERE mpi.meal_plan_id = ?
ORDER BY mpi.day_of_week ASC, i.rowid ASC
`, planID)
	if err != nil {
		return nil, fmt.Errorf("collect ingredients for meal plan %q: %w", planID, err)
	}
	type key struct{ name, unit string }
	type tally struct {
		sum     float64
		numeric bool
		parts   []string
	}
	totals := map[key]*tally{}
	order := make([]key, 0)
	for rows.Next() {
		var name, quantity, unit string
		if err := rows.Scan(&name, &quantity, &unit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan plan ingredient: %w", err)
		}
		k := key{name: name, unit: strings.TrimSpace(unit)}
		t, ok := totals[k]
		if !ok {
			t = &tally{numeric: true}
			totals[k] = t
			order = append(order, k)
		}
		quantity = strings.TrimSpace(quantity)
		if v, err := strconv.ParseFloat(quantity, 64); err == nil && t.numeric {
			t.sum += v
		} else {
			t.numeric = false
		}
		t.parts = append(t.parts, quantity)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate plan ingredients: %w", err)
	}
	rows.Close()

	sort.SliceStable(order, func(i, j int) bool { return order[i].name < order[j].name })
	ids := make([]string, 0, len(order))
	plan := planID
	for _, k := range order {
		t := totals[k]
		quantity := strings.Join(t.parts, " + ")
		if t.numeric {
			quantity = strconv.FormatFloat(t.sum, 'f', -1, 64)
		}
		id, err := CreateGroceryItem(db, GroceryInput{
			ItemName:   k.name,
			Category:   "meal plan",
			Quantity:   quantity,
			Unit:       k.unit,
			MealPlanID: &plan,
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func scanGrocery(row rowScanner) (model.GroceryItem, error) {
	var g model.GroceryItem
	var price sql.NullFloat64
	var planID, remoteID sql.NullString
	if err := row.Scan(&g.ID, &g.ItemName, &g.Category, &g.Quantity, &g.Unit, &price, &g.IsPurchased, &planID, &g.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return g, err
		}
		return g, fmt.Errorf("scan grocery item: %w", err)
	}
	g.EstimatedPrice = floatPtr(price)
	g.MealPlanID = stringPtr(planID)
	g.RemoteID = stringPtr(remoteID)
	return g, nil
}
