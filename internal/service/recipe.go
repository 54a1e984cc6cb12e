package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

// RecipeImport is one recipe as pulled from the remote catalogue, ingredients
// included.
type RecipeImport struct {
	RemoteID     string
	Name         string
	Description  string
	MealType     string
	PrepTimeMin  *int
	CookTimeMin  *int
	Instructions string
	Ingredients  []IngredientImport
	// KeepIngredients leaves the stored ingredients untouched, for when the
	// remote ingredient list could not be read.
	KeepIngredients bool
}

type IngredientImport struct {
	RemoteID string
	Name     string
	Quantity string
	Unit     string
}

type RecipeFilter struct {
	Search        string
	MealType      string
	FavoritesOnly bool
	Limit         int
}

const recipeColumns = `id, name, IFNULL(description, ''), meal_type, prep_time_min, cook_time_min, IFNULL(instructions, ''),
is_favorite, last_synced_at, remote_id`

// ReplaceRecipes overwrites local copies of pulled recipes. Rows are matched
// by remote id so local ids (and the meal plans pointing at them) stay
// stable; favorites survive. Each recipe's ingredient list is replaced whole.
func ReplaceRecipes(db *sql.DB, recipes []RecipeImport, pulledAt time.Time) (int, error) {
	for i, r := range recipes {
		if strings.TrimSpace(r.RemoteID) == "" {
			return 0, fmt.Errorf("recipe %d: remote id is required", i+1)
		}
		if strings.TrimSpace(r.Name) == "" {
			return 0, fmt.Errorf("recipe %q: name is required", r.RemoteID)
		}
	}
	stamp := formatTime(nowOr(pulledAt))

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin recipe replace: %w", err)
	}
	for _, r := range recipes {
		mealType := normalizeName(r.MealType)
		if mealType == "" {
			mealType = "dinner"
		}
		if _, err := tx.Exec(`
INSERT INTO recipes(id, name, description, meal_type, prep_time_min, cook_time_min, instructions, last_synced_at, synced, remote_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(remote_id) DO UPDATE SET
  name = excluded.name,
  description = excluded.description,
  meal_type = excluded.meal_type,
  prep_time_min = excluded.prep_time_min,
  cook_time_min = excluded.cook_time_min,
  instructions = excluded.instructions,
  last_synced_at = excluded.last_synced_at
`, newID(), strings.TrimSpace(r.Name), nullableString(r.Description), mealType, nullableInt(r.PrepTimeMin),
			nullableInt(r.CookTimeMin), nullableString(r.Instructions), stamp, r.RemoteID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert recipe %q: %w", r.RemoteID, err)
		}
		var localID string
		if err := tx.QueryRow(`SELECT id FROM recipes WHERE remote_id = ?`, r.RemoteID).Scan(&localID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("resolve recipe %q: %w", r.RemoteID, err)
		}
		if r.KeepIngredients {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM ingredients WHERE recipe_id = ?`, localID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("clear ingredients for recipe %q: %w", r.RemoteID, err)
		}
		for _, ing := range r.Ingredients {
			name := strings.TrimSpace(ing.Name)
			if name == "" {
				continue
			}
			if _, err := tx.Exec(`
INSERT INTO ingredients(id, recipe_id, ingredient_name, quantity, unit, synced, remote_id)
VALUES(?, ?, ?, ?, ?, 1, ?)
`, newID(), localID, name, strings.TrimSpace(ing.Quantity), nullableString(ing.Unit), ing.RemoteID); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("insert ingredient %q for recipe %q: %w", name, r.RemoteID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recipe replace: %w", err)
	}
	return len(recipes), nil
}

func GetRecipe(db *sql.DB, id string) (model.Recipe, error) {
	r, err := scanRecipe(db.QueryRow(`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.Recipe{}, fmt.Errorf("recipe %q: %w", id, ErrNotFound)
	}
	return r, err
}

// ResolveRecipe accepts a local id or an exact (case-insensitive) name.
func ResolveRecipe(db *sql.DB, idOrName string) (model.Recipe, error) {
	r, err := GetRecipe(db, idOrName)
	if err == nil {
		return r, nil
	}
	r, err = scanRecipe(db.QueryRow(`SELECT `+recipeColumns+` FROM recipes WHERE LOWER(name) = ? ORDER BY name LIMIT 1`, normalizeName(idOrName)))
	if err == sql.ErrNoRows {
		return model.Recipe{}, fmt.Errorf("recipe %q: %w", idOrName, ErrNotFound)
	}
	return r, err
}

func ListRecipes(db *sql.DB, f RecipeFilter) ([]model.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE 1=1`
	args := make([]any, 0)
	if s := strings.TrimSpace(f.Search); s != "" {
		query += ` AND (LOWER(name) LIKE ? OR LOWER(IFNULL(description, '')) LIKE ?)`
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}
	if strings.TrimSpace(f.MealType) != "" {
		query += ` AND meal_type = ?`
		args = append(args, normalizeName(f.MealType))
	}
	if f.FavoritesOnly {
		query += ` AND is_favorite = 1`
	}
	query += ` ORDER BY name ASC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	out := make([]model.Recipe, 0)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return out, nil
}

func SetRecipeFavorite(db *sql.DB, id string, favorite bool) error {
	res, err := db.Exec(`UPDATE recipes SET is_favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return fmt.Errorf("set favorite on recipe %q: %w", id, err)
	}
	return affectedOrNotFound(res, "recipe", id)
}

// DeleteRecipe cascades to ingredients and meal plan items and detaches meal
// entries.
func DeleteRecipe(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recipe %q: %w", id, err)
	}
	return affectedOrNotFound(res, "recipe", id)
}

func ListIngredients(db *sql.DB, recipeID string) ([]model.Ingredient, error) {
	rows, err := db.Query(`
SELECT id, recipe_id, ingredient_name, quantity, IFNULL(unit, ''), remote_id
FROM ingredients
WHERE recipe_id = ?
ORDER BY rowid ASC
`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list ingredients for recipe %q: %w", recipeID, err)
	}
	defer rows.Close()

	out := make([]model.Ingredient, 0)
	for rows.Next() {
		var ing model.Ingredient
		if err := rows.Scan(&ing.ID, &ing.RecipeID, &ing.Name, &ing.Quantity, &ing.Unit, &ing.RemoteID); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		out = append(out, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredients: %w", err)
	}
	return out, nil
}

func scanRecipe(row rowScanner) (model.Recipe, error) {
	var r model.Recipe
	var prep, cook sql.NullInt64
	var lastSynced string
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.MealType, &prep, &cook, &r.Instructions, &r.IsFavorite, &lastSynced, &r.RemoteID); err != nil {
		if err == sql.ErrNoRows {
			return r, err
		}
		return r, fmt.Errorf("scan recipe: %w", err)
	}
	t, err := parseTime("last_synced_at", lastSynced)
	if err != nil {
		return r, err
	}
	r.LastSyncedAt = t
	r.PrepTimeMin = intPtr(prep)
	r.CookTimeMin = intPtr(cook)
	return r, nil
}
