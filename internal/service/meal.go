package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

var validMealTypes = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"snack":     true,
}

func normalizeMealType(mealType string) (string, error) {
	mealType = normalizeName(mealType)
	if !validMealTypes[mealType] {
		return "", fmt.Errorf("meal type must be one of breakfast, lunch, dinner, snack")
	}
	return mealType, nil
}

type MealInput struct {
	MealType    string
	Description string
	RecordedAt  time.Time
	PhotoURI    string
	RecipeID    *string
}

type MealFilter struct {
	FromDate string
	ToDate   string
	MealType string
	Unsynced bool
	Limit    int
}

const mealColumns = `id, meal_type, description, recorded_at, IFNULL(photo_uri, ''), recipe_id, synced, remote_id`

func MealInputFrom(m model.MealEntry) MealInput {
	return MealInput{MealType: m.MealType, Description: m.Description, RecordedAt: m.RecordedAt, PhotoURI: m.PhotoURI, RecipeID: m.RecipeID}
}

func validateMealInput(in *MealInput) error {
	mealType, err := normalizeMealType(in.MealType)
	if err != nil {
		return err
	}
	in.MealType = mealType
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return fmt.Errorf("meal description is required")
	}
	if in.RecipeID != nil && strings.TrimSpace(*in.RecipeID) == "" {
		in.RecipeID = nil
	}
	return nil
}

func CreateMealEntry(db *sql.DB, in MealInput) (string, error) {
	if err := validateMealInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO meal_entries(id, meal_type, description, recorded_at, photo_uri, recipe_id)
VALUES(?, ?, ?, ?, ?, ?)
`, id, in.MealType, in.Description, formatTime(nowOr(in.RecordedAt)), nullableString(in.PhotoURI), nullableStringPtr(in.RecipeID))
	if err != nil {
		return "", fmt.Errorf("insert meal entry: %w", err)
	}
	return id, nil
}

func GetMealEntry(db *sql.DB, id string) (model.MealEntry, error) {
	m, err := scanMeal(db.QueryRow(`SELECT `+mealColumns+` FROM meal_entries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.MealEntry{}, fmt.Errorf("meal entry %q: %w", id, ErrNotFound)
	}
	return m, err
}

func ListMealEntries(db *sql.DB, f MealFilter) ([]model.MealEntry, error) {
	from, to, err := dateRange(f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + mealColumns + ` FROM meal_entries WHERE 1=1`
	args := make([]any, 0)
	if from != "" {
		query += ` AND recorded_at >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND recorded_at < ?`
		args = append(args, to)
	}
	if strings.TrimSpace(f.MealType) != "" {
		mealType, err := normalizeMealType(f.MealType)
		if err != nil {
			return nil, err
		}
		query += ` AND meal_type = ?`
		args = append(args, mealType)
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meal entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.MealEntry, 0)
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal entries: %w", err)
	}
	return out, nil
}

func UpdateMealEntry(db *sql.DB, id string, in MealInput) error {
	if err := validateMealInput(&in); err != nil {
		return err
	}
	if in.RecordedAt.IsZero() {
		return fmt.Errorf("recorded time is required")
	}
	res, err := db.Exec(`
UPDATE meal_entries SET meal_type = ?, description = ?, recorded_at = ?, photo_uri = ?, recipe_id = ?, synced = 0
WHERE id = ?
`, in.MealType, in.Description, formatTime(in.RecordedAt), nullableString(in.PhotoURI), nullableStringPtr(in.RecipeID), id)
	if err != nil {
		return fmt.Errorf("update meal entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "meal entry", id)
}

func DeleteMealEntry(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM meal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meal entry %q: %w", id, err)
	}
	return affectedOrNotFound(res, "meal entry", id)
}

func scanMeal(row rowScanner) (model.MealEntry, error) {
	var m model.MealEntry
	var recordedAt string
	var recipeID, remoteID sql.NullString
	if err := row.Scan(&m.ID, &m.MealType, &m.Description, &recordedAt, &m.PhotoURI, &recipeID, &m.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return m, err
		}
		return m, fmt.Errorf("scan meal entry: %w", err)
	}
	t, err := parseTime("recorded_at", recordedAt)
	if err != nil {
		return m, err
	}
	m.RecordedAt = t
	m.RecipeID = stringPtr(recipeID)
	m.RemoteID = stringPtr(remoteID)
	return m, nil
}
