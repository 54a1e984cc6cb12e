package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is wrapped by every lookup that misses.
var ErrNotFound = errors.New("not found")

// Fixed-width UTC layout: lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultListLimit = 50

type rowScanner interface {
	Scan(dest ...any) error
}

func newID() string {
	return uuid.NewString()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return t, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func validateLevel(name string, value int) error {
	if value < 1 || value > 10 {
		return fmt.Errorf("%s must be between 1 and 10", name)
	}
	return nil
}

func validateOptionalLevel(name string, value *int) error {
	if value == nil {
		return nil
	}
	return validateLevel(name, *value)
}

func validateNonNegativeFloat(name string, value *float64) error {
	if value != nil && *value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

func validateNonNegativeInt(name string, value *int) error {
	if value != nil && *value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

func nullableString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return nullableString(*value)
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// dateRange turns inclusive YYYY-MM-DD bounds into [from, to) timestamps in
// the store's layout. Empty bounds stay empty.
func dateRange(fromDate, toDate string) (string, string, error) {
	var from, to string
	if strings.TrimSpace(fromDate) != "" {
		t, err := parseDate(fromDate)
		if err != nil {
			return "", "", err
		}
		from = formatTime(t)
	}
	if strings.TrimSpace(toDate) != "" {
		t, err := parseDate(toDate)
		if err != nil {
			return "", "", err
		}
		to = formatTime(t.Add(24 * time.Hour))
	}
	if from != "" && to != "" && from >= to {
		return "", "", fmt.Errorf("from date %s must not be after to date %s", fromDate, toDate)
	}
	return from, to, nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func affectedOrNotFound(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve affected rows for %s %q: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return nil
}
