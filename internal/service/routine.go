package service

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type RoutineInput struct {
	RoutineDate     time.Time
	MoodLevel       int
	EnergyLevel     int
	PainLevel       int
	SleepQuality    *int
	ExerciseMinutes *int
	HydrationOunces *int
	MealsEaten      *int
	JournalEntry    string
	WakeTime        string
	SleepTime       string
	BedTime         string
	MorningMood     *int
	MorningEnergy   *int
	MorningPain     *int
}

type RoutineFilter struct {
	FromDate string
	ToDate   string
	Unsynced bool
	Limit    int
}

const routineColumns = `id, routine_date, mood_level, energy_level, pain_level, sleep_quality, exercise_minutes, hydration_ounces,
meals_eaten, IFNULL(journal_entry, ''), IFNULL(wake_time, ''), IFNULL(sleep_time, ''), IFNULL(bed_time, ''),
morning_mood, morning_energy, morning_pain, synced, remote_id`

func RoutineInputFrom(r model.DailyRoutine) RoutineInput {
	return RoutineInput{
		RoutineDate:     r.RoutineDate,
		MoodLevel:       r.MoodLevel,
		EnergyLevel:     r.EnergyLevel,
		PainLevel:       r.PainLevel,
		SleepQuality:    r.SleepQuality,
		ExerciseMinutes: r.ExerciseMinutes,
		HydrationOunces: r.HydrationOunces,
		MealsEaten:      r.MealsEaten,
		JournalEntry:    r.JournalEntry,
		WakeTime:        r.WakeTime,
		SleepTime:       r.SleepTime,
		BedTime:         r.BedTime,
		MorningMood:     r.MorningMood,
		MorningEnergy:   r.MorningEnergy,
		MorningPain:     r.MorningPain,
	}
}

func validateRoutineInput(in *RoutineInput) error {
	if err := validateLevel("mood", in.MoodLevel); err != nil {
		return err
	}
	if err := validateLevel("energy", in.EnergyLevel); err != nil {
		return err
	}
	if err := validateLevel("pain", in.PainLevel); err != nil {
		return err
	}
	optionalLevels := []struct {
		name  string
		value *int
	}{
		{"sleep quality", in.SleepQuality},
		{"morning mood", in.MorningMood},
		{"morning energy", in.MorningEnergy},
		{"morning pain", in.MorningPain},
	}
	for _, l := range optionalLevels {
		if err := validateOptionalLevel(l.name, l.value); err != nil {
			return err
		}
	}
	if err := validateNonNegativeInt("exercise minutes", in.ExerciseMinutes); err != nil {
		return err
	}
	if err := validateNonNegativeInt("hydration ounces", in.HydrationOunces); err != nil {
		return err
	}
	if err := validateNonNegativeInt("meals eaten", in.MealsEaten); err != nil {
		return err
	}
	clocks := []struct {
		name  string
		value *string
	}{
		{"wake time", &in.WakeTime},
		{"sleep time", &in.SleepTime},
		{"bed time", &in.BedTime},
	}
	for _, c := range clocks {
		*c.value = strings.TrimSpace(*c.value)
		if *c.value != "" && !clockPattern.MatchString(*c.value) {
			return fmt.Errorf("%s must be HH:MM", c.name)
		}
	}
	in.JournalEntry = strings.TrimSpace(in.JournalEntry)
	return nil
}

// routineDay truncates to local midnight; one routine is kept per day by
// convention, not by constraint.
func routineDay(t time.Time) time.Time {
	t = nowOr(t).Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func CreateDailyRoutine(db *sql.DB, in RoutineInput) (string, error) {
	if err := validateRoutineInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO daily_routines(id, routine_date, mood_level, energy_level, pain_level, sleep_quality, exercise_minutes,
  hydration_ounces, meals_eaten, journal_entry, wake_time, sleep_time, bed_time, morning_mood, morning_energy, morning_pain)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, formatTime(routineDay(in.RoutineDate)), in.MoodLevel, in.EnergyLevel, in.PainLevel,
		nullableInt(in.SleepQuality), nullableInt(in.ExerciseMinutes), nullableInt(in.HydrationOunces), nullableInt(in.MealsEaten),
		nullableString(in.JournalEntry), nullableString(in.WakeTime), nullableString(in.SleepTime), nullableString(in.BedTime),
		nullableInt(in.MorningMood), nullableInt(in.MorningEnergy), nullableInt(in.MorningPain))
	if err != nil {
		return "", fmt.Errorf("insert daily routine: %w", err)
	}
	return id, nil
}

func GetDailyRoutine(db *sql.DB, id string) (model.DailyRoutine, error) {
	r, err := scanRoutine(db.QueryRow(`SELECT `+routineColumns+` FROM daily_routines WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.DailyRoutine{}, fmt.Errorf("daily routine %q: %w", id, ErrNotFound)
	}
	return r, err
}

// RoutineForDate returns the most recent routine recorded for the day of t.
func RoutineForDate(db *sql.DB, t time.Time) (model.DailyRoutine, bool, error) {
	day := routineDay(t)
	r, err := scanRoutine(db.QueryRow(`
SELECT `+routineColumns+` FROM daily_routines
WHERE routine_date >= ? AND routine_date < ?
ORDER BY rowid DESC LIMIT 1
`, formatTime(day), formatTime(day.AddDate(0, 0, 1))))
	if err == sql.ErrNoRows {
		return model.DailyRoutine{}, false, nil
	}
	if err != nil {
		return model.DailyRoutine{}, false, err
	}
	return r, true, nil
}

func ListDailyRoutines(db *sql.DB, f RoutineFilter) ([]model.DailyRoutine, error) {
	from, to, err := dateRange(f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + routineColumns + ` FROM daily_routines WHERE 1=1`
	args := make([]any, 0)
	if from != "" {
		query += ` AND routine_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND routine_date < ?`
		args = append(args, to)
	}
	query += unsyncedClause("", f.Unsynced)
	query += ` ORDER BY routine_date DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily routines: %w", err)
	}
	defer rows.Close()

	out := make([]model.DailyRoutine, 0)
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily routines: %w", err)
	}
	return out, nil
}

func UpdateDailyRoutine(db *sql.DB, id string, in RoutineInput) error {
	if err := validateRoutineInput(&in); err != nil {
		return err
	}
	if in.RoutineDate.IsZero() {
		return fmt.Errorf("routine date is required")
	}
	res, err := db.Exec(`
UPDATE daily_routines
SET routine_date = ?, mood_level = ?, energy_level = ?, pain_level = ?, sleep_quality = ?, exercise_minutes = ?,
    hydration_ounces = ?, meals_eaten = ?, journal_entry = ?, wake_time = ?, sleep_time = ?, bed_time = ?,
    morning_mood = ?, morning_energy = ?, morning_pain = ?, synced = 0
WHERE id = ?
`, formatTime(routineDay(in.RoutineDate)), in.MoodLevel, in.EnergyLevel, in.PainLevel,
		nullableInt(in.SleepQuality), nullableInt(in.ExerciseMinutes), nullableInt(in.HydrationOunces), nullableInt(in.MealsEaten),
		nullableString(in.JournalEntry), nullableString(in.WakeTime), nullableString(in.SleepTime), nullableString(in.BedTime),
		nullableInt(in.MorningMood), nullableInt(in.MorningEnergy), nullableInt(in.MorningPain), id)
	if err != nil {
		return fmt.Errorf("update daily routine %q: %w", id, err)
	}
	return affectedOrNotFound(res, "daily routine", id)
}

// AppendJournal adds text to the routine for the day of t, creating a routine
// with neutral levels when none exists yet.
func AppendJournal(db *sql.DB, t time.Time, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("journal text is required")
	}
	existing, ok, err := RoutineForDate(db, t)
	if err != nil {
		return "", err
	}
	if !ok {
		return CreateDailyRoutine(db, RoutineInput{
			RoutineDate:  t,
			MoodLevel:    5,
			EnergyLevel:  5,
			PainLevel:    5,
			JournalEntry: text,
		})
	}
	journal := text
	if existing.JournalEntry != "" {
		journal = existing.JournalEntry + "\n\n" + text
	}
	res, err := db.Exec(`UPDATE daily_routines SET journal_entry = ?, synced = 0 WHERE id = ?`, journal, existing.ID)
	if err != nil {
		return "", fmt.Errorf("append journal to routine %q: %w", existing.ID, err)
	}
	if err := affectedOrNotFound(res, "daily routine", existing.ID); err != nil {
		return "", err
	}
	return existing.ID, nil
}

func DeleteDailyRoutine(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM daily_routines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete daily routine %q: %w", id, err)
	}
	return affectedOrNotFound(res, "daily routine", id)
}

func scanRoutine(row rowScanner) (model.DailyRoutine, error) {
	var r model.DailyRoutine
	var routineDate string
	var sleepQuality, exercise, hydration, meals, mMood, mEnergy, mPain sql.NullInt64
	var remoteID sql.NullString
	if err := row.Scan(&r.ID, &routineDate, &r.MoodLevel, &r.EnergyLevel, &r.PainLevel, &sleepQuality, &exercise, &hydration,
		&meals, &r.JournalEntry, &r.WakeTime, &r.SleepTime, &r.BedTime, &mMood, &mEnergy, &mPain, &r.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return r, err
		}
		return r, fmt.Errorf("scan daily routine: %w", err)
	}
	t, err := parseTime("routine_date", routineDate)
	if err != nil {
		return r, err
	}
	r.RoutineDate = t
	r.SleepQuality = intPtr(sleepQuality)
	r.ExerciseMinutes = intPtr(exercise)
	r.HydrationOunces = intPtr(hydration)
	r.MealsEaten = intPtr(meals)
	r.MorningMood = intPtr(mMood)
	r.MorningEnergy = intPtr(mEnergy)
	r.MorningPain = intPtr(mPain)
	r.RemoteID = stringPtr(remoteID)
	return r, nil
}
