package db

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

// Migrations are append-only. Never edit or drop a shipped version; add a new
// one that ALTERs or CREATEs.
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mood_entries (
  id TEXT PRIMARY KEY,
  mood_level INTEGER NOT NULL CHECK(mood_level BETWEEN 1 AND 10),
  energy_level INTEGER NOT NULL CHECK(energy_level BETWEEN 1 AND 10),
  pain_level INTEGER NOT NULL CHECK(pain_level BETWEEN 1 AND 10),
  recorded_at TEXT NOT NULL,
  notes TEXT,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_mood_entries_recorded_at ON mood_entries(recorded_at);
CREATE INDEX IF NOT EXISTS idx_mood_entries_synced ON mood_entries(synced);

CREATE TABLE IF NOT EXISTS win_entries (
  id TEXT PRIMARY KEY,
  description TEXT NOT NULL,
  category TEXT,
  recorded_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_win_entries_recorded_at ON win_entries(recorded_at);

CREATE TABLE IF NOT EXISTS job_postings (
  id TEXT PRIMARY KEY,
  job_title TEXT NOT NULL,
  company_name TEXT NOT NULL,
  url TEXT NOT NULL,
  salary_min REAL,
  salary_max REAL,
  remote_policy TEXT,
  description TEXT,
  fit_score REAL,
  nd_friendliness_score REAL,
  green_flags TEXT,
  red_flags TEXT,
  date_posted TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS daily_routines (
  id TEXT PRIMARY KEY,
  routine_date TEXT NOT NULL,
  mood_level INTEGER NOT NULL CHECK(mood_level BETWEEN 1 AND 10),
  energy_level INTEGER NOT NULL CHECK(energy_level BETWEEN 1 AND 10),
  pain_level INTEGER NOT NULL CHECK(pain_level BETWEEN 1 AND 10),
  sleep_quality INTEGER,
  exercise_minutes INTEGER,
  hydration_ounces INTEGER,
  meals_eaten INTEGER,
  journal_entry TEXT,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_daily_routines_routine_date ON daily_routines(routine_date);
`,
	},
	{
		version: 2,
		name:    "morning_routine_fields",
		sql: `
ALTER TABLE daily_routines ADD COLUMN wake_time TEXT;
ALTER TABLE daily_routines ADD COLUMN sleep_time TEXT;
ALTER TABLE daily_routines ADD COLUMN bed_time TEXT;
ALTER TABLE daily_routines ADD COLUMN morning_mood INTEGER;
ALTER TABLE daily_routines ADD COLUMN morning_energy INTEGER;
ALTER TABLE daily_routines ADD COLUMN morning_pain INTEGER;

ALTER TABLE mood_entries ADD COLUMN time_of_day TEXT;
`,
	},
	{
		version: 3,
		name:    "therapy_sessions",
		sql: `
CREATE TABLE IF NOT EXISTS therapy_sessions (
  id TEXT PRIMARY KEY,
  thought_text TEXT NOT NULL,
  believability_before INTEGER NOT NULL CHECK(believability_before BETWEEN 1 AND 10),
  evidence_for TEXT,
  evidence_against TEXT,
  alternative_perspective TEXT,
  reframe_suggestion TEXT,
  believability_after INTEGER CHECK(believability_after BETWEEN 1 AND 10),
  pattern_detected TEXT,
  recorded_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_therapy_sessions_recorded_at ON therapy_sessions(recorded_at);
`,
	},
	{
		version: 4,
		name:    "meal_planning",
		sql: `
CREATE TABLE IF NOT EXISTS recipes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  meal_type TEXT NOT NULL,
  prep_time_min INTEGER,
  cook_time_min INTEGER,
  instructions TEXT,
  is_favorite INTEGER NOT NULL DEFAULT 0,
  last_synced_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 1,
  remote_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS ingredients (
  id TEXT PRIMARY KEY,
  recipe_id TEXT NOT NULL,
  ingredient_name TEXT NOT NULL,
  quantity TEXT NOT NULL,
  unit TEXT,
  synced INTEGER NOT NULL DEFAULT 1,
  remote_id TEXT NOT NULL,
  FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_ingredients_recipe_id ON ingredients(recipe_id);

CREATE TABLE IF NOT EXISTS meal_entries (
  id TEXT PRIMARY KEY,
  meal_type TEXT NOT NULL,
  description TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  photo_uri TEXT,
  recipe_id TEXT,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL),
  FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_meal_entries_recorded_at ON meal_entries(recorded_at);

CREATE TABLE IF NOT EXISTS meal_plans (
  id TEXT PRIMARY KEY,
  start_date TEXT NOT NULL,
  end_date TEXT NOT NULL,
  created_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL),
  CHECK(end_date >= start_date)
);

CREATE TABLE IF NOT EXISTS meal_plan_items (
  id TEXT PRIMARY KEY,
  meal_plan_id TEXT NOT NULL,
  recipe_id TEXT NOT NULL,
  day_of_week INTEGER NOT NULL CHECK(day_of_week BETWEEN 0 AND 6),
  meal_type TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL),
  FOREIGN KEY(meal_plan_id) REFERENCES meal_plans(id) ON DELETE CASCADE,
  FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_meal_plan_items_meal_plan_id ON meal_plan_items(meal_plan_id);

CREATE TABLE IF NOT EXISTS grocery_items (
  id TEXT PRIMARY KEY,
  item_name TEXT NOT NULL,
  category TEXT NOT NULL,
  quantity TEXT NOT NULL,
  unit TEXT,
  estimated_price REAL CHECK(estimated_price >= 0),
  is_purchased INTEGER NOT NULL DEFAULT 0,
  meal_plan_id TEXT,
  synced INTEGER NOT NULL DEFAULT 0,
  remote_id TEXT,
  CHECK(synced = 0 OR remote_id IS NOT NULL),
  FOREIGN KEY(meal_plan_id) REFERENCES meal_plans(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  item_name TEXT NOT NULL,
  discount_amount REAL NOT NULL CHECK(discount_amount >= 0),
  discount_type TEXT NOT NULL,
  expiration_date TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_synced_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 1,
  remote_id TEXT NOT NULL UNIQUE
);
`,
	},
	{
		version: 5,
		name:    "app_config",
		sql: `
CREATE TABLE IF NOT EXISTS app_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	},
	{
		version: 6,
		name:    "sync_runs",
		sql: `
CREATE TABLE IF NOT EXISTS sync_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  trigger_source TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  total_synced INTEGER NOT NULL DEFAULT 0,
  total_failed INTEGER NOT NULL DEFAULT 0,
  counts_json TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`,
	},
}

func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration version %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration version %d: %w", m.version, err)
		}
	}

	return nil
}

// LatestVersion reports the highest migration version this binary knows.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// CurrentVersion reports the highest applied migration, 0 for a new file.
func CurrentVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}
