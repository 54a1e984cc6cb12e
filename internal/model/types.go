package model

import "time"

// SyncState is embedded by every locally tracked record. Synced implies
// RemoteID is set.
type SyncState struct {
	Synced   bool    `json:"synced" yaml:"synced"`
	RemoteID *string `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
}

type MoodEntry struct {
	ID          string    `json:"id" yaml:"id"`
	MoodLevel   int       `json:"mood_level" yaml:"mood_level"`
	EnergyLevel int       `json:"energy_level" yaml:"energy_level"`
	PainLevel   int       `json:"pain_level" yaml:"pain_level"`
	RecordedAt  time.Time `json:"recorded_at" yaml:"recorded_at"`
	TimeOfDay   string    `json:"time_of_day" yaml:"time_of_day"`
	Notes       string    `json:"notes" yaml:"notes"`
	SyncState   `yaml:",inline"`
}

type WinEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Category    string    `json:"category" yaml:"category"`
	RecordedAt  time.Time `json:"recorded_at" yaml:"recorded_at"`
	SyncState   `yaml:",inline"`
}

type JobPosting struct {
	ID                  string    `json:"id" yaml:"id"`
	JobTitle            string    `json:"job_title" yaml:"job_title"`
	CompanyName         string    `json:"company_name" yaml:"company_name"`
	URL                 string    `json:"url" yaml:"url"`
	SalaryMin           *float64  `json:"salary_min,omitempty" yaml:"salary_min,omitempty"`
	SalaryMax           *float64  `json:"salary_max,omitempty" yaml:"salary_max,omitempty"`
	RemotePolicy        string    `json:"remote_policy" yaml:"remote_policy"`
	Description         string    `json:"description" yaml:"description"`
	FitScore            *float64  `json:"fit_score,omitempty" yaml:"fit_score,omitempty"`
	NDFriendlinessScore *float64  `json:"nd_friendliness_score,omitempty" yaml:"nd_friendliness_score,omitempty"`
	GreenFlags          string    `json:"green_flags" yaml:"green_flags"`
	RedFlags            string    `json:"red_flags" yaml:"red_flags"`
	DatePosted          time.Time `json:"date_posted" yaml:"date_posted"`
	SyncState           `yaml:",inline"`
}

type DailyRoutine struct {
	ID              string    `json:"id" yaml:"id"`
	RoutineDate     time.Time `json:"routine_date" yaml:"routine_date"`
	MoodLevel       int       `json:"mood_level" yaml:"mood_level"`
	EnergyLevel     int       `json:"energy_level" yaml:"energy_level"`
	PainLevel       int       `json:"pain_level" yaml:"pain_level"`
	SleepQuality    *int      `json:"sleep_quality,omitempty" yaml:"sleep_quality,omitempty"`
	ExerciseMinutes *int      `json:"exercise_minutes,omitempty" yaml:"exercise_minutes,omitempty"`
	HydrationOunces *int      `json:"hydration_ounces,omitempty" yaml:"hydration_ounces,omitempty"`
	MealsEaten      *int      `json:"meals_eaten,omitempty" yaml:"meals_eaten,omitempty"`
	JournalEntry    string    `json:"journal_entry" yaml:"journal_entry"`
	WakeTime        string    `json:"wake_time" yaml:"wake_time"`
	SleepTime       string    `json:"sleep_time" yaml:"sleep_time"`
	BedTime         string    `json:"bed_time" yaml:"bed_time"`
	MorningMood     *int      `json:"morning_mood,omitempty" yaml:"morning_mood,omitempty"`
	MorningEnergy   *int      `json:"morning_energy,omitempty" yaml:"morning_energy,omitempty"`
	MorningPain     *int      `json:"morning_pain,omitempty" yaml:"morning_pain,omitempty"`
	SyncState       `yaml:",inline"`
}

// TherapySession is one "find your facts" reframing exercise.
type TherapySession struct {
	ID                     string    `json:"id" yaml:"id"`
	ThoughtText            string    `json:"thought_text" yaml:"thought_text"`
	BelievabilityBefore    int       `json:"believability_before" yaml:"believability_before"`
	EvidenceFor            string    `json:"evidence_for" yaml:"evidence_for"`
	EvidenceAgainst        string    `json:"evidence_against" yaml:"evidence_against"`
	AlternativePerspective string    `json:"alternative_perspective" yaml:"alternative_perspective"`
	ReframeSuggestion      string    `json:"reframe_suggestion" yaml:"reframe_suggestion"`
	BelievabilityAfter     *int      `json:"believability_after,omitempty" yaml:"believability_after,omitempty"`
	PatternDetected        string    `json:"pattern_detected" yaml:"pattern_detected"`
	RecordedAt             time.Time `json:"recorded_at" yaml:"recorded_at"`
	SyncState              `yaml:",inline"`
}

type MealEntry struct {
	ID          string    `json:"id" yaml:"id"`
	MealType    string    `json:"meal_type" yaml:"meal_type"`
	Description string    `json:"description" yaml:"description"`
	RecordedAt  time.Time `json:"recorded_at" yaml:"recorded_at"`
	PhotoURI    string    `json:"photo_uri" yaml:"photo_uri"`
	RecipeID    *string   `json:"recipe_id,omitempty" yaml:"recipe_id,omitempty"`
	SyncState   `yaml:",inline"`
}

type Recipe struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description" yaml:"description"`
	MealType     string    `json:"meal_type" yaml:"meal_type"`
	PrepTimeMin  *int      `json:"prep_time_min,omitempty" yaml:"prep_time_min,omitempty"`
	CookTimeMin  *int      `json:"cook_time_min,omitempty" yaml:"cook_time_min,omitempty"`
	Instructions string    `json:"instructions" yaml:"instructions"`
	IsFavorite   bool      `json:"is_favorite" yaml:"is_favorite"`
	LastSyncedAt time.Time `json:"last_synced_at" yaml:"last_synced_at"`
	RemoteID     string    `json:"remote_id" yaml:"remote_id"`
}

type Ingredient struct {
	ID       string `json:"id" yaml:"id"`
	RecipeID string `json:"recipe_id" yaml:"recipe_id"`
	Name     string `json:"name" yaml:"name"`
	Quantity string `json:"quantity" yaml:"quantity"`
	Unit     string `json:"unit" yaml:"unit"`
	RemoteID string `json:"remote_id" yaml:"remote_id"`
}

type MealPlan struct {
	ID        string    `json:"id" yaml:"id"`
	StartDate time.Time `json:"start_date" yaml:"start_date"`
	EndDate   time.Time `json:"end_date" yaml:"end_date"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	SyncState `yaml:",inline"`
}

type MealPlanItem struct {
	ID         string `json:"id" yaml:"id"`
	MealPlanID string `json:"meal_plan_id" yaml:"meal_plan_id"`
	RecipeID   string `json:"recipe_id" yaml:"recipe_id"`
	DayOfWeek  int    `json:"day_of_week" yaml:"day_of_week"`
	MealType   string `json:"meal_type" yaml:"meal_type"`
	SyncState  `yaml:",inline"`
}

type GroceryItem struct {
	ID             string   `json:"id" yaml:"id"`
	ItemName       string   `json:"item_name" yaml:"item_name"`
	Category       string   `json:"category" yaml:"category"`
	Quantity       string   `json:"quantity" yaml:"quantity"`
	Unit           string   `json:"unit" yaml:"unit"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty" yaml:"estimated_price,omitempty"`
	IsPurchased    bool     `json:"is_purchased" yaml:"is_purchased"`
	MealPlanID     *string  `json:"meal_plan_id,omitempty" yaml:"meal_plan_id,omitempty"`
	SyncState      `yaml:",inline"`
}

type Coupon struct {
	ID             string    `json:"id" yaml:"id"`
	ItemName       string    `json:"item_name" yaml:"item_name"`
	DiscountAmount float64   `json:"discount_amount" yaml:"discount_amount"`
	DiscountType   string    `json:"discount_type" yaml:"discount_type"`
	ExpirationDate time.Time `json:"expiration_date" yaml:"expiration_date"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	LastSyncedAt   time.Time `json:"last_synced_at" yaml:"last_synced_at"`
	RemoteID       string    `json:"remote_id" yaml:"remote_id"`
}

type SyncRun struct {
	ID          int64          `json:"id" yaml:"id"`
	Trigger     string         `json:"trigger" yaml:"trigger"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	TotalSynced int            `json:"total_synced" yaml:"total_synced"`
	TotalFailed int            `json:"total_failed" yaml:"total_failed"`
	Counts      map[string]int `json:"counts,omitempty" yaml:"counts,omitempty"`
	Error       string         `json:"error" yaml:"error"`
}
