package syncer

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/service"
)

// Entity binds a local push table to its remote resource. Payload loads one
// row and renders the remote field map.
type Entity struct {
	Table    service.Table
	Resource string
	Payload  func(db *sql.DB, id string) (map[string]any, error)
}

func (e Entity) Name() string {
	return string(e.Table)
}

// DefaultEntities lists every push table in dependency order: meal plans go
// before their items so items usually find their parent's remote id.
func DefaultEntities() []Entity {
	return []Entity{
		{Table: service.TableMoodEntries, Resource: "Mood_Entry__c", Payload: moodPayload},
		{Table: service.TableWinEntries, Resource: "Win_Entry__c", Payload: winPayload},
		{Table: service.TableJobPostings, Resource: "Job_Posting__c", Payload: jobPayload},
		{Table: service.TableDailyRoutines, Resource: "Daily_Routine__c", Payload: routinePayload},
		{Table: service.TableTherapySessions, Resource: "Imposter_Syndrome_Session__c", Payload: therapyPayload},
		{Table: service.TableMealEntries, Resource: "Meal_Entry__c", Payload: mealPayload},
		{Table: service.TableMealPlans, Resource: "Meal_Plan__c", Payload: mealPlanPayload},
		{Table: service.TableMealPlanItems, Resource: "Meal_Plan_Item__c", Payload: mealPlanItemPayload},
		{Table: service.TableGroceryItems, Resource: "Grocery_Item__c", Payload: groceryPayload},
	}
}

// EntityFor finds a registered entity by table name.
func EntityFor(entities []Entity, name string) (Entity, error) {
	for _, e := range entities {
		if e.Name() == name {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("unknown sync entity %q", name)
}

type payload map[string]any

func (p payload) text(key, value string) {
	if value != "" {
		p[key] = value
	}
}

func (p payload) intPtr(key string, value *int) {
	if value != nil {
		p[key] = *value
	}
}

func (p payload) floatPtr(key string, value *float64) {
	if value != nil {
		p[key] = *value
	}
}

func moodPayload(db *sql.DB, id string) (map[string]any, error) {
	m, err := service.GetMoodEntry(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Mood_Level__c":   m.MoodLevel,
		"Energy_Level__c": m.EnergyLevel,
		"Pain_Level__c":   m.PainLevel,
		"Entry_Date__c":   crm.FormatDateTime(m.RecordedAt),
		"External_Id__c":  m.ID,
	}
	p.text("Notes__c", m.Notes)
	p.text("Time_Of_Day__c", m.TimeOfDay)
	return p, nil
}

func winPayload(db *sql.DB, id string) (map[string]any, error) {
	w, err := service.GetWinEntry(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Description__c": w.Description,
		"Win_Date__c":    crm.FormatDateTime(w.RecordedAt),
		"External_Id__c": w.ID,
	}
	p.text("Category__c", w.Category)
	return p, nil
}

func jobPayload(db *sql.DB, id string) (map[string]any, error) {
	j, err := service.GetJobPosting(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Job_Title__c":    j.JobTitle,
		"Company_Name__c": j.CompanyName,
		"URL__c":          j.URL,
		"Date_Posted__c":  crm.FormatDateTime(j.DatePosted),
		"External_Id__c":  j.ID,
	}
	p.floatPtr("Salary_Min__c", j.SalaryMin)
	p.floatPtr("Salary_Max__c", j.SalaryMax)
	p.text("Remote_Policy__c", j.RemotePolicy)
	p.text("Description__c", j.Description)
	p.floatPtr("Fit_Score__c", j.FitScore)
	p.floatPtr("ND_Friendliness_Score__c", j.NDFriendlinessScore)
	p.text("Green_Flags__c", j.GreenFlags)
	p.text("Red_Flags__c", j.RedFlags)
	return p, nil
}

func routinePayload(db *sql.DB, id string) (map[string]any, error) {
	r, err := service.GetDailyRoutine(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Routine_Date__c": crm.FormatDate(r.RoutineDate),
		"Mood_Level__c":   r.MoodLevel,
		"Energy_Level__c": r.EnergyLevel,
		"Pain_Level__c":   r.PainLevel,
		"External_Id__c":  r.ID,
	}
	p.intPtr("Sleep_Quality__c", r.SleepQuality)
	p.intPtr("Exercise_Minutes__c", r.ExerciseMinutes)
	p.intPtr("Hydration_Ounces__c", r.HydrationOunces)
	p.intPtr("Meals_Eaten__c", r.MealsEaten)
	p.text("Journal_Entry__c", r.JournalEntry)
	p.text("Wake_Time__c", r.WakeTime)
	p.text("Sleep_Time__c", r.SleepTime)
	p.text("Bed_Time__c", r.BedTime)
	p.intPtr("Morning_Mood__c", r.MorningMood)
	p.intPtr("Morning_Energy__c", r.MorningEnergy)
	p.intPtr("Morning_Pain__c", r.MorningPain)
	return p, nil
}

func therapyPayload(db *sql.DB, id string) (map[string]any, error) {
	s, err := service.GetTherapySession(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Thought_Text__c":         s.ThoughtText,
		"Believability_Before__c": s.BelievabilityBefore,
		"Timestamp__c":            crm.FormatDateTime(s.RecordedAt),
	}
	p.text("Evidence_For__c", s.EvidenceFor)
	p.text("Evidence_Against__c", s.EvidenceAgainst)
	p.text("Alternative_Perspective__c", s.AlternativePerspective)
	p.text("Reframe_Suggestion__c", s.ReframeSuggestion)
	p.intPtr("Believability_After__c", s.BelievabilityAfter)
	p.text("Pattern_Detected__c", s.PatternDetected)
	return p, nil
}

func mealPayload(db *sql.DB, id string) (map[string]any, error) {
	m, err := service.GetMealEntry(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Meal_Type__c":   m.MealType,
		"Entry_Date__c":  crm.FormatDateTime(m.RecordedAt),
		"External_Id__c": m.ID,
	}
	p.text("Description__c", m.Description)
	if m.RecipeID != nil {
		if err := recipeRef(db, p, *m.RecipeID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func mealPlanPayload(db *sql.DB, id string) (map[string]any, error) {
	detail, err := service.GetMealPlan(db, id)
	if err != nil {
		return nil, err
	}
	return payload{
		"Start_Date__c":  crm.FormatDate(detail.Plan.StartDate),
		"End_Date__c":    crm.FormatDate(detail.Plan.EndDate),
		"External_Id__c": detail.Plan.ID,
	}, nil
}

func mealPlanItemPayload(db *sql.DB, id string) (map[string]any, error) {
	item, err := service.GetMealPlanItem(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Day_of_Week__c": item.DayOfWeek,
		"Meal_Type__c":   item.MealType,
		"External_Id__c": item.ID,
	}
	if err := planRef(db, p, item.MealPlanID); err != nil {
		return nil, err
	}
	if err := recipeRef(db, p, item.RecipeID); err != nil {
		return nil, err
	}
	return p, nil
}

func groceryPayload(db *sql.DB, id string) (map[string]any, error) {
	g, err := service.GetGroceryItem(db, id)
	if err != nil {
		return nil, err
	}
	p := payload{
		"Item_Name__c":    g.ItemName,
		"Category__c":     g.Category,
		"Quantity__c":     g.Quantity,
		"Is_Purchased__c": g.IsPurchased,
		"External_Id__c":  g.ID,
	}
	p.text("Unit__c", g.Unit)
	p.floatPtr("Estimated_Price__c", g.EstimatedPrice)
	if g.MealPlanID != nil {
		if err := planRef(db, p, *g.MealPlanID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Recipes are pulled, so a local recipe always knows its remote id.
func recipeRef(db *sql.DB, p payload, recipeID string) error {
	r, err := service.GetRecipe(db, recipeID)
	if err != nil {
		return err
	}
	p["Meal__c"] = r.RemoteID
	return nil
}

// planRef links a child to its meal plan when the plan has been pushed. A
// plan without a remote id is left out rather than checked.
func planRef(db *sql.DB, p payload, planID string) error {
	remoteID, ok, err := service.RemoteIDFor(db, service.TableMealPlans, planID)
	if err != nil {
		return err
	}
	if ok {
		p["Meal_Plan__c"] = remoteID
	}
	return nil
}
