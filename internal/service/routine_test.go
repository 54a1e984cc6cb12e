package service_test

import (
	"testing"
	"time"

	"github.com/neurothrive/thrive/internal/service"
)

func TestDailyRoutineRoundTripWithMorningFields(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	day := time.Date(2026, 5, 1, 14, 0, 0, 0, time.Local)
	id, err := service.CreateDailyRoutine(db, service.RoutineInput{
		RoutineDate:     day,
		MoodLevel:       6,
		EnergyLevel:     5,
		PainLevel:       3,
		SleepQuality:    intp(7),
		HydrationOunces: intp(64),
		WakeTime:        "06:45",
		BedTime:         "22:30",
		MorningMood:     intp(4),
	})
	if err != nil {
		t.Fatalf("create routine: %v", err)
	}
	r, err := service.GetDailyRoutine(db, id)
	if err != nil {
		t.Fatalf("get routine: %v", err)
	}
	want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	if !r.RoutineDate.Equal(want) {
		t.Fatalf("expected routine date truncated to %s, got %s", want, r.RoutineDate)
	}
	if r.SleepQuality == nil || *r.SleepQuality != 7 || r.HydrationOunces == nil || *r.HydrationOunces != 64 {
		t.Fatalf("unexpected optional fields: %+v", r)
	}
	if r.ExerciseMinutes != nil || r.MorningEnergy != nil {
		t.Fatalf("expected unset optional fields to stay nil: %+v", r)
	}
	if r.WakeTime != "06:45" || r.BedTime != "22:30" || r.SleepTime != "" {
		t.Fatalf("unexpected clock fields: %+v", r)
	}

	if _, err := service.CreateDailyRoutine(db, service.RoutineInput{MoodLevel: 5, EnergyLevel: 5, PainLevel: 5, WakeTime: "25:00"}); err == nil {
		t.Fatalf("expected invalid wake time to be rejected")
	}
}

func TestAppendJournalCreatesThenExtendsTodaysRoutine(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.Local)
	first, err := service.AppendJournal(db, now, "walked the dog")
	if err != nil {
		t.Fatalf("first journal: %v", err)
	}
	if err := service.MarkSynced(db, service.TableDailyRoutines, first, "a0D1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	second, err := service.AppendJournal(db, now.Add(8*time.Hour), "finished the report")
	if err != nil {
		t.Fatalf("second journal: %v", err)
	}
	if first != second {
		t.Fatalf("expected same routine to be extended, got %s and %s", first, second)
	}
	r, err := service.GetDailyRoutine(db, first)
	if err != nil {
		t.Fatalf("get routine: %v", err)
	}
	if r.JournalEntry != "walked the dog\n\nfinished the report" {
		t.Fatalf("unexpected journal: %q", r.JournalEntry)
	}
	if r.MoodLevel != 5 || r.Synced {
		t.Fatalf("expected neutral levels and a requeued row: %+v", r)
	}
}
