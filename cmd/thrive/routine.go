package thrive

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var routineCmd = &cobra.Command{
	Use:   "routine",
	Short: "Log the daily routine check-in and journal",
}

var (
	routineDate          string
	routineMood          int
	routineEnergy        int
	routinePain          int
	routineSleepQuality  int
	routineExercise      int
	routineHydration     int
	routineMeals         int
	routineJournal       string
	routineWake          string
	routineSleep         string
	routineBed           string
	routineMorningMood   int
	routineMorningEnergy int
	routineMorningPain   int
)

var routineAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a daily routine",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDayOrToday("--date", routineDate)
		if err != nil {
			return err
		}
		in := service.RoutineInput{
			RoutineDate:     day,
			MoodLevel:       routineMood,
			EnergyLevel:     routineEnergy,
			PainLevel:       routinePain,
			SleepQuality:    optionalInt(cmd, "sleep-quality", routineSleepQuality),
			ExerciseMinutes: optionalInt(cmd, "exercise", routineExercise),
			HydrationOunces: optionalInt(cmd, "hydration", routineHydration),
			MealsEaten:      optionalInt(cmd, "meals", routineMeals),
			JournalEntry:    routineJournal,
			WakeTime:        routineWake,
			SleepTime:       routineSleep,
			BedTime:         routineBed,
			MorningMood:     optionalInt(cmd, "morning-mood", routineMorningMood),
			MorningEnergy:   optionalInt(cmd, "morning-energy", routineMorningEnergy),
			MorningPain:     optionalInt(cmd, "morning-pain", routineMorningPain),
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateDailyRoutine(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded daily routine %s\n", id)
			return nil
		})
	},
}

var (
	routineFrom     string
	routineTo       string
	routineUnsynced bool
	routineLimit    int
)

var routineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List daily routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.RoutineFilter{FromDate: routineFrom, ToDate: routineTo, Unsynced: routineUnsynced, Limit: routineLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListDailyRoutines(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tMOOD\tENERGY\tPAIN\tSLEEP\tEXERCISE\tSYNCED\tJOURNAL")
			for _, r := range items {
				journal := strings.ReplaceAll(r.JournalEntry, "\n", " ")
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
					r.ID, localDay(r.RoutineDate), r.MoodLevel, r.EnergyLevel, r.PainLevel,
					formatOptionalInt(r.SleepQuality), formatOptionalInt(r.ExerciseMinutes), syncMark(r.Synced), journal)
			}
			return nil
		})
	},
}

var routineJournalCmd = &cobra.Command{
	Use:   "journal <text>",
	Short: "Append to the journal of a day's routine",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDayOrToday("--date", routineDate)
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.AppendJournal(sqldb, day, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Journal saved to routine %s\n", id)
			return nil
		})
	},
}

var routineUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a daily routine; it is pushed again on the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetDailyRoutine(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.RoutineInputFrom(existing)
			f := cmd.Flags()
			if f.Changed("date") {
				if in.RoutineDate, err = parseDay("--date", routineDate); err != nil {
					return err
				}
			}
			levels := []struct {
				flag string
				dst  *int
				val  int
			}{
				{"mood", &in.MoodLevel, routineMood},
				{"energy", &in.EnergyLevel, routineEnergy},
				{"pain", &in.PainLevel, routinePain},
			}
			for _, l := range levels {
				if f.Changed(l.flag) {
					*l.dst = l.val
				}
			}
			optional := []struct {
				flag string
				dst  **int
				val  int
			}{
				{"sleep-quality", &in.SleepQuality, routineSleepQuality},
				{"exercise", &in.ExerciseMinutes, routineExercise},
				{"hydration", &in.HydrationOunces, routineHydration},
				{"meals", &in.MealsEaten, routineMeals},
				{"morning-mood", &in.MorningMood, routineMorningMood},
				{"morning-energy", &in.MorningEnergy, routineMorningEnergy},
				{"morning-pain", &in.MorningPain, routineMorningPain},
			}
			for _, o := range optional {
				if v := optionalInt(cmd, o.flag, o.val); v != nil {
					*o.dst = v
				}
			}
			texts := []struct {
				flag string
				dst  *string
				val  string
			}{
				{"journal", &in.JournalEntry, routineJournal},
				{"wake", &in.WakeTime, routineWake},
				{"sleep", &in.SleepTime, routineSleep},
				{"bed", &in.BedTime, routineBed},
			}
			for _, t := range texts {
				if f.Changed(t.flag) {
					*t.dst = t.val
				}
			}
			if err := service.UpdateDailyRoutine(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated daily routine %s\n", args[0])
			return nil
		})
	},
}

var routineDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a daily routine locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteDailyRoutine(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted daily routine %s\n", args[0])
			return nil
		})
	},
}

func addRoutineFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&routineDate, "date", "", "Routine date YYYY-MM-DD (default today)")
	f.IntVar(&routineMood, "mood", 0, "Mood level 1-10")
	f.IntVar(&routineEnergy, "energy", 0, "Energy level 1-10")
	f.IntVar(&routinePain, "pain", 0, "Pain level 1-10")
	f.IntVar(&routineSleepQuality, "sleep-quality", 0, "Sleep quality 1-10")
	f.IntVar(&routineExercise, "exercise", 0, "Exercise minutes")
	f.IntVar(&routineHydration, "hydration", 0, "Hydration ounces")
	f.IntVar(&routineMeals, "meals", 0, "Meals eaten")
	f.StringVar(&routineJournal, "journal", "", "Journal entry")
	f.StringVar(&routineWake, "wake", "", "Wake time HH:MM")
	f.StringVar(&routineSleep, "sleep", "", "Sleep time HH:MM")
	f.StringVar(&routineBed, "bed", "", "Bed time HH:MM")
	f.IntVar(&routineMorningMood, "morning-mood", 0, "Morning mood 1-10")
	f.IntVar(&routineMorningEnergy, "morning-energy", 0, "Morning energy 1-10")
	f.IntVar(&routineMorningPain, "morning-pain", 0, "Morning pain 1-10")
}

func init() {
	rootCmd.AddCommand(routineCmd)
	routineCmd.AddCommand(routineAddCmd, routineListCmd, routineJournalCmd, routineUpdateCmd, routineDeleteCmd)

	addRoutineFlags(routineAddCmd)
	addRoutineFlags(routineUpdateCmd)
	_ = routineAddCmd.MarkFlagRequired("mood")
	_ = routineAddCmd.MarkFlagRequired("energy")
	_ = routineAddCmd.MarkFlagRequired("pain")

	routineListCmd.Flags().StringVar(&routineFrom, "from", "", "From date YYYY-MM-DD")
	routineListCmd.Flags().StringVar(&routineTo, "to", "", "To date YYYY-MM-DD")
	routineListCmd.Flags().BoolVar(&routineUnsynced, "unsynced", false, "Only routines waiting to sync")
	routineListCmd.Flags().IntVar(&routineLimit, "limit", 50, "Max rows")

	routineJournalCmd.Flags().StringVar(&routineDate, "date", "", "Routine date YYYY-MM-DD (default today)")
}
