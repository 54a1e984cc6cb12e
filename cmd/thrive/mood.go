package thrive

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Track mood, energy and pain levels",
}

var (
	moodLevel     int
	moodEnergy    int
	moodPain      int
	moodTimeOfDay string
	moodNotes     string
	moodDate      string
	moodTime      string
)

func moodInputFromFlags() (service.MoodInput, error) {
	recordedAt, err := parseDateTimeOrNow(moodDate, moodTime)
	if err != nil {
		return service.MoodInput{}, err
	}
	return service.MoodInput{
		MoodLevel:   moodLevel,
		EnergyLevel: moodEnergy,
		PainLevel:   moodPain,
		RecordedAt:  recordedAt,
		TimeOfDay:   moodTimeOfDay,
		Notes:       moodNotes,
	}, nil
}

var moodAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a mood entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := moodInputFromFlags()
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateMoodEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded mood entry %s\n", id)
			return nil
		})
	},
}

var (
	moodFrom     string
	moodTo       string
	moodUnsynced bool
	moodLimit    int
)

var moodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mood entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.MoodFilter{FromDate: moodFrom, ToDate: moodTo, TimeOfDay: moodTimeOfDay, Unsynced: moodUnsynced, Limit: moodLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListMoodEntries(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tRECORDED\tMOOD\tENERGY\tPAIN\tTIME_OF_DAY\tSYNCED\tNOTES")
			for _, m := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
					m.ID, localStamp(m.RecordedAt), m.MoodLevel, m.EnergyLevel, m.PainLevel, m.TimeOfDay, syncMark(m.Synced), m.Notes)
			}
			return nil
		})
	},
}

var moodShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a mood entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			m, err := service.GetMoodEntry(sqldb, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\n", m.ID)
			fmt.Fprintf(out, "Recorded: %s\n", localStamp(m.RecordedAt))
			fmt.Fprintf(out, "Mood: %d\nEnergy: %d\nPain: %d\n", m.MoodLevel, m.EnergyLevel, m.PainLevel)
			if m.TimeOfDay != "" {
				fmt.Fprintf(out, "Time of day: %s\n", m.TimeOfDay)
			}
			if m.Notes != "" {
				fmt.Fprintf(out, "Notes: %s\n", m.Notes)
			}
			fmt.Fprintf(out, "Synced: %s\n", syncMark(m.Synced))
			return nil
		})
	},
}

var moodUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a mood entry; it is pushed again on the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetMoodEntry(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.MoodInputFrom(existing)
			f := cmd.Flags()
			if f.Changed("mood") {
				in.MoodLevel = moodLevel
			}
			if f.Changed("energy") {
				in.EnergyLevel = moodEnergy
			}
			if f.Changed("pain") {
				in.PainLevel = moodPain
			}
			if f.Changed("time-of-day") {
				in.TimeOfDay = moodTimeOfDay
			}
			if f.Changed("notes") {
				in.Notes = moodNotes
			}
			if in.RecordedAt, err = overlayDateTime(cmd, in.RecordedAt, moodDate, moodTime); err != nil {
				return err
			}
			if err := service.UpdateMoodEntry(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated mood entry %s\n", args[0])
			return nil
		})
	},
}

var moodDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a mood entry locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteMoodEntry(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted mood entry %s\n", args[0])
			return nil
		})
	},
}

func addMoodFlags(c *cobra.Command) {
	c.Flags().IntVar(&moodLevel, "mood", 0, "Mood level 1-10")
	c.Flags().IntVar(&moodEnergy, "energy", 0, "Energy level 1-10")
	c.Flags().IntVar(&moodPain, "pain", 0, "Pain level 1-10")
	c.Flags().StringVar(&moodTimeOfDay, "time-of-day", "", "morning|afternoon|evening|night")
	c.Flags().StringVar(&moodNotes, "notes", "", "Free-form notes")
	c.Flags().StringVar(&moodDate, "date", "", "Date YYYY-MM-DD (default now)")
	c.Flags().StringVar(&moodTime, "time", "", "Time HH:MM")
}

func init() {
	rootCmd.AddCommand(moodCmd)
	moodCmd.AddCommand(moodAddCmd, moodListCmd, moodShowCmd, moodUpdateCmd, moodDeleteCmd)

	addMoodFlags(moodAddCmd)
	addMoodFlags(moodUpdateCmd)
	_ = moodAddCmd.MarkFlagRequired("mood")
	_ = moodAddCmd.MarkFlagRequired("energy")
	_ = moodAddCmd.MarkFlagRequired("pain")
	moodListCmd.Flags().StringVar(&moodFrom, "from", "", "From date YYYY-MM-DD")
	moodListCmd.Flags().StringVar(&moodTo, "to", "", "To date YYYY-MM-DD")
	moodListCmd.Flags().StringVar(&moodTimeOfDay, "time-of-day", "", "Filter by time of day")
	moodListCmd.Flags().BoolVar(&moodUnsynced, "unsynced", false, "Only entries waiting to sync")
	moodListCmd.Flags().IntVar(&moodLimit, "limit", 50, "Max rows")
}
