package thrive

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var therapyCmd = &cobra.Command{
	Use:   "therapy",
	Short: "Work through imposter-syndrome thoughts with the find-your-facts method",
}

var (
	therapyThought     string
	therapyBefore      int
	therapyFor         string
	therapyAgainst     string
	therapyAlternative string
	therapyReframe     string
	therapyAfter       int
	therapyPattern     string
	therapyDate        string
	therapyTime        string
)

var therapyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a therapy session",
	RunE: func(cmd *cobra.Command, args []string) error {
		recordedAt, err := parseDateTimeOrNow(therapyDate, therapyTime)
		if err != nil {
			return err
		}
		in := service.TherapyInput{
			ThoughtText:            therapyThought,
			BelievabilityBefore:    therapyBefore,
			EvidenceFor:            therapyFor,
			EvidenceAgainst:        therapyAgainst,
			AlternativePerspective: therapyAlternative,
			ReframeSuggestion:      therapyReframe,
			BelievabilityAfter:     optionalInt(cmd, "after", therapyAfter),
			PatternDetected:        therapyPattern,
			RecordedAt:             recordedAt,
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateTherapySession(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded therapy session %s\n", id)
			return nil
		})
	},
}

var (
	therapyFrom     string
	therapyTo       string
	therapyUnsynced bool
	therapyLimit    int
)

var therapyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List therapy sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.TherapyFilter{FromDate: therapyFrom, ToDate: therapyTo, Pattern: therapyPattern, Unsynced: therapyUnsynced, Limit: therapyLimit}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListTherapySessions(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tRECORDED\tBEFORE\tAFTER\tPATTERN\tSYNCED\tTHOUGHT")
			for _, s := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					s.ID, localStamp(s.RecordedAt), s.BelievabilityBefore, formatOptionalInt(s.BelievabilityAfter),
					s.PatternDetected, syncMark(s.Synced), strings.ReplaceAll(s.ThoughtText, "\n", " "))
			}
			return nil
		})
	},
}

var therapyCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Record the reframe and how believable the thought is now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.CompleteTherapySession(sqldb, args[0], therapyReframe, therapyAfter); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed therapy session %s\n", args[0])
			return nil
		})
	},
}

var therapyUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a therapy session; it is pushed again on the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetTherapySession(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.TherapyInputFrom(existing)
			f := cmd.Flags()
			texts := []struct {
				flag string
				dst  *string
				val  string
			}{
				{"thought", &in.ThoughtText, therapyThought},
				{"evidence-for", &in.EvidenceFor, therapyFor},
				{"evidence-against", &in.EvidenceAgainst, therapyAgainst},
				{"alternative", &in.AlternativePerspective, therapyAlternative},
				{"reframe", &in.ReframeSuggestion, therapyReframe},
				{"pattern", &in.PatternDetected, therapyPattern},
			}
			for _, t := range texts {
				if f.Changed(t.flag) {
					*t.dst = t.val
				}
			}
			if f.Changed("before") {
				in.BelievabilityBefore = therapyBefore
			}
			if v := optionalInt(cmd, "after", therapyAfter); v != nil {
				in.BelievabilityAfter = v
			}
			if in.RecordedAt, err = overlayDateTime(cmd, in.RecordedAt, therapyDate, therapyTime); err != nil {
				return err
			}
			if err := service.UpdateTherapySession(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated therapy session %s\n", args[0])
			return nil
		})
	},
}

var therapyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a therapy session locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteTherapySession(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted therapy session %s\n", args[0])
			return nil
		})
	},
}

func addTherapyFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&therapyThought, "thought", "", "The thought being examined")
	f.IntVar(&therapyBefore, "before", 0, "Believability before, 1-10")
	f.StringVar(&therapyFor, "evidence-for", "", "Evidence supporting the thought")
	f.StringVar(&therapyAgainst, "evidence-against", "", "Evidence against the thought")
	f.StringVar(&therapyAlternative, "alternative", "", "Alternative perspective")
	f.StringVar(&therapyReframe, "reframe", "", "Reframed thought")
	f.IntVar(&therapyAfter, "after", 0, "Believability after, 1-10")
	f.StringVar(&therapyPattern, "pattern", "", "Thought pattern detected")
	f.StringVar(&therapyDate, "date", "", "Date YYYY-MM-DD (default now)")
	f.StringVar(&therapyTime, "time", "", "Time HH:MM")
}

func init() {
	rootCmd.AddCommand(therapyCmd)
	therapyCmd.AddCommand(therapyAddCmd, therapyListCmd, therapyCompleteCmd, therapyUpdateCmd, therapyDeleteCmd)

	addTherapyFlags(therapyAddCmd)
	addTherapyFlags(therapyUpdateCmd)
	_ = therapyAddCmd.MarkFlagRequired("thought")
	_ = therapyAddCmd.MarkFlagRequired("before")

	therapyListCmd.Flags().StringVar(&therapyFrom, "from", "", "From date YYYY-MM-DD")
	therapyListCmd.Flags().StringVar(&therapyTo, "to", "", "To date YYYY-MM-DD")
	therapyListCmd.Flags().StringVar(&therapyPattern, "pattern", "", "Filter by pattern")
	therapyListCmd.Flags().BoolVar(&therapyUnsynced, "unsynced", false, "Only sessions waiting to sync")
	therapyListCmd.Flags().IntVar(&therapyLimit, "limit", 50, "Max rows")

	therapyCompleteCmd.Flags().StringVar(&therapyReframe, "reframe", "", "Reframed thought")
	therapyCompleteCmd.Flags().IntVar(&therapyAfter, "after", 0, "Believability after, 1-10")
	_ = therapyCompleteCmd.MarkFlagRequired("after")
}
