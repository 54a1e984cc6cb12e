package thrive

import (
	"database/sql"
	"fmt"

	"github.com/neurothrive/thrive/internal/service"
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Track job postings you are considering",
}

var (
	jobTitle        string
	jobCompany      string
	jobURL          string
	jobSalaryMin    float64
	jobSalaryMax    float64
	jobRemote       string
	jobDescription  string
	jobFitScore     float64
	jobNDScore      float64
	jobGreenFlags   string
	jobRedFlags     string
	jobPostedDate   string
	jobListMinFit   float64
	jobListUnsynced bool
	jobListLimit    int
)

var jobAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a job posting",
	RunE: func(cmd *cobra.Command, args []string) error {
		posted, err := parseDayOrToday("--posted", jobPostedDate)
		if err != nil {
			return err
		}
		in := service.JobInput{
			JobTitle:            jobTitle,
			CompanyName:         jobCompany,
			URL:                 jobURL,
			SalaryMin:           optionalFloat(cmd, "salary-min", jobSalaryMin),
			SalaryMax:           optionalFloat(cmd, "salary-max", jobSalaryMax),
			RemotePolicy:        jobRemote,
			Description:         jobDescription,
			FitScore:            optionalFloat(cmd, "fit", jobFitScore),
			NDFriendlinessScore: optionalFloat(cmd, "nd-score", jobNDScore),
			GreenFlags:          jobGreenFlags,
			RedFlags:            jobRedFlags,
			DatePosted:          posted,
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateJobPosting(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved job posting %s\n", id)
			return nil
		})
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.JobFilter{
			Company:     jobCompany,
			MinFitScore: optionalFloat(cmd, "min-fit", jobListMinFit),
			Unsynced:    jobListUnsynced,
			Limit:       jobListLimit,
		}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListJobPostings(sqldb, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tPOSTED\tTITLE\tCOMPANY\tREMOTE\tFIT\tND\tSYNCED")
			for _, j := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					j.ID, localDay(j.DatePosted), j.JobTitle, j.CompanyName, j.RemotePolicy,
					formatOptionalFloat(j.FitScore), formatOptionalFloat(j.NDFriendlinessScore), syncMark(j.Synced))
			}
			return nil
		})
	},
}

var jobUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a job posting; it is pushed again on the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			existing, err := service.GetJobPosting(sqldb, args[0])
			if err != nil {
				return err
			}
			in := service.JobInputFrom(existing)
			f := cmd.Flags()
			texts := []struct {
				flag string
				dst  *string
				val  string
			}{
				{"title", &in.JobTitle, jobTitle},
				{"company", &in.CompanyName, jobCompany},
				{"url", &in.URL, jobURL},
				{"remote", &in.RemotePolicy, jobRemote},
				{"description", &in.Description, jobDescription},
				{"green-flags", &in.GreenFlags, jobGreenFlags},
				{"red-flags", &in.RedFlags, jobRedFlags},
			}
			for _, t := range texts {
				if f.Changed(t.flag) {
					*t.dst = t.val
				}
			}
			if v := optionalFloat(cmd, "salary-min", jobSalaryMin); v != nil {
				in.SalaryMin = v
			}
			if v := optionalFloat(cmd, "salary-max", jobSalaryMax); v != nil {
				in.SalaryMax = v
			}
			if v := optionalFloat(cmd, "fit", jobFitScore); v != nil {
				in.FitScore = v
			}
			if v := optionalFloat(cmd, "nd-score", jobNDScore); v != nil {
				in.NDFriendlinessScore = v
			}
			if f.Changed("posted") {
				if in.DatePosted, err = parseDay("--posted", jobPostedDate); err != nil {
					return err
				}
			}
			if err := service.UpdateJobPosting(sqldb, args[0], in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated job posting %s\n", args[0])
			return nil
		})
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a job posting locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteJobPosting(sqldb, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job posting %s\n", args[0])
			return nil
		})
	},
}

func addJobFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&jobTitle, "title", "", "Job title")
	f.StringVar(&jobCompany, "company", "", "Company name")
	f.StringVar(&jobURL, "url", "", "Posting URL")
	f.Float64Var(&jobSalaryMin, "salary-min", 0, "Minimum salary")
	f.Float64Var(&jobSalaryMax, "salary-max", 0, "Maximum salary")
	f.StringVar(&jobRemote, "remote", "", "Remote policy: remote|hybrid|on-site")
	f.StringVar(&jobDescription, "description", "", "Description")
	f.Float64Var(&jobFitScore, "fit", 0, "Fit score 0-10")
	f.Float64Var(&jobNDScore, "nd-score", 0, "Neurodivergent-friendliness score 0-10")
	f.StringVar(&jobGreenFlags, "green-flags", "", "Green flags")
	f.StringVar(&jobRedFlags, "red-flags", "", "Red flags")
	f.StringVar(&jobPostedDate, "posted", "", "Date posted YYYY-MM-DD (default today)")
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobAddCmd, jobListCmd, jobUpdateCmd, jobDeleteCmd)

	addJobFlags(jobAddCmd)
	addJobFlags(jobUpdateCmd)
	_ = jobAddCmd.MarkFlagRequired("title")
	_ = jobAddCmd.MarkFlagRequired("company")
	_ = jobAddCmd.MarkFlagRequired("url")

	jobListCmd.Flags().StringVar(&jobCompany, "company", "", "Filter by company")
	jobListCmd.Flags().Float64Var(&jobListMinFit, "min-fit", 0, "Minimum fit score")
	jobListCmd.Flags().BoolVar(&jobListUnsynced, "unsynced", false, "Only postings waiting to sync")
	jobListCmd.Flags().IntVar(&jobListLimit, "limit", 50, "Max rows")
}
