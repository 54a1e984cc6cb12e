package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

var validRemotePolicies = map[string]bool{
	"":        true,
	"remote":  true,
	"hybrid":  true,
	"on-site": true,
}

type JobInput struct {
	JobTitle            string
	CompanyName         string
	URL                 string
	SalaryMin           *float64
	SalaryMax           *float64
	RemotePolicy        string
	Description         string
	FitScore            *float64
	NDFriendlinessScore *float64
	GreenFlags          string
	RedFlags            string
	DatePosted          time.Time
}

type JobFilter struct {
	Company     string
	MinFitScore *float64
	Unsynced    bool
	Limit       int
}

const jobColumns = `id, job_title, company_name, url, salary_min, salary_max, IFNULL(remote_policy, ''), IFNULL(description, ''),
fit_score, nd_friendliness_score, IFNULL(green_flags, ''), IFNULL(red_flags, ''), date_posted, synced, remote_id`

func JobInputFrom(j model.JobPosting) JobInput {
	return JobInput{
		JobTitle:            j.JobTitle,
		CompanyName:         j.CompanyName,
		URL:                 j.URL,
		SalaryMin:           j.SalaryMin,
		SalaryMax:           j.SalaryMax,
		RemotePolicy:        j.RemotePolicy,
		Description:         j.Description,
		FitScore:            j.FitScore,
		NDFriendlinessScore: j.NDFriendlinessScore,
		GreenFlags:          j.GreenFlags,
		RedFlags:            j.RedFlags,
		DatePosted:          j.DatePosted,
	}
}

func validateJobInput(in *JobInput) error {
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.URL = strings.TrimSpace(in.URL)
	if in.JobTitle == "" {
		return fmt.Errorf("job title is required")
	}
	if in.CompanyName == "" {
		return fmt.Errorf("company name is required")
	}
	if in.URL == "" {
		return fmt.Errorf("job url is required")
	}
	if err := validateNonNegativeFloat("salary min", in.SalaryMin); err != nil {
		return err
	}
	if err := validateNonNegativeFloat("salary max", in.SalaryMax); err != nil {
		return err
	}
	if in.SalaryMin != nil && in.SalaryMax != nil && *in.SalaryMax < *in.SalaryMin {
		return fmt.Errorf("salary max must be >= salary min")
	}
	if err := validateScore("fit score", in.FitScore); err != nil {
		return err
	}
	if err := validateScore("nd friendliness score", in.NDFriendlinessScore); err != nil {
		return err
	}
	in.RemotePolicy = normalizeName(in.RemotePolicy)
	if !validRemotePolicies[in.RemotePolicy] {
		return fmt.Errorf("remote policy must be one of remote, hybrid, on-site")
	}
	return nil
}

func validateScore(name string, score *float64) error {
	if score != nil && (*score < 0 || *score > 10) {
		return fmt.Errorf("%s must be between 0 and 10", name)
	}
	return nil
}

func CreateJobPosting(db *sql.DB, in JobInput) (string, error) {
	if err := validateJobInput(&in); err != nil {
		return "", err
	}
	id := newID()
	_, err := db.Exec(`
INSERT INTO job_postings(id, job_title, company_name, url, salary_min, salary_max, remote_policy, description,
  fit_score, nd_friendliness_score, green_flags, red_flags, date_posted)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, in.JobTitle, in.CompanyName, in.URL, nullableFloat(in.SalaryMin), nullableFloat(in.SalaryMax),
		nullableString(in.RemotePolicy), nullableString(in.Description), nullableFloat(in.FitScore),
		nullableFloat(in.NDFriendlinessScore), nullableString(in.GreenFlags), nullableString(in.RedFlags),
		formatTime(nowOr(in.DatePosted)))
	if err != nil {
		return "", fmt.Errorf("insert job posting: %w", err)
	}
	return id, nil
}

func GetJobPosting(db *sql.DB, id string) (model.JobPosting, error) {
	j, err := scanJob(db.QueryRow(`SELECT `+jobColumns+` FROM job_postings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.JobPosting{}, fmt.Errorf("job posting %q: %w", id, ErrNotFound)
	}
	return j, err
}

// ListJobPostings orders by fit score when a minimum is requested, otherwise
// by posting date.
func ListJobPostings(db *sql.DB, f JobFilter) ([]model.JobPosting, error) {
	query := `SELECT ` + jobColumns + ` FROM job_postings WHERE 1=1`
	args := make([]any, 0)
	if strings.TrimSpace(f.Company) != "" {
		query += ` AND LOWER(company_name) = ?`
		args = append(args, normalizeName(f.Company))
	}
	if f.MinFitScore != nil {
		query += ` AND fit_score >= ?`
		args = append(args, *f.MinFitScore)
	}
	query += unsyncedClause("", f.Unsynced)
	if f.MinFitScore != nil {
		query += ` ORDER BY fit_score DESC, date_posted DESC`
	} else {
		query += ` ORDER BY date_posted DESC`
	}
	query += ` LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job postings: %w", err)
	}
	defer rows.Close()

	out := make([]model.JobPosting, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job postings: %w", err)
	}
	return out, nil
}

func UpdateJobPosting(db *sql.DB, id string, in JobInput) error {
	if err := validateJobInput(&in); err != nil {
		return err
	}
	if in.DatePosted.IsZero() {
		return fmt.Errorf("date posted is required")
	}
	res, err := db.Exec(`
UPDATE job_postings
SET job_title = ?, company_name = ?, url = ?, salary_min = ?, salary_max = ?, remote_policy = ?, description = ?,
    fit_score = ?, nd_friendliness_score = ?, green_flags = ?, red_flags = ?, date_posted = ?, synced = 0
WHERE id = ?
`, in.JobTitle, in.CompanyName, in.URL, nullableFloat(in.SalaryMin), nullableFloat(in.SalaryMax),
		nullableString(in.RemotePolicy), nullableString(in.Description), nullableFloat(in.FitScore),
		nullableFloat(in.NDFriendlinessScore), nullableString(in.GreenFlags), nullableString(in.RedFlags),
		formatTime(in.DatePosted), id)
	if err != nil {
		return fmt.Errorf("update job posting %q: %w", id, err)
	}
	return affectedOrNotFound(res, "job posting", id)
}

func DeleteJobPosting(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM job_postings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job posting %q: %w", id, err)
	}
	return affectedOrNotFound(res, "job posting", id)
}

func scanJob(row rowScanner) (model.JobPosting, error) {
	var j model.JobPosting
	var salaryMin, salaryMax, fit, nd sql.NullFloat64
	var datePosted string
	var remoteID sql.NullString
	if err := row.Scan(&j.ID, &j.JobTitle, &j.CompanyName, &j.URL, &salaryMin, &salaryMax, &j.RemotePolicy, &j.Description,
		&fit, &nd, &j.GreenFlags, &j.RedFlags, &datePosted, &j.Synced, &remoteID); err != nil {
		if err == sql.ErrNoRows {
			return j, err
		}
		return j, fmt.Errorf("scan job posting: %w", err)
	}
	t, err := parseTime("date_posted", datePosted)
	if err != nil {
		return j, err
	}
	j.DatePosted = t
	j.SalaryMin = floatPtr(salaryMin)
	j.SalaryMax = floatPtr(salaryMax)
	j.FitScore = floatPtr(fit)
	j.NDFriendlinessScore = floatPtr(nd)
	j.RemoteID = stringPtr(remoteID)
	return j, nil
}
