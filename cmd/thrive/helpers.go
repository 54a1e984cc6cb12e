package thrive

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/app"
	"github.com/neurothrive/thrive/internal/auth"
	"github.com/neurothrive/thrive/internal/config"
	"github.com/neurothrive/thrive/internal/db"
	"github.com/neurothrive/thrive/internal/logging"
	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/syncer"
	"github.com/spf13/cobra"
)

func withDB(run func(*sql.DB) error) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	sqldb, err := db.OpenMigrated(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()
	return run(sqldb)
}

// appEnv is what the network-facing commands need beyond the database.
type appEnv struct {
	db     *sql.DB
	dbPath string
	cfg    config.Config
	logger *slog.Logger
	auth   *auth.Manager
}

func withEnv(run func(*appEnv) error) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if err := config.LoadEnvFiles(".env", app.EnvPath(path)); err != nil {
		return err
	}
	return withDB(func(sqldb *sql.DB) error {
		cfg, err := config.Load(sqldb)
		if err != nil {
			return err
		}
		logger := logging.New(app.LogPath(path), cfg.Debug)
		env := &appEnv{
			db:     sqldb,
			dbPath: path,
			cfg:    cfg,
			logger: logger,
			auth: &auth.Manager{
				BaseURL:      cfg.APIBaseURL,
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURI:  cfg.RedirectURI,
				Store:        &auth.FileStore{Path: app.TokenPath(path), KeyPath: app.DeviceKeyPath(path)},
				Logger:       logger,
			},
		}
		return run(env)
	})
}

// reconciler builds a sync engine against the instance of the stored
// session.
func (e *appEnv) reconciler() (*syncer.Reconciler, error) {
	sess, ok, err := e.auth.Session()
	if err != nil {
		return nil, err
	}
	if !ok || sess.AccessToken == "" {
		return nil, auth.ErrNotAuthenticated
	}
	base := sess.InstanceURL
	if base == "" {
		base = e.cfg.APIBaseURL
	}
	client := &crm.Client{
		BaseURL:    base,
		APIVersion: e.cfg.APIVersion,
		HTTPClient: auth.NewClient(e.auth),
	}
	return &syncer.Reconciler{DB: e.db, Remote: client, Logger: e.logger, LockPath: app.SyncLockPath(e.dbPath)}, nil
}

func parseDateTimeOrNow(date, timeStr string) (time.Time, error) {
	date = strings.TrimSpace(date)
	timeStr = strings.TrimSpace(timeStr)
	if date == "" && timeStr == "" {
		return time.Now(), nil
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("--date is required when --time is set")
	}
	if timeStr == "" {
		return parseDay("--date", date)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeStr, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date/--time (expected YYYY-MM-DD and HH:MM)")
	}
	return t, nil
}

// overlayDateTime keeps current unless --date or --time was given. A lone
// --time moves the entry within its current local day.
func overlayDateTime(cmd *cobra.Command, current time.Time, date, timeStr string) (time.Time, error) {
	dateSet, timeSet := cmd.Flags().Changed("date"), cmd.Flags().Changed("time")
	if !dateSet && !timeSet {
		return current, nil
	}
	if !dateSet {
		date = current.Local().Format("2006-01-02")
	}
	if !timeSet {
		timeStr = current.Local().Format("15:04")
	}
	return parseDateTimeOrNow(date, timeStr)
}

func parseDay(flag, value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (expected YYYY-MM-DD)", flag, value)
	}
	return t, nil
}

func parseDayOrToday(flag, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now(), nil
	}
	return parseDay(flag, value)
}

// optionalInt returns nil unless the flag was set explicitly.
func optionalInt(cmd *cobra.Command, name string, v int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func optionalFloat(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func optionalString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func parseDayOfWeek(value string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		if value == name || value == name[:3] {
			return i, nil
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid day %q (use 0-6 or a weekday name)", value)
	}
	return n, nil
}

func syncMark(synced bool) string {
	if synced {
		return "yes"
	}
	return "no"
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func localDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

func localStamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
