// Package config resolves runtime settings from .env files, the process
// environment and the app_config table, in that order of increasing
// precedence.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/neurothrive/thrive/internal/provider/anthropic"
	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/service"
)

const (
	DefaultAPIBaseURL   = "https://login.salesforce.com"
	DefaultRedirectURI  = "http://localhost:8719/oauth/callback"
	DefaultSyncInterval = 15 * time.Minute
	minSyncInterval     = time.Minute
)

const (
	EnvAPIBaseURL   = "THRIVE_API_BASE_URL"
	EnvAPIVersion   = "THRIVE_API_VERSION"
	EnvClientID     = "THRIVE_CLIENT_ID"
	EnvClientSecret = "THRIVE_CLIENT_SECRET"
	EnvRedirectURI  = "THRIVE_REDIRECT_URI"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvAIModel      = "THRIVE_AI_MODEL"
	EnvSyncInterval = "THRIVE_SYNC_INTERVAL"
	EnvDebug        = "THRIVE_DEBUG"
)

type Config struct {
	APIBaseURL      string
	APIVersion      string
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	AnthropicAPIKey string
	AIModel         string
	SyncInterval    time.Duration
	Debug           bool
}

// LoadEnvFiles reads the given .env files into the environment. Variables
// already set win; missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the environment and then applies values saved with
// `thrive config set`. db may be nil.
func Load(db *sql.DB) (Config, error) {
	stored := map[string]string{}
	if db != nil {
		var err error
		if stored, err = service.ListConfig(db); err != nil {
			return Config{}, err
		}
	}
	return Resolve(os.Getenv, stored)
}

// Resolve builds a Config from an environment lookup and stored overrides.
func Resolve(getenv func(string) string, stored map[string]string) (Config, error) {
	pick := func(envKey, storedKey, fallback string) string {
		if v := strings.TrimSpace(stored[storedKey]); storedKey != "" && v != "" {
			return v
		}
		if v := strings.TrimSpace(getenv(envKey)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		APIBaseURL:      strings.TrimRight(pick(EnvAPIBaseURL, service.ConfigAPIBaseURL, DefaultAPIBaseURL), "/"),
		APIVersion:      pick(EnvAPIVersion, service.ConfigAPIVersion, crm.DefaultAPIVersion),
		ClientID:        pick(EnvClientID, service.ConfigClientID, ""),
		ClientSecret:    pick(EnvClientSecret, "", ""),
		RedirectURI:     pick(EnvRedirectURI, service.ConfigRedirectURI, DefaultRedirectURI),
		AnthropicAPIKey: pick(EnvAnthropicKey, "", ""),
		AIModel:         pick(EnvAIModel, service.ConfigAIModel, anthropic.DefaultModel),
		SyncInterval:    DefaultSyncInterval,
	}

	if raw := pick(EnvSyncInterval, service.ConfigSyncInterval, ""); raw != "" {
		d, err := parseInterval(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.SyncInterval = d
	}
	if raw := strings.TrimSpace(getenv(EnvDebug)); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvDebug, raw, err)
		}
		cfg.Debug = debug
	}
	if !strings.HasPrefix(cfg.APIBaseURL, "https://") && !strings.HasPrefix(cfg.APIBaseURL, "http://") {
		return Config{}, fmt.Errorf("api base url %q must be an http(s) URL", cfg.APIBaseURL)
	}
	return cfg, nil
}

// parseInterval accepts a Go duration ("30m") or a bare number of minutes.
func parseInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		minutes, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("invalid sync interval %q: use a duration like 15m", raw)
		}
		d = time.Duration(minutes) * time.Minute
	}
	if d < minSyncInterval {
		return 0, fmt.Errorf("sync interval %s is shorter than %s", d, minSyncInterval)
	}
	return d, nil
}
