package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appDirName     = "thrive"
	dbFileName     = "thrive.db"
	tokenFileName  = "session.enc"
	keyFileName    = "device.key"
	logFileName    = "thrive.log"
	envFileName    = ".env"
	syncLockName   = "sync.lock"
	daemonLockName = "daemon.lock"
)

// StateDir is where the store, session and log live. THRIVE_HOME overrides
// the user config dir.
func StateDir() (string, error) {
	if home := os.Getenv("THRIVE_HOME"); home != "" {
		return home, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

func DefaultDBPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFileName), nil
}

// The session, key and log files sit next to the database so that --db
// selects a whole profile.

func TokenPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), tokenFileName)
}

func DeviceKeyPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), keyFileName)
}

func LogPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), logFileName)
}

func EnvPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), envFileName)
}

// SyncLockPath is held for the length of one sync pass.
func SyncLockPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), syncLockName)
}

// DaemonLockPath is held by a running sync daemon and names its pid.
func DaemonLockPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), daemonLockName)
}

func EnsureDBDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}
