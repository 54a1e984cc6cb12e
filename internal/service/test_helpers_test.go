package service_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/neurothrive/thrive/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thrive.db")
	sqldb, err := db.OpenMigrated(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return sqldb
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func strp(v string) *string { return &v }
