package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PreRestoreSuffix names the copy of the live database kept by RestoreBackup.
const PreRestoreSuffix = ".pre-restore"

type BackupInfo struct {
	Path      string    `json:"path" yaml:"path"`
	Checksum  string    `json:"checksum" yaml:"checksum"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
}

// RestoreReport describes how a restored database lines up with the CRM.
// Relinked rows were pushed after the backup was taken; they got their
// remote ids back and are queued so the next pass updates the remote record
// instead of creating a duplicate. Orphaned counts remote records created
// from rows the backup does not have.
type RestoreReport struct {
	Previous string         `json:"previous" yaml:"previous"`
	Relinked map[string]int `json:"relinked" yaml:"relinked"`
	Orphaned map[string]int `json:"orphaned" yaml:"orphaned"`
}

func (r RestoreReport) Totals() (relinked, orphaned int) {
	for _, n := range r.Relinked {
		relinked += n
	}
	for _, n := range r.Orphaned {
		orphaned += n
	}
	return relinked, orphaned
}

// CreateBackup writes a consistent snapshot of the open database to outPath
// with VACUUM INTO, plus a .sha256 sidecar. outPath must not exist yet.
func CreateBackup(db *sql.DB, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, fmt.Errorf("backup %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.Exec(`VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, fmt.Errorf("snapshot database: %w", err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o600); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()}, nil
}

// RestoreBackup verifies backupPath against its sidecar checksum and copies
// it over dbPath. Replacing an existing database needs force; the replaced
// file is kept at dbPath+PreRestoreSuffix and that path is returned so the
// caller can hand it to RelinkRemoteIDs.
func RestoreBackup(backupPath, dbPath string, force bool) (string, error) {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return "", fmt.Errorf("backup path and db path are required")
	}
	if err := verifyChecksum(backupPath); err != nil {
		return "", err
	}
	previous := ""
	if _, err := os.Stat(dbPath); err == nil {
		if !force {
			return "", fmt.Errorf("%s already exists; use --force to replace it", dbPath)
		}
		previous = dbPath + PreRestoreSuffix
		if err := copyFile(dbPath, previous); err != nil {
			return "", fmt.Errorf("keep current database: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", dbPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return "", fmt.Errorf("create db directory: %w", err)
	}
	if err := copyFile(backupPath, dbPath); err != nil {
		return "", err
	}
	return previous, nil
}

// RelinkRemoteIDs compares the restored database with the one it replaced.
// Rows the previous database had already pushed get their remote ids back
// and are marked unsynced; previously pushed rows missing from the restore
// are counted as orphaned.
func RelinkRemoteIDs(db *sql.DB, previousPath string) (RestoreReport, error) {
	report := RestoreReport{Previous: previousPath, Relinked: map[string]int{}, Orphaned: map[string]int{}}
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return report, fmt.Errorf("relink connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS prev`, previousPath); err != nil {
		return report, fmt.Errorf("attach previous database: %w", err)
	}
	defer func() { _, _ = conn.ExecContext(ctx, `DETACH DATABASE prev`) }()

	for _, t := range PushTables {
		var present int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM prev.sqlite_master WHERE type = 'table' AND name = ?`, string(t)).Scan(&present); err != nil {
			return report, fmt.Errorf("inspect previous %s: %w", t, err)
		}
		if present == 0 {
			continue
		}
		res, err := conn.ExecContext(ctx, fmt.Sprintf(`
UPDATE main.%[1]s
SET remote_id = (SELECT p.remote_id FROM prev.%[1]s p WHERE p.id = %[1]s.id),
    synced = 0
WHERE remote_id IS NULL
  AND id IN (SELECT id FROM prev.%[1]s WHERE remote_id IS NOT NULL)`, t))
		if err != nil {
			return report, fmt.Errorf("relink %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return report, fmt.Errorf("relink %s rows: %w", t, err)
		}
		if n > 0 {
			report.Relinked[string(t)] = int(n)
		}

		var orphaned int
		if err := conn.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(1) FROM prev.%[1]s p
WHERE p.remote_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM main.%[1]s m WHERE m.id = p.id)`, t)).Scan(&orphaned); err != nil {
			return report, fmt.Errorf("count orphaned %s: %w", t, err)
		}
		if orphaned > 0 {
			report.Orphaned[string(t)] = orphaned
		}
	}
	return report, nil
}

func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".db") {
			continue
		}
		full := filepath.Join(dir, f.Name())
		st, err := os.Stat(full)
		if err != nil {
			continue
		}
		checksum := ""
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			checksum = strings.TrimSpace(string(b))
		}
		out = append(out, BackupInfo{Path: full, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// verifyChecksum passes when the sidecar is absent.
func verifyChecksum(path string) error {
	expected, err := os.ReadFile(path + ".sha256")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checksum file: %w", err)
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(expected)) != actual {
		return fmt.Errorf("backup checksum mismatch for %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync destination file: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
