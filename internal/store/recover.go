package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// BackupDirName is created next to the store to hold pre-recovery copies
const BackupDirName = "backup_before_recovery"

// RecoveryReport describes a WAL recovery
type RecoveryReport struct {
	DBPath        string
	WALPath       string
	BackupDir     string
	Backups       []string
	DBSizeBefore  int64
	DBSizeAfter   int64
	WALPresent    bool // A WAL existed before recovery
	WALSizeBefore int64
	WALSizeAfter  int64 // -1 when the checkpoint removed the WAL
	Tables        []TableCount

	// Schema of the replayed store; zero when it was never migrated
	SchemaVersion   int
	PropertyColumns []string
}

// WALPath returns the write-ahead log path DuckDB uses for a store file
func WALPath(dbPath string) string {
	return dbPath + ".wal"
}

// Recover backs up the store and its WAL, opens the store so the WAL is
// replayed, lists its tables and forces a checkpoint. A missing WAL is not
// an error: there is nothing to replay.
func Recover(ctx context.Context, dbPath string, now time.Time) (*RecoveryReport, error) {
	report := &RecoveryReport{
		DBPath:       dbPath,
		WALPath:      WALPath(dbPath),
		WALSizeAfter: -1,
	}

	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	report.DBSizeBefore = dbInfo.Size()

	walInfo, err := os.Stat(report.WALPath)
	switch {
	case err == nil:
		report.WALPresent = true
		report.WALSizeBefore = walInfo.Size()
	case errors.Is(err, fs.ErrNotExist):
		report.DBSizeAfter = report.DBSizeBefore
		return report, nil
	default:
		return nil, fmt.Errorf("stat WAL: %w", err)
	}

	report.BackupDir = filepath.Join(filepath.Dir(dbPath), BackupDirName)
	if err := os.MkdirAll(report.BackupDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	stamp := now.Format("20060102_150405")
	for _, src := range []string{dbPath, report.WALPath} {
		dst := filepath.Join(report.BackupDir, fmt.Sprintf("%s.%s.bak", filepath.Base(src), stamp))
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("back up %s: %w", filepath.Base(src), err)
		}
		report.Backups = append(report.Backups, dst)
	}

	s, err := open(ctx, dbPath)
	if err != nil {
		return report, fmt.Errorf("open store for replay: %w", err)
	}

	if report.Tables, err = s.TableCounts(ctx); err != nil {
		s.Close()
		return report, err
	}
	if err := s.describeSchema(ctx, report); err != nil {
		s.Close()
		return report, err
	}
	if err := s.Checkpoint(ctx); err != nil {
		s.Close()
		return report, err
	}
	if err := s.Close(); err != nil {
		return report, fmt.Errorf("close store: %w", err)
	}

	if info, err := os.Stat(report.WALPath); err == nil {
		report.WALSizeAfter = info.Size()
	}
	if info, err := os.Stat(dbPath); err == nil {
		report.DBSizeAfter = info.Size()
	}
	return report, nil
}

// describeSchema records the migration level and property columns of a
// store that has been migrated at least once
func (s *Store) describeSchema(ctx context.Context, report *RecoveryReport) error {
	present := make(map[string]bool, len(report.Tables))
	for _, t := range report.Tables {
		present[t.Name] = true
	}

	if present["schema_version"] {
		versions, err := s.AppliedVersions(ctx)
		if err != nil {
			return err
		}
		if n := len(versions); n > 0 {
			report.SchemaVersion = versions[n-1].Version
		}
	}
	if present[eventsTable] {
		cols, err := s.PropertyColumns(ctx)
		if err != nil {
			return err
		}
		report.PropertyColumns = cols
	}
	return nil
}

// copyFile copies src to dst and keeps the modification time
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
