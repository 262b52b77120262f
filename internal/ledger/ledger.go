// Package ledger keeps a SQLite history of pipeline runs, the batches each
// run merged and the artifacts it exported.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Memory opens a private in-memory ledger
const Memory = ":memory:"

// Ledger manages the run history database
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the ledger at dbPath and applies pending migrations
func Open(ctx context.Context, dbPath string) (*Ledger, error) {
	if dbPath != Memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if dbPath == Memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if dbPath != Memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(ctx, db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.ApplyMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return l, nil
}

// execWithRetry retries a statement with exponential backoff while the
// database is locked by another process.
func execWithRetry(ctx context.Context, db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.ExecContext(ctx, stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// tableExists checks if a table exists in the database
func (l *Ledger) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table existence: %w", err)
	}
	return count > 0, nil
}
