package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create runs table",
		SQL: `CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    error TEXT NOT NULL DEFAULT '',
    store_rows INTEGER NOT NULL DEFAULT 0,
    enriched_rows INTEGER NOT NULL DEFAULT 0,
    sessions INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	},
	{
		Version:     2,
		Description: "Create batches table",
		SQL: `CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(id),
    position INTEGER NOT NULL,
    source_file TEXT NOT NULL,
    sha256 TEXT NOT NULL,
    file_date TEXT,
    rows_read INTEGER NOT NULL,
    rows_dropped INTEGER NOT NULL,
    collisions INTEGER NOT NULL,
    inserted INTEGER NOT NULL,
    internal_duplicates INTEGER NOT NULL,
    new_columns TEXT NOT NULL DEFAULT '',
    store_size INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_run ON batches(run_id);
CREATE INDEX IF NOT EXISTS idx_batches_sha ON batches(sha256);`,
	},
	{
		Version:     3,
		Description: "Create exports table and run counters",
		SQL: `CREATE TABLE IF NOT EXISTS exports (
    run_id TEXT NOT NULL REFERENCES runs(id),
    artifact TEXT NOT NULL,
    path TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, artifact)
);`,
	},
}

// runColumns are added idempotently by migration 3
var runColumns = []struct {
	name string
	def  string
}{
	{"days", "INTEGER NOT NULL DEFAULT 0"},
	{"terms", "INTEGER NOT NULL DEFAULT 0"},
	{"warnings", "INTEGER NOT NULL DEFAULT 0"},
}

// MigrationVersion represents an applied migration version
type MigrationVersion struct {
	Version   int
	AppliedAt time.Time
}

// ApplyMigrations applies all pending migrations in one transaction
func (l *Ledger) ApplyMigrations(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := tx.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate versions: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if m.Version == 3 {
			for _, c := range runColumns {
				if err := addColumnIfNotExistsTx(ctx, tx, "runs", c.name, c.def); err != nil {
					return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// addColumnIfNotExistsTx adds a column unless it is already present.
// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first.
func addColumnIfNotExistsTx(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("get table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan column info: %w", err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("add column %s: %w", column, err)
	}
	return nil
}

// AppliedVersions returns all applied migration versions, oldest first
func (l *Ledger) AppliedVersions(ctx context.Context) ([]MigrationVersion, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_version ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []MigrationVersion
	for rows.Next() {
		var v MigrationVersion
		if err := rows.Scan(&v.Version, &v.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
