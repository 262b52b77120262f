package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations is the ordered list of store schema changes
var migrations = []Migration{
	{
		Version:     1,
		Description: "Event table keyed by timestamp, user, session and name",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS events (
    ingest_seq BIGINT NOT NULL,
    batch_id VARCHAR,
    source_file VARCHAR,
    ingested_at TIMESTAMP,
    "timestamp" TIMESTAMP NOT NULL,
    user_id VARCHAR,
    session_id VARCHAR,
    "name" VARCHAR NOT NULL
)`,
		},
	},
	{
		Version:     2,
		Description: "Derived feature and enriched event tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS event_features (
    ingest_seq BIGINT NOT NULL,
    session_date DATE,
    session_key VARCHAR,
    event_order BIGINT,
    prev_event VARCHAR,
    prev_timestamp TIMESTAMP,
    ms_since_prev_event BIGINT,
    sec_since_prev_event DOUBLE,
    time_since_prev_bucket VARCHAR,
    time_since_prev_bucket_sort BIGINT,
    search_term_normalized VARCHAR,
    search_term_length BIGINT,
    search_term_word_count BIGINT,
    active_search_term VARCHAR,
    ms_since_search_start BIGINT,
    event_hour BIGINT,
    event_weekday VARCHAR,
    event_weekday_num BIGINT,
    time_of_day VARCHAR,
    result_count BIGINT,
    is_null_result BOOLEAN,
    click_category VARCHAR,
    is_success_click BOOLEAN,
    is_first_search_of_day BOOLEAN
)`,
			`CREATE TABLE IF NOT EXISTS events_enriched AS
    SELECT e.*, f.* EXCLUDE (ingest_seq)
    FROM events e JOIN event_features f USING (ingest_seq)`,
		},
	},
}

// MigrationVersion is a record of an applied migration
type MigrationVersion struct {
	Version   int
	AppliedAt time.Time
}

// ApplyMigrations applies every pending migration in one transaction
func (s *Store) ApplyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT current_timestamp
)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v.Version] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// AppliedVersions lists applied migrations in version order
func (s *Store) AppliedVersions(ctx context.Context) ([]MigrationVersion, error) {
	return appliedVersions(ctx, s.db)
}

func appliedVersions(ctx context.Context, q queryer) ([]MigrationVersion, error) {
	rows, err := q.QueryContext(ctx, `SELECT version, applied_at FROM schema_version ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("query schema versions: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// addColumnIfNotExistsTx adds a nullable text column unless a column of the
// same name exists. Identifiers are case-insensitive in the store.
func addColumnIfNotExistsTx(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	existing, err := columns(ctx, tx, table)
	if err != nil {
		return false, err
	}
	for _, name := range existing {
		if strings.EqualFold(name, column) {
			return false, nil
		}
	}

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s VARCHAR", quoteIdent(table), quoteIdent(column))
	if _, err := tx.ExecContext(ctx, alter); err != nil {
		return false, fmt.Errorf("alter table: %w", err)
	}
	return true, nil
}
