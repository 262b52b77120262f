// Package store keeps the deduplicated event table and its derived tables in
// an embedded DuckDB database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

// Table names
const (
	eventsTable   = "events"
	stageTable    = "events_stage"
	featuresTable = "event_features"
	enrichedTable = "events_enriched"
)

// FileName is the store file created inside the data directory
const FileName = "searchanalytics.duckdb"

// Store is the DuckDB-backed event store. sql.DB serves DDL and queries;
// the native connection feeds the appender used for bulk loads.
type Store struct {
	connector *duckdb.Connector
	db        *sql.DB
	conn      *duckdb.Conn
	path      string
	now       func() time.Time
}

// Open opens or creates the store at path and applies pending migrations.
// An empty path opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyMigrations(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

// open connects without touching the schema
func open(ctx context.Context, path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	s := &Store{
		connector: connector,
		db:        sql.OpenDB(connector),
		path:      path,
		now:       func() time.Time { return time.Now().UTC() },
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open native connection: %w", err)
	}
	duckConn, ok := conn.(*duckdb.Conn)
	if !ok {
		conn.Close()
		s.Close()
		return nil, errors.New("native connection is not a DuckDB connection")
	}
	s.conn = duckConn

	return s, nil
}

// Path returns the database file path ("" for in-memory)
func (s *Store) Path() string {
	return s.path
}

// Close releases the native connection, the pool and the database
func (s *Store) Close() error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.connector != nil {
		errs = append(errs, s.connector.Close())
	}
	return errors.Join(errs...)
}

// Count returns the number of stored events
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.countRows(ctx, eventsTable)
}

func (s *Store) countRows(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// TableCount is the row count of one table
type TableCount struct {
	Name string
	Rows int64
}

// TableCounts lists every table of the main schema with its row count
func (s *Store) TableCounts(ctx context.Context) ([]TableCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	rows.Close()

	counts := make([]TableCount, 0, len(names))
	for _, name := range names {
		n, err := s.countRows(ctx, name)
		if err != nil {
			return nil, err
		}
		counts = append(counts, TableCount{Name: name, Rows: n})
	}
	return counts, nil
}

// Checkpoint folds the write-ahead log into the database file
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// columns lists the columns of table in table order
func columns(ctx context.Context, q queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", table))
	if err != nil {
		return nil, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk bool
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return names, nil
}

// appendRows bulk loads table through a DuckDB appender on the native
// connection. Closing the appender flushes the remaining rows.
func (s *Store) appendRows(table string, fill func(app *duckdb.Appender) error) error {
	app, err := duckdb.NewAppenderFromConn(s.conn, "", table)
	if err != nil {
		return fmt.Errorf("create appender for %s: %w", table, err)
	}
	if err := fill(app); err != nil {
		app.Close()
		return err
	}
	if err := app.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", table, err)
	}
	return nil
}

func (s *Store) dropTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
