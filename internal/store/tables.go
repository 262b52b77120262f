package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

// ColumnDef declares one column of a staged table
type ColumnDef struct {
	Name string
	Type string // DuckDB type, e.g. VARCHAR, BIGINT, DOUBLE, DATE, TIMESTAMP, BOOLEAN
}

// TableSpec describes a staged table
type TableSpec struct {
	Name    string
	Columns []ColumnDef
}

// ReplaceTable recreates a table from spec and bulk loads rows into it.
// Each row must hold one value per column in spec order; nil is NULL.
func (s *Store) ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) error {
	if len(spec.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", spec.Name)
	}

	defs := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type
	}
	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(spec.Name), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	return s.appendRows(spec.Name, func(app *duckdb.Appender) error {
		values := make([]driver.Value, len(spec.Columns))
		for i, row := range rows {
			if len(row) != len(spec.Columns) {
				return fmt.Errorf("row %d of %s has %d values, want %d", i, spec.Name, len(row), len(spec.Columns))
			}
			for j, v := range row {
				values[j] = v
			}
			if err := app.AppendRow(values...); err != nil {
				return fmt.Errorf("append row %d to %s: %w", i, spec.Name, err)
			}
		}
		return nil
	})
}

// CopyFormat is a columnar export encoding
type CopyFormat string

const (
	FormatParquet CopyFormat = "parquet"
	FormatCSV     CopyFormat = "csv"
)

// Extension returns the file extension for the format
func (f CopyFormat) Extension() string {
	return "." + string(f)
}

// ParseCopyFormat validates a user-supplied format name
func ParseCopyFormat(name string) (CopyFormat, error) {
	switch CopyFormat(strings.ToLower(strings.TrimSpace(name))) {
	case FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want parquet or csv)", name)
	}
}

// CopyTo writes the full contents of table to path. The caller owns
// atomic placement of the file.
func (s *Store) CopyTo(ctx context.Context, table, path string, format CopyFormat) error {
	var options string
	switch format {
	case FormatParquet:
		options = "FORMAT PARQUET"
	case FormatCSV:
		options = "FORMAT CSV, HEADER"
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	query := fmt.Sprintf("COPY (SELECT * FROM %s) TO %s (%s)", quoteIdent(table), quoteLiteral(path), options)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("copy %s to %s: %w", table, path, err)
	}
	return nil
}

// EnrichedTable holds the stored events joined with their features
const EnrichedTable = enrichedTable

// TableRows counts the rows of a table
func (s *Store) TableRows(ctx context.Context, table string) (int64, error) {
	return s.countRows(ctx, table)
}
