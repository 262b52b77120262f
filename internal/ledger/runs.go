package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/models"
)

// Run is one row of the run history
type Run struct {
	ID           string
	Mode         string
	Status       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Error        string
	StoreRows    int64
	EnrichedRows int64
	Sessions     int
	Days         int
	Terms        int
	Warnings     int
	Batches      int
	Inserted     int64
	Collisions   int64
}

// Duration returns the wall time of a finished run, zero otherwise
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BatchRecord locates a previously merged input
type BatchRecord struct {
	RunID      string
	BatchID    string
	SourceFile string
	StartedAt  time.Time
}

// StartRun records a run as running
func (l *Ledger) StartRun(ctx context.Context, id, mode string, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, models.StatusRunning, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run together with its batches and
// exports in one transaction
func (l *Ledger) FinishRun(ctx context.Context, s models.RunSummary) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	res, err := tx.ExecContext(ctx, `UPDATE runs SET
    status = ?, finished_at = ?, error = ?, store_rows = ?, enriched_rows = ?,
    sessions = ?, days = ?, terms = ?, warnings = ?
    WHERE id = ?`,
		s.Status, s.FinishedAt.UTC(), s.Error, s.StoreRows, s.EnrichedRows,
		s.Sessions, s.Days, s.Terms, s.Warnings(), s.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s was never started", s.RunID)
	}

	for i, b := range s.Batches {
		var fileDate any
		if b.FileDate != nil {
			fileDate = b.FileDate.Format("2006-01-02")
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO batches
    (id, run_id, position, source_file, sha256, file_date, rows_read, rows_dropped,
     collisions, inserted, internal_duplicates, new_columns, store_size)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.BatchID, s.RunID, i, b.SourceFile, b.SHA256, fileDate, b.RowsRead, b.RowsDropped,
			b.Collisions, b.Inserted, b.InternalDuplicates, strings.Join(b.NewColumns, ","), b.StoreSize)
		if err != nil {
			return fmt.Errorf("insert batch %s: %w", b.BatchID, err)
		}
	}

	for _, e := range s.Exports {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO exports (run_id, artifact, path, row_count, error) VALUES (?, ?, ?, ?, ?)`,
			s.RunID, e.Artifact, e.Path, e.Rows, e.Err)
		if err != nil {
			return fmt.Errorf("insert export %s: %w", e.Artifact, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runSelect = `SELECT r.id, r.mode, r.status, r.started_at, r.finished_at, r.error,
    r.store_rows, r.enriched_rows, r.sessions, r.days, r.terms, r.warnings,
    COUNT(b.id), COALESCE(SUM(b.inserted), 0), COALESCE(SUM(b.collisions), 0)
    FROM runs r LEFT JOIN batches b ON b.run_id = r.id`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Mode, &r.Status, &r.StartedAt, &finished, &r.Error,
		&r.StoreRows, &r.EnrichedRows, &r.Sessions, &r.Days, &r.Terms, &r.Warnings,
		&r.Batches, &r.Inserted, &r.Collisions)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// RecentRuns returns up to limit runs, newest first
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		runSelect+` GROUP BY r.id ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run, or nil when it does not exist
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(l.db.QueryRowContext(ctx, runSelect+` WHERE r.id = ? GROUP BY r.id`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// RunBatches returns the batches merged by a run in ingestion order
func (l *Ledger) RunBatches(ctx context.Context, runID string) ([]models.BatchSummary, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, source_file, sha256, file_date, rows_read,
    rows_dropped, collisions, inserted, internal_duplicates, new_columns, store_size
    FROM batches WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []models.BatchSummary
	for rows.Next() {
		var (
			b        models.BatchSummary
			fileDate sql.NullString
			newCols  string
		)
		if err := rows.Scan(&b.BatchID, &b.SourceFile, &b.SHA256, &fileDate, &b.RowsRead,
			&b.RowsDropped, &b.Collisions, &b.Inserted, &b.InternalDuplicates, &newCols, &b.StoreSize); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if fileDate.Valid {
			if d, err := time.Parse("2006-01-02", fileDate.String); err == nil {
				b.FileDate = &d
			}
		}
		if newCols != "" {
			b.NewColumns = strings.Split(newCols, ",")
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// FindBatch returns the most recent successful merge of a file with the
// given content hash, or nil when it was never merged
func (l *Ledger) FindBatch(ctx context.Context, sha256 string) (*BatchRecord, error) {
	var rec BatchRecord
	err := l.db.QueryRowContext(ctx, `SELECT b.run_id, b.id, b.source_file, r.started_at
    FROM batches b JOIN runs r ON r.id = b.run_id
    WHERE b.sha256 = ? AND r.status = ?
    ORDER BY r.started_at DESC LIMIT 1`, sha256, models.StatusSucceeded).
		Scan(&rec.RunID, &rec.BatchID, &rec.SourceFile, &rec.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &rec, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed
func (l *Ledger) Prune(ctx context.Context, keep int) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	const stale = `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	for _, table := range []string{"exports", "batches"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE run_id IN (%s)", table, stale), keep); err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM runs WHERE id IN (%s)", stale), keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}
