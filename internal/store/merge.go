package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sort"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/harrison/searchflow/internal/models"
)

// base event columns in table order, ahead of the property columns
var baseColumns = []string{
	models.ColIngestSeq,
	models.ColBatchID,
	models.ColSourceFile,
	models.ColIngestedAt,
	models.ColTimestamp,
	models.ColUserID,
	models.ColSessionID,
	models.ColName,
}

// MergeResult summarises one upsert
type MergeResult struct {
	BatchID            string
	BatchSize          int
	Collisions         int64 // Stored rows replaced by the batch
	Inserted           int64
	InternalDuplicates int      // Rows sharing a key with an earlier row of the same batch
	NewColumns         []string // Property columns added by this batch
	StoreSize          int64
}

const deleteCollisionsSQL = `DELETE FROM events WHERE EXISTS (
    SELECT 1 FROM events_stage s
    WHERE s."timestamp" = events."timestamp"
      AND s.user_id IS NOT DISTINCT FROM events.user_id
      AND s.session_id IS NOT DISTINCT FROM events.session_id
      AND s."name" = events."name"
)`

// Merge upserts events as one batch. Every stored row whose composite key
// appears in the batch is deleted and all batch rows are inserted, so the
// most recent batch wins on collision. NULL user and session ids compare
// equal to each other.
func (s *Store) Merge(ctx context.Context, batchID string, events []models.Event) (*MergeResult, error) {
	res := &MergeResult{BatchID: batchID, BatchSize: len(events)}

	if len(events) == 0 {
		size, err := s.Count(ctx)
		if err != nil {
			return nil, err
		}
		res.StoreSize = size
		return res, nil
	}

	for i := range events {
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	res.InternalDuplicates = countDuplicateKeys(events)

	added, err := s.ensurePropertyColumns(ctx, propertyNames(events))
	if err != nil {
		return nil, fmt.Errorf("extend event schema: %w", err)
	}
	res.NewColumns = added

	existing, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	var lastSeq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ingest_seq), 0) FROM events`).Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("read last sequence: %w", err)
	}

	if err := s.stageEvents(ctx, batchID, lastSeq, events); err != nil {
		return nil, fmt.Errorf("stage batch: %w", err)
	}
	defer s.dropTable(context.Background(), stageTable)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if existing > 0 {
		r, err := tx.ExecContext(ctx, deleteCollisionsSQL)
		if err != nil {
			return nil, fmt.Errorf("delete colliding rows: %w", err)
		}
		if res.Collisions, err = r.RowsAffected(); err != nil {
			return nil, fmt.Errorf("count colliding rows: %w", err)
		}
	}

	r, err := tx.ExecContext(ctx, `INSERT INTO events SELECT * FROM events_stage`)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	if res.Inserted, err = r.RowsAffected(); err != nil {
		return nil, fmt.Errorf("count inserted rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}

	if res.StoreSize, err = s.Count(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// ensurePropertyColumns adds every property column the store lacks
func (s *Store) ensurePropertyColumns(ctx context.Context, names []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schema change: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	var added []string
	for _, name := range names {
		ok, err := addColumnIfNotExistsTx(ctx, tx, eventsTable, name)
		if err != nil {
			return nil, fmt.Errorf("add column %s: %w", name, err)
		}
		if ok {
			added = append(added, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit schema change: %w", err)
	}
	return added, nil
}

// stageEvents loads the batch into a staging table shaped like events.
// Sequence numbers continue from lastSeq in batch order.
func (s *Store) stageEvents(ctx context.Context, batchID string, lastSeq int64, events []models.Event) error {
	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s LIMIT 0", stageTable, eventsTable)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	cols, err := columns(ctx, s.db, stageTable)
	if err != nil {
		return err
	}
	props := cols[len(baseColumns):]
	ingestedAt := s.now()

	return s.appendRows(stageTable, func(app *duckdb.Appender) error {
		row := make([]driver.Value, len(cols))
		for i := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := &events[i]
			row[0] = lastSeq + int64(i) + 1
			row[1] = batchID
			row[2] = nullIfEmpty(e.SourceFile)
			row[3] = ingestedAt
			row[4] = e.Timestamp.UTC()
			row[5] = nullIfEmpty(e.UserID)
			row[6] = nullIfEmpty(e.SessionID)
			row[7] = e.Name
			for j, p := range props {
				row[len(baseColumns)+j] = propertyValue(e, p)
			}
			if err := app.AppendRow(row...); err != nil {
				return fmt.Errorf("append event %d: %w", i, err)
			}
		}
		return nil
	})
}

// propertyValue looks a property up by store column name; nil is NULL
func propertyValue(e *models.Event, column string) any {
	if v, ok := e.Property(column); ok {
		return v
	}
	return nil
}

// propertyNames is the sorted union of property names in the batch
func propertyNames(events []models.Event) []string {
	seen := make(map[string]bool)
	for i := range events {
		for k := range events[i].Properties {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// countDuplicateKeys counts rows whose key already occurred earlier in the batch
func countDuplicateKeys(events []models.Event) int {
	seen := make(map[models.EventKey]bool, len(events))
	dups := 0
	for i := range events {
		k := events[i].Key()
		if seen[k] {
			dups++
			continue
		}
		seen[k] = true
	}
	return dups
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
