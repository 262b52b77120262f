package store

import (
	"context"
	"fmt"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/harrison/searchflow/internal/models"
)

// ReplaceFeatures swaps the derived feature rows for a freshly computed set
func (s *Store) ReplaceFeatures(ctx context.Context, enriched []models.EnrichedEvent) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM event_features"); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}

	return s.appendRows(featuresTable, func(app *duckdb.Appender) error {
		for i := range enriched {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := &enriched[i]
			f := &e.Features
			err := app.AppendRow(
				e.Seq,
				f.SessionDate,
				f.SessionKey,
				int64(f.EventOrder),
				nullString(f.PrevEvent),
				nullTime(f.PrevTimestamp),
				nullInt64(f.MsSincePrev),
				nullFloat(f.SecSincePrev),
				f.ElapsedBucket,
				int64(f.ElapsedSort),
				nullString(f.SearchTerm),
				nullInt(f.TermLength),
				int64(f.TermWordCount),
				nullString(f.ActiveTerm),
				nullInt64(f.MsSinceSearch),
				int64(f.EventHour),
				f.EventWeekday,
				int64(f.EventWeekdayNum),
				f.TimeOfDay,
				nullInt64(f.ResultCount),
				nullBool(f.IsNullResult),
				nullString(f.ClickCategory),
				f.IsSuccessClick,
				nullBool(f.IsFirstOfDay),
			)
			if err != nil {
				return fmt.Errorf("append features of event %d: %w", e.Seq, err)
			}
		}
		return nil
	})
}

// RebuildEnriched recreates the enriched table as events joined with their
// features, ordered by session and position
func (s *Store) RebuildEnriched(ctx context.Context) error {
	query := `CREATE OR REPLACE TABLE events_enriched AS
    SELECT e.*, f.* EXCLUDE (ingest_seq)
    FROM events e JOIN event_features f USING (ingest_seq)
    ORDER BY f.session_key, f.event_order`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("rebuild %s: %w", enrichedTable, err)
	}
	return nil
}

// EnrichedCount returns the number of rows in the enriched table
func (s *Store) EnrichedCount(ctx context.Context) (int64, error) {
	return s.countRows(ctx, enrichedTable)
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
