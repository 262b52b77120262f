package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harrison/searchflow/internal/models"
)

// PropertyColumns lists the property columns of the event table in table order
func (s *Store) PropertyColumns(ctx context.Context) ([]string, error) {
	cols, err := columns(ctx, s.db, eventsTable)
	if err != nil {
		return nil, err
	}
	return cols[len(baseColumns):], nil
}

// LoadEvents reads every stored event in arrival order
func (s *Store) LoadEvents(ctx context.Context) ([]models.Event, error) {
	cols, err := columns(ctx, s.db, eventsTable)
	if err != nil {
		return nil, err
	}
	props := cols[len(baseColumns):]

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM events ORDER BY ingest_seq", strings.Join(quoted, ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var (
		events     []models.Event
		batchID    sql.NullString
		sourceFile sql.NullString
		ingestedAt sql.NullTime
		userID     sql.NullString
		sessionID  sql.NullString
		propVals   = make([]sql.NullString, len(props))
	)
	for rows.Next() {
		var e models.Event
		dest := []any{&e.Seq, &batchID, &sourceFile, &ingestedAt, &e.Timestamp, &userID, &sessionID, &e.Name}
		for i := range propVals {
			dest = append(dest, &propVals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.BatchID = batchID.String
		e.SourceFile = sourceFile.String
		e.Timestamp = e.Timestamp.UTC()
		e.UserID = userID.String
		e.SessionID = sessionID.String
		e.Properties = make(map[string]string)
		for i, p := range props {
			if propVals[i].Valid {
				e.Properties[p] = propVals[i].String
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
