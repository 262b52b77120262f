package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/searchflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 5, 14, 7, 9, 120000000, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func event(offset time.Duration, user, session, name string, props map[string]string) models.Event {
	if props == nil {
		props = map[string]string{}
	}
	return models.Event{
		SourceFile: "events_2024_03_05.csv",
		Timestamp:  t0.Add(offset),
		UserID:     user,
		SessionID:  session,
		Name:       name,
		Properties: props,
	}
}

func sampleBatch() []models.Event {
	return []models.Event{
		event(0, "u1", "s1", "SEARCH_TRIGGERED", map[string]string{"CP_searchQuery": "Laptop"}),
		event(300*time.Millisecond, "u1", "s1", "SEARCH_RESULT_COUNT", map[string]string{"CP_totalResultCount": "0"}),
		event(2*time.Second, "u1", "s1", "RESULT_CLICK", nil),
		event(time.Second, "", "", "SEARCH_STARTED", nil),
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"in memory", func(t *testing.T) string { return "" }},
		{"file in nested directory", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "nested", FileName)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := Open(ctx, tt.path(t))
			require.NoError(t, err)
			defer s.Close()

			versions, err := s.AppliedVersions(ctx)
			require.NoError(t, err)
			require.Len(t, versions, len(migrations))
			assert.Equal(t, 1, versions[0].Version)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	versions, err := s.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, len(migrations))
}

func TestMergeIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res, err := s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, 4, res.BatchSize)
	assert.Zero(t, res.Collisions)
	assert.EqualValues(t, 4, res.Inserted)
	assert.EqualValues(t, 4, res.StoreSize)
	assert.Zero(t, res.InternalDuplicates)
	assert.Equal(t, []string{"CP_searchQuery", "CP_totalResultCount"}, res.NewColumns)

	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.EqualValues(t, i+1, e.Seq)
		assert.Equal(t, "b1", e.BatchID)
	}
	assert.Equal(t, "Laptop", events[0].Properties["CP_searchQuery"])
	assert.NotContains(t, events[0].Properties, "CP_totalResultCount")
	assert.True(t, t0.Equal(events[0].Timestamp))
	assert.Equal(t, "", events[3].UserID)
}

func TestMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)
	first, err := s.LoadEvents(ctx)
	require.NoError(t, err)

	res, err := s.Merge(ctx, "b2", sampleBatch())
	require.NoError(t, err)

	// NULL user and session ids collide with each other too
	assert.EqualValues(t, 4, res.Collisions)
	assert.EqualValues(t, 4, res.Inserted)
	assert.EqualValues(t, 4, res.StoreSize)
	assert.Empty(t, res.NewColumns)

	second, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
		assert.Equal(t, first[i].Properties, second[i].Properties)
		assert.Equal(t, "b2", second[i].BatchID)
		assert.Greater(t, second[i].Seq, first[len(first)-1].Seq)
	}
}

func TestMergeReplacesCollidingRowOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)

	update := []models.Event{
		event(300*time.Millisecond, "u1", "s1", "SEARCH_RESULT_COUNT", map[string]string{"CP_totalResultCount": "5", "page": "2"}),
	}
	res, err := s.Merge(ctx, "b2", update)
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.Collisions)
	assert.EqualValues(t, 4, res.StoreSize)
	assert.Equal(t, []string{"page"}, res.NewColumns)

	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 4)

	var found bool
	for _, e := range events {
		if e.Name == "SEARCH_RESULT_COUNT" {
			found = true
			assert.Equal(t, "5", e.Properties["CP_totalResultCount"])
			assert.Equal(t, "2", e.Properties["page"])
			assert.Equal(t, "b2", e.BatchID)
			continue
		}
		assert.Equal(t, "b1", e.BatchID)
		assert.NotContains(t, e.Properties, "page")
	}
	assert.True(t, found)
}

func TestMergeKeyUniqueness(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	batches := [][]models.Event{
		sampleBatch(),
		sampleBatch()[1:3],
		{event(5*time.Second, "u2", "s9", "SEARCH_TRIGGERED", nil), event(0, "u1", "s1", "SEARCH_TRIGGERED", nil)},
	}
	for i, b := range batches {
		_, err := s.Merge(ctx, string(rune('a'+i)), b)
		require.NoError(t, err)
	}

	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	seen := make(map[models.EventKey]bool)
	for _, e := range events {
		assert.False(t, seen[e.Key()], "duplicate key %+v", e.Key())
		seen[e.Key()] = true
	}
	assert.Len(t, events, 5)
}

func TestMergeInternalDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	batch := []models.Event{
		event(0, "u1", "s1", "SEARCH_TRIGGERED", map[string]string{"CP_searchQuery": "a"}),
		event(0, "u1", "s1", "SEARCH_TRIGGERED", map[string]string{"CP_searchQuery": "b"}),
	}
	res, err := s.Merge(ctx, "b1", batch)
	require.NoError(t, err)

	assert.Equal(t, 1, res.InternalDuplicates)
	assert.EqualValues(t, 2, res.StoreSize)
}

func TestMergeRejectsInvalidEvents(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Merge(context.Background(), "b1", []models.Event{{Name: "X"}})
	require.Error(t, err)
}

func TestMergeEmptyBatch(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Merge(context.Background(), "b1", nil)
	require.NoError(t, err)
	assert.Zero(t, res.StoreSize)
	assert.Zero(t, res.Inserted)
}

func TestReplaceFeaturesAndRebuildEnriched(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)
	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)

	term := "laptop"
	length := 6
	enriched := make([]models.EnrichedEvent, len(events))
	for i, e := range events {
		enriched[i] = models.EnrichedEvent{Event: e, Features: models.Features{
			SessionDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			SessionKey:    "2024-03-05_" + e.UserID + "_" + e.SessionID,
			EventOrder:    i + 1,
			ElapsedBucket: "First Event",
			SearchTerm:    &term,
			TermLength:    &length,
			EventWeekday:  "Tuesday",
			TimeOfDay:     "Afternoon",
		}}
	}

	require.NoError(t, s.ReplaceFeatures(ctx, enriched))
	require.NoError(t, s.RebuildEnriched(ctx))
	n, err := s.EnrichedCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	// Replacing again does not accumulate rows
	require.NoError(t, s.ReplaceFeatures(ctx, enriched[:2]))
	require.NoError(t, s.RebuildEnriched(ctx))
	n, err = s.EnrichedCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	cols, err := columns(ctx, s.db, enrichedTable)
	require.NoError(t, err)
	assert.Contains(t, cols, "CP_searchQuery")
	assert.Contains(t, cols, "active_search_term")
	assert.Equal(t, 1, countOf(cols, "ingest_seq"))
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if s == v {
			n++
		}
	}
	return n
}

func TestReplaceTableAndCopyTo(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	spec := TableSpec{Name: "export_daily", Columns: []ColumnDef{
		{Name: "date", Type: "DATE"},
		{Name: "searches", Type: "BIGINT"},
		{Name: "click_rate_pct", Type: "DOUBLE"},
	}}
	rows := [][]any{
		{time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), int64(3), 33.33},
		{time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), int64(0), nil},
	}
	require.NoError(t, s.ReplaceTable(ctx, spec, rows))

	counts, err := s.TableCounts(ctx)
	require.NoError(t, err)
	assert.Contains(t, counts, TableCount{Name: "export_daily", Rows: 2})

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "daily.csv")
	require.NoError(t, s.CopyTo(ctx, "export_daily", csvPath, FormatCSV))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "date,searches,click_rate_pct")
	assert.Contains(t, string(data), "2024-03-05,3,33.33")

	parquetPath := filepath.Join(dir, "daily.parquet")
	require.NoError(t, s.CopyTo(ctx, "export_daily", parquetPath, FormatParquet))
	data, err = os.ReadFile(parquetPath)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))

	err = s.ReplaceTable(ctx, spec, [][]any{{int64(1)}})
	require.Error(t, err)
}

func TestParseCopyFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    CopyFormat
		wantErr bool
	}{
		{"parquet", FormatParquet, false},
		{" CSV ", FormatCSV, false},
		{"json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCopyFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	now := time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC)

	t.Run("missing store", func(t *testing.T) {
		_, err := Recover(ctx, filepath.Join(dir, "missing.duckdb"), now)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.Merge(ctx, "b1", sampleBatch())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	t.Run("without WAL", func(t *testing.T) {
		os.Remove(WALPath(path))
		report, err := Recover(ctx, path, now)
		require.NoError(t, err)
		assert.False(t, report.WALPresent)
		assert.Empty(t, report.Backups)
	})

	t.Run("with WAL", func(t *testing.T) {
		require.NoError(t, os.WriteFile(WALPath(path), nil, 0644))
		report, err := Recover(ctx, path, now)
		require.NoError(t, err)

		assert.True(t, report.WALPresent)
		require.Len(t, report.Backups, 2)
		assert.Equal(t, filepath.Join(dir, BackupDirName, FileName+".20240306_093000.bak"), report.Backups[0])
		for _, b := range report.Backups {
			assert.FileExists(t, b)
		}
		assert.Contains(t, report.Tables, TableCount{Name: "events", Rows: 4})
		assert.Equal(t, migrations[len(migrations)-1].Version, report.SchemaVersion)
		assert.ElementsMatch(t, []string{"CP_searchQuery", "CP_totalResultCount"}, report.PropertyColumns)
	})
}
