package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/searchflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), Memory)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
	}{
		{name: "in-memory", dbPath: Memory},
		{name: "creates parent directories", dbPath: filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l, err := Open(ctx, tt.dbPath)
			require.NoError(t, err)
			defer l.Close()

			for _, table := range []string{"runs", "batches", "exports", "schema_version"} {
				ok, err := l.tableExists(ctx, table)
				require.NoError(t, err)
				assert.True(t, ok, "table %s", table)
			}

			versions, err := l.AppliedVersions(ctx)
			require.NoError(t, err)
			require.Len(t, versions, len(migrations))
			assert.Equal(t, 1, versions[0].Version)
		})
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.ApplyMigrations(ctx))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()

	versions, err := l.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, len(migrations))
}

func summary(id string, started time.Time, status string) models.RunSummary {
	fileDate := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	return models.RunSummary{
		RunID:        id,
		Mode:         models.ModeNewest,
		Status:       status,
		StartedAt:    started,
		FinishedAt:   started.Add(4 * time.Second),
		StoreRows:    120,
		EnrichedRows: 120,
		Sessions:     9,
		Days:         2,
		Terms:        14,
		Batches: []models.BatchSummary{
			{
				BatchID:     id + "-b1",
				SourceFile:  "/in/searches_2024_03_05.csv",
				SHA256:      "abc",
				FileDate:    &fileDate,
				RowsRead:    100,
				RowsDropped: 2,
				Collisions:  10,
				Inserted:    98,
				NewColumns:  []string{"page", "tab"},
				StoreSize:   120,
				Warnings:    []string{"w1"},
			},
			{
				BatchID:    id + "-b2",
				SourceFile: "/in/manual.csv",
				SHA256:     "def",
				RowsRead:   5,
				Inserted:   5,
				StoreSize:  125,
			},
		},
		Exports: []models.ExportSummary{
			{Artifact: "searches_daily", Path: "/out/searches_daily.parquet", Rows: 2},
			{Artifact: "searches_terms", Path: "/out/searches_terms.parquet", Err: "disk full"},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	started := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)

	require.NoError(t, l.StartRun(ctx, "r1", models.ModeNewest, started))

	r, err := l.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, models.StatusRunning, r.Status)
	assert.Nil(t, r.FinishedAt)
	assert.Zero(t, r.Duration())

	require.NoError(t, l.FinishRun(ctx, summary("r1", started, models.StatusSucceeded)))

	r, err = l.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, r.Status)
	require.NotNil(t, r.FinishedAt)
	assert.Equal(t, 4*time.Second, r.Duration())
	assert.True(t, r.StartedAt.Equal(started))
	assert.EqualValues(t, 120, r.StoreRows)
	assert.Equal(t, 9, r.Sessions)
	assert.Equal(t, 14, r.Terms)
	assert.Equal(t, 1, r.Warnings)
	assert.Equal(t, 2, r.Batches)
	assert.EqualValues(t, 103, r.Inserted)
	assert.EqualValues(t, 10, r.Collisions)

	batches, err := l.RunBatches(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "r1-b1", batches[0].BatchID)
	require.NotNil(t, batches[0].FileDate)
	assert.Equal(t, "2024-03-05", batches[0].FileDate.Format("2006-01-02"))
	assert.Equal(t, []string{"page", "tab"}, batches[0].NewColumns)
	assert.Nil(t, batches[1].FileDate)
	assert.Nil(t, batches[1].NewColumns)
}

func TestFinishRunRequiresStart(t *testing.T) {
	l := openMemory(t)
	err := l.FinishRun(context.Background(), summary("ghost", time.Now(), models.StatusFailed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never started")
}

func TestGetRunMissing(t *testing.T) {
	l := openMemory(t)
	r, err := l.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRecentRunsAndPrune(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("r%d", i)
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, l.StartRun(ctx, id, models.ModeFullRefresh, started))
		require.NoError(t, l.FinishRun(ctx, summary(id, started, models.StatusSucceeded)))
	}

	runs, err := l.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	removed, err := l.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	runs, err = l.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	batches, err := l.RunBatches(ctx, "r0")
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestFindBatch(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.StartRun(ctx, "failed", models.ModeNewest, t0))
	require.NoError(t, l.FinishRun(ctx, summary("failed", t0, models.StatusFailed)))

	rec, err := l.FindBatch(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, rec, "failed runs do not count")

	require.NoError(t, l.StartRun(ctx, "ok", models.ModeNewest, t0.Add(time.Hour)))
	require.NoError(t, l.FinishRun(ctx, summary("ok", t0.Add(time.Hour), models.StatusSucceeded)))

	rec, err = l.FindBatch(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ok", rec.RunID)
	assert.Equal(t, "ok-b1", rec.BatchID)
	assert.Equal(t, "/in/searches_2024_03_05.csv", rec.SourceFile)
}
