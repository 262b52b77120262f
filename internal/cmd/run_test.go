package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/searchflow/internal/config"
	"github.com/harrison/searchflow/internal/discovery"
	"github.com/harrison/searchflow/internal/export"
	"github.com/harrison/searchflow/internal/ledger"
	"github.com/harrison/searchflow/internal/logger"
	"github.com/harrison/searchflow/internal/models"
	"github.com/harrison/searchflow/internal/pipeline"
	"github.com/harrison/searchflow/internal/report"
	"github.com/harrison/searchflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandNewest(t *testing.T) {
	dir := newProject(t)

	out, err := executeCommand(t, "run", "--project-dir", dir, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Starting ingest")
	assert.Contains(t, out, "=== Run Summary ===")

	for _, artifact := range export.Artifacts {
		assert.FileExists(t, filepath.Join(dir, "output", artifact+".csv"))
	}
	assert.FileExists(t, filepath.Join(dir, "output", report.SummaryFile))
	assert.FileExists(t, filepath.Join(dir, "data", store.FileName))
	assert.FileExists(t, filepath.Join(dir, ".searchflow", "logs", "latest.log"))

	history, err := ledger.Open(context.Background(), filepath.Join(dir, "data", "ledger.db"))
	require.NoError(t, err)
	defer history.Close()
	runs, err := history.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.StatusSucceeded, runs[0].Status)
	assert.Equal(t, models.ModeNewest, runs[0].Mode)
}

func TestRunCommandFlagsOverrideConfig(t *testing.T) {
	dir := newProject(t)
	outDir := filepath.Join(t.TempDir(), "artifacts")
	dataDir := filepath.Join(t.TempDir(), "state")

	_, err := executeCommand(t, "run", "--project-dir", dir,
		"--output-dir", outDir, "--data-dir", dataDir, "--log-level", "warn", "--timezone", "America/New_York")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, export.Daily+".parquet"))
	assert.FileExists(t, filepath.Join(dataDir, store.FileName))
	assert.NoDirExists(t, filepath.Join(dir, "output"))
}

func TestRunCommandExplicitFile(t *testing.T) {
	dir := newProject(t)
	other := filepath.Join(t.TempDir(), "adhoc.csv")
	require.NoError(t, os.WriteFile(other, []byte(sampleCSV), 0644))

	out, err := executeCommand(t, "run", "--project-dir", dir, "--format", "csv", other)
	require.NoError(t, err)
	assert.Contains(t, out, "adhoc.csv")
}

func TestRunCommandFullRefresh(t *testing.T) {
	dir := newProject(t)
	_, err := executeCommand(t, "run", "--project-dir", dir, "--full-refresh", "--format", "csv")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "output", export.Raw+".csv"))
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(dir string) []string
		want string
	}{
		{
			name: "no input",
			args: func(dir string) []string {
				return []string{"run", "--project-dir", dir, "--input-dir", filepath.Join(dir, "empty")}
			},
			want: discovery.ErrNoInput.Error(),
		},
		{
			name: "invalid format",
			args: func(dir string) []string { return []string{"run", "--project-dir", dir, "--format", "xml"} },
			want: "invalid format",
		},
		{
			name: "invalid timezone",
			args: func(dir string) []string { return []string{"run", "--project-dir", dir, "--timezone", "Nowhere/City"} },
			want: "timezone",
		},
		{
			name: "file with full refresh",
			args: func(dir string) []string { return []string{"run", "--project-dir", dir, "--full-refresh", "x.csv"} },
			want: "cannot be combined",
		},
		{
			name: "too many files",
			args: func(dir string) []string { return []string{"run", "--project-dir", dir, "a.csv", "b.csv"} },
			want: "accepts at most 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t)
			_, err := executeCommand(t, tt.args(dir)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWatchInputs(t *testing.T) {
	dir := newProject(t)
	cfg := config.DefaultConfig()
	cfg.Format = "csv"
	cfg.LogDir = ""
	cfg.Ledger.Enabled = false
	cfg.Resolve(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.NewNoOpLogger()
	done := make(chan error, 1)
	go func() {
		done <- watchInputs(ctx, cfg.InputDir, pipeline.New(cfg, log, nil), log, pipeline.Request{})
	}()

	summaryPath := filepath.Join(cfg.OutputDir, report.SummaryFile)
	summaryMentions := func(name string) bool {
		data, err := os.ReadFile(summaryPath)
		return err == nil && strings.Contains(string(data), name)
	}
	require.Eventually(t, func() bool { return summaryMentions("search_events_2024_03_05.csv") },
		15*time.Second, 50*time.Millisecond)

	next := strings.ReplaceAll(sampleCSV, "2024-03-05", "2024-03-06")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "search_events_2024_03_06.csv"), []byte(next), 0644))
	require.Eventually(t, func() bool { return summaryMentions("search_events_2024_03_06.csv") },
		15*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
