package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/searchflow/internal/ledger"
	"github.com/harrison/searchflow/internal/models"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show the run history",
		Long: `List recent pipeline runs recorded in the run ledger, newest first.

With a run id the batches that run merged are shown. --prune keeps only the
newest N runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRuns,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	cmd.Flags().Int("prune", 0, "Delete all but the newest N runs")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	dbPath := cfg.LedgerPath()
	if dbPath == "" {
		return fmt.Errorf("run history is disabled (ledger.enabled: false)")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No runs recorded yet\n")
		fmt.Fprintf(out, "Database path: %s\n", dbPath)
		return nil
	}

	history, err := ledger.Open(cmd.Context(), dbPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer history.Close()

	if cmd.Flags().Changed("prune") {
		keep, _ := cmd.Flags().GetInt("prune")
		if keep < 0 {
			return fmt.Errorf("--prune must not be negative")
		}
		removed, err := history.Prune(cmd.Context(), keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s)\n", removed)
		return nil
	}

	if len(args) == 1 {
		return showRun(cmd, history, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := history.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded yet\n")
		return nil
	}
	printRuns(out, runs)
	return nil
}

func statusColor(status string) *color.Color {
	switch status {
	case models.StatusSucceeded:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func printRuns(w io.Writer, runs []*ledger.Run) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "%-36s  %-19s  %-12s  %-9s  %8s  %8s  %8s  %s\n",
		"RUN", "STARTED", "MODE", "STATUS", "BATCHES", "INSERTED", "ROWS", "DURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %-12s  ", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Mode)
		statusColor(r.Status).Fprintf(w, "%-9s", r.Status)
		fmt.Fprintf(w, "  %8d  %8d  %8d  %s\n", r.Batches, r.Inserted, r.StoreRows, r.Duration().Round(time.Millisecond))
	}
}

func showRun(cmd *cobra.Command, history *ledger.Ledger, id string) error {
	run, err := history.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	batches, err := history.RunBatches(cmd.Context(), id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "=== Run %s ===\n", run.ID)
	fmt.Fprintf(w, "  Mode: %s\n", run.Mode)
	fmt.Fprintf(w, "  Status: ")
	statusColor(run.Status).Fprintf(w, "%s\n", run.Status)
	fmt.Fprintf(w, "  Started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  Duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Store rows: %d, enriched rows: %d\n", run.StoreRows, run.EnrichedRows)
	fmt.Fprintf(w, "  Sessions: %d, days: %d, terms: %d, warnings: %d\n", run.Sessions, run.Days, run.Terms, run.Warnings)
	if run.Error != "" {
		color.New(color.FgRed).Fprintf(w, "  Error: %s\n", run.Error)
	}

	if len(batches) > 0 {
		fmt.Fprintf(w, "\n")
		cyan.Fprintf(w, "Batches:\n")
		for _, b := range batches {
			fmt.Fprintf(w, "  %s: read %d, dropped %d, inserted %d, replaced %d\n",
				filepath.Base(b.SourceFile), b.RowsRead, b.RowsDropped, b.Inserted, b.Collisions)
		}
	}
	return nil
}
