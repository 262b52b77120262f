package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/harrison/searchflow/internal/config"
	"github.com/harrison/searchflow/internal/discovery"
	"github.com/harrison/searchflow/internal/ledger"
	"github.com/harrison/searchflow/internal/logger"
	"github.com/harrison/searchflow/internal/pipeline"
	"github.com/harrison/searchflow/internal/watch"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input-file]",
		Short: "Ingest telemetry and write analytics artifacts",
		Long: `Ingest search telemetry into the event store and rebuild every artifact.

Without arguments the newest input in the input directory is ingested,
judged by the _YYYY_MM_DD suffix of its file name (files without one use
their modification time). With a path only that file is ingested. With
--full-refresh the store is deleted and every discovered input is replayed
oldest first.

Every input is checked before the store is touched. Re-ingesting a file
replaces the rows it contributed earlier.

With --watch the run stays in the foreground after the first run and
ingests every input that lands in the input directory until interrupted.

Examples:
  searchflow run
  searchflow run input/search_events_2024_03_05.csv
  searchflow run --full-refresh --format csv
  searchflow run --timezone Europe/Berlin --log-level debug
  searchflow run --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().Bool("full-refresh", false, "Delete the store and reprocess every discovered input")
	cmd.Flags().Bool("watch", false, "Keep running and ingest new inputs as they appear")
	cmd.Flags().String("input-dir", "", "Directory scanned for input exports")
	cmd.Flags().String("output-dir", "", "Directory receiving the artifacts")
	cmd.Flags().String("data-dir", "", "Directory holding the event store")
	cmd.Flags().String("timezone", "", "IANA time zone deciding calendar dates and hours")
	cmd.Flags().String("format", "", "Export format: parquet or csv")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for run log files")

	return cmd
}

// stringFlag returns a pointer to the flag value when it was set
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg.MergeWithFlags(config.Flags{
		InputDir:  stringFlag(cmd, "input-dir"),
		OutputDir: stringFlag(cmd, "output-dir"),
		DataDir:   stringFlag(cmd, "data-dir"),
		Timezone:  stringFlag(cmd, "timezone"),
		Format:    stringFlag(cmd, "format"),
		LogLevel:  stringFlag(cmd, "log-level"),
		LogDir:    stringFlag(cmd, "log-dir"),
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sinks := []logger.Sink{logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)}
	if cfg.LogDir != "" {
		fileLogger, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLogger.Close()
		sinks = append(sinks, fileLogger)
	}
	log := logger.Multi(sinks...)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var history *ledger.Ledger
	if path := cfg.LedgerPath(); path != "" {
		history, err = ledger.Open(ctx, path)
		if err != nil {
			log.LogWarn(fmt.Sprintf("Run history disabled: %v", err))
			history = nil
		} else {
			defer history.Close()
		}
	}

	req := pipeline.Request{}
	req.FullRefresh, _ = cmd.Flags().GetBool("full-refresh")
	if len(args) == 1 {
		if req.FullRefresh {
			return fmt.Errorf("--full-refresh reprocesses every input and cannot be combined with a file")
		}
		req.Path = args[0]
	}

	p := pipeline.New(cfg, log, history)
	if watching, _ := cmd.Flags().GetBool("watch"); watching {
		return watchInputs(ctx, cfg.InputDir, p, log, req)
	}
	_, err = p.Run(ctx, req)
	return err
}

// watchInputs runs once, then ingests each input that settles in dir until
// ctx is cancelled. Failed runs are logged and watching continues.
func watchInputs(ctx context.Context, dir string, p *pipeline.Pipeline, log logger.Sink, first pipeline.Request) error {
	w, err := watch.New(dir, discovery.IsInput)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := p.Run(ctx, first); err != nil && !errors.Is(err, discovery.ErrNoInput) {
		log.LogWarn(fmt.Sprintf("Initial run failed: %v", err))
	}
	log.LogInfo(fmt.Sprintf("Watching %s for new inputs (Ctrl+C to stop)", w.Dir()))

	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Stopped watching")
			return nil
		case err := <-w.Errors():
			log.LogWarn(fmt.Sprintf("Watcher: %v", err))
		case path := <-w.Ready():
			log.LogInfo(fmt.Sprintf("New input %s", filepath.Base(path)))
			if _, err := p.Run(ctx, pipeline.Request{Path: path}); err != nil {
				log.LogWarn(fmt.Sprintf("Run for %s failed: %v", filepath.Base(path), err))
			}
		}
	}
}
