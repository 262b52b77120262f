package cmd

import (
	"fmt"

	"github.com/harrison/searchflow/internal/config"
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for searchflow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchflow",
		Short: "Search telemetry ingestion and analytics pipeline",
		Long: `Searchflow ingests daily search telemetry exports into a deduplicated
DuckDB event store, derives per-event session features and writes daily,
journey and term analytics as Parquet or CSV artifacts.

Configuration is loaded from .searchflow/config.yaml in the project
directory if present. CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .searchflow/config.yaml)")
	cmd.PersistentFlags().String("project-dir", "", "Project directory relative paths resolve against (default: $SEARCHFLOW_HOME or the working directory)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewRecoverCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewRunsCommand())

	return cmd
}

// loadConfig reads the configuration selected by the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	projectDir, err := config.ProjectDir(flagValue(cmd, "project-dir"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(projectDir, flagValue(cmd, "config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// flagValue looks a flag up on the command and its parents
func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
