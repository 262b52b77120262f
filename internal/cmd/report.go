package cmd

import (
	"fmt"

	"github.com/harrison/searchflow/internal/report"
	"github.com/spf13/cobra"
)

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <input.md> [output.html]",
		Short: "Prepare a markdown report for sharing",
		Long: `Remove text diagrams from a markdown report and render it to HTML.

Fenced code blocks containing box-drawing characters are stripped; other
code blocks are kept. The cleaned markdown is written next to the input as
<name>.clean.md and rendered to output.html (default: <name>.html) with
styled tables. The input file is not modified.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runReport,
	}
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	output := ""
	if len(args) == 2 {
		output = args[1]
	}

	conv, err := report.Convert(args[0], output)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cleaned markdown: %s (%d bytes of diagrams removed)\n", conv.CleanedPath, conv.Removed)
	fmt.Fprintf(out, "HTML report: %s\n", conv.HTMLPath)
	return nil
}
