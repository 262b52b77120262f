package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/filelock"
	"github.com/harrison/searchflow/internal/models"
)

// SummaryFile is written to the output directory after every run
const SummaryFile = "run_summary.md"

// Summary renders a run summary as markdown
func Summary(r models.RunSummary) string {
	var sb strings.Builder

	sb.WriteString("# Search Analytics Run Summary\n\n")
	table(&sb, []string{"Field", "Value"}, [][]string{
		{"Run", r.RunID},
		{"Mode", r.Mode},
		{"Status", r.Status},
		{"Started", r.StartedAt.UTC().Format(time.RFC3339)},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
		{"Store rows", fmt.Sprint(r.StoreRows)},
		{"Enriched rows", fmt.Sprint(r.EnrichedRows)},
		{"Sessions", fmt.Sprint(r.Sessions)},
		{"Days", fmt.Sprint(r.Days)},
		{"Terms", fmt.Sprint(r.Terms)},
	})

	if r.Error != "" {
		fmt.Fprintf(&sb, "\n**Error:** %s\n", escapeCell(r.Error))
	}

	if len(r.Batches) > 0 {
		sb.WriteString("\n## Batches\n\n")
		rows := make([][]string, len(r.Batches))
		for i, b := range r.Batches {
			date := "-"
			if b.FileDate != nil {
				date = b.FileDate.Format("2006-01-02")
			}
			rows[i] = []string{
				filepath.Base(b.SourceFile),
				date,
				fmt.Sprint(b.RowsRead),
				fmt.Sprint(b.RowsDropped),
				fmt.Sprint(b.Inserted),
				fmt.Sprint(b.Collisions),
				fmt.Sprint(b.InternalDuplicates),
				strings.Join(b.NewColumns, ", "),
			}
		}
		table(&sb, []string{"File", "Date", "Read", "Dropped", "Inserted", "Replaced", "Duplicates", "New columns"}, rows)
	}

	if len(r.Exports) > 0 {
		sb.WriteString("\n## Exports\n\n")
		rows := make([][]string, len(r.Exports))
		for i, e := range r.Exports {
			status := "ok"
			if e.Err != "" {
				status = "failed: " + e.Err
			}
			rows[i] = []string{e.Artifact, filepath.Base(e.Path), fmt.Sprint(e.Rows), status}
		}
		table(&sb, []string{"Artifact", "File", "Rows", "Status"}, rows)
	}

	var warnings []string
	for _, b := range r.Batches {
		for _, w := range b.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", filepath.Base(b.SourceFile), w))
		}
	}
	if len(warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}

	return sb.String()
}

// WriteSummary writes the markdown summary of r into dir
func WriteSummary(dir string, r models.RunSummary) (string, error) {
	path := filepath.Join(dir, SummaryFile)
	if err := filelock.AtomicWrite(path, []byte(Summary(r))); err != nil {
		return "", fmt.Errorf("write run summary: %w", err)
	}
	return path, nil
}

func table(sb *strings.Builder, header []string, rows [][]string) {
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	sb.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
