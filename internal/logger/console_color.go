package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/searchflow/internal/models"
)

// colorScheme defines consistent colors for summary metrics.
// Green: success, Red: failure, Yellow: warnings, Cyan: labels.
// A disabled scheme renders plain text.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
	if !enabled {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label} {
			c.DisableColor()
		}
	}
	return s
}

// metric formats "label: value" with a colorized label
func (s *colorScheme) metric(label string, value interface{}) string {
	return fmt.Sprintf("%s: %v", s.label.Sprint(label), value)
}

// summaryLines renders a run summary as log lines
func summaryLines(r models.RunSummary, s *colorScheme) []string {
	status := s.success.Sprint(r.Status)
	if r.Status == models.StatusFailed {
		status = s.fail.Sprint(r.Status)
	}

	var inserted, collisions int64
	for _, b := range r.Batches {
		inserted += b.Inserted
		collisions += b.Collisions
	}

	lines := []string{
		"=== Run Summary ===",
		strings.Join([]string{
			s.metric("run", r.RunID),
			s.metric("mode", r.Mode),
			s.metric("status", status),
			s.metric("duration", formatDuration(r.Duration())),
		}, ", "),
		strings.Join([]string{
			s.metric("batches", len(r.Batches)),
			s.metric("inserted", inserted),
			s.metric("replaced", collisions),
			s.metric("store rows", r.StoreRows),
		}, ", "),
		strings.Join([]string{
			s.metric("sessions", r.Sessions),
			s.metric("days", r.Days),
			s.metric("terms", r.Terms),
		}, ", "),
	}

	if w := r.Warnings(); w > 0 {
		lines = append(lines, s.warn.Sprintf("warnings: %d", w))
	}
	for _, e := range r.FailedExports() {
		lines = append(lines, s.fail.Sprintf("export %s failed: %s", e.Artifact, e.Err))
	}
	if r.Error != "" {
		lines = append(lines, s.fail.Sprintf("error: %s", r.Error))
	}
	return lines
}
