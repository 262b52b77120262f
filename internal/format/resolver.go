package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/models"
)

// WarningKind classifies a non-fatal finding of the resolver
type WarningKind string

const (
	WarnConversion    WarningKind = "conversion"
	WarnPrecisionLoss WarningKind = "precision-loss"
	WarnZeroSubsecond WarningKind = "zero-subsecond"
	WarnShortRow      WarningKind = "short-row"
)

// Warning is an advisory finding about one column
type Warning struct {
	Column  string
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	if w.Column == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: column %q: %s", w.Kind, w.Column, w.Message)
}

// Report describes how an input file was read
type Report struct {
	Container Container
	Delimiter rune   // Delimited text only
	Sheet     string // Spreadsheets only
	Formats   map[string]models.TimeFormat
	Warnings  []Warning
}

func (r *Report) warn(column string, kind WarningKind, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{Column: column, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Options controls how values are interpreted
type Options struct {
	// Location applies to timestamps that carry no offset. Nil means UTC.
	Location *time.Location
}

// Read detects the container of path, loads its cells and resolves the
// temporal format of every column.
func Read(path string, opts Options) (*models.Batch, *Report, error) {
	container, err := DetectContainer(path)
	if err != nil {
		return nil, nil, err
	}

	var t *table
	switch container {
	case ContainerDelimited:
		t, err = readDelimited(path)
	case ContainerSpreadsheet:
		t, err = readSpreadsheet(path)
	}
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		Container: container,
		Delimiter: t.delimiter,
		Sheet:     t.sheet,
		Formats:   make(map[string]models.TimeFormat),
	}
	batch := toBatch(path, t, report)

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, col := range batch.Columns {
		resolveColumn(col, loc, report)
		report.Formats[col.Name] = col.Format
	}

	return batch, report, nil
}

// toBatch turns the cell grid into columns, padding short rows with NULL
func toBatch(path string, t *table, report *Report) *models.Batch {
	headers := uniqueHeaders(t.header)
	batch := &models.Batch{Source: path, Rows: len(t.rows)}
	for _, h := range headers {
		batch.Columns = append(batch.Columns, &models.Column{Name: h, Text: make([]string, len(t.rows))})
	}

	short, long := 0, 0
	for i, row := range t.rows {
		if len(row) < len(headers) {
			short++
		}
		if len(row) > len(headers) {
			long++
		}
		for j, col := range batch.Columns {
			if j >= len(row) {
				break
			}
			col.Text[i] = cell(row[j])
		}
	}

	if short > 0 {
		report.warn("", WarnShortRow, "%d rows had fewer fields than the header; missing cells are NULL", short)
	}
	if long > 0 {
		report.warn("", WarnShortRow, "%d rows had more fields than the header; extra cells were ignored", long)
	}
	return batch
}

// cell maps blank values to NULL
func cell(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

// resolveColumn infers and applies the temporal format of one column
func resolveColumn(col *models.Column, loc *time.Location, report *Report) {
	sample := ""
	for _, v := range col.Text {
		if v != "" {
			sample = v
			break
		}
	}
	if sample == "" {
		return
	}

	nameSuggests := SuggestsTimestamp(col.Name)
	format := DetectFormat(sample)

	switch {
	case format != models.FormatNone:
		times, failed, truncated := parseAllStrict(col.Text, format, loc)
		if failed == 0 {
			col.Format = format
			col.Times = times
			if truncated > 0 {
				report.warn(col.Name, WarnPrecisionLoss,
					"%d values had more than %d fractional digits and were truncated", truncated, maxFractionDigits)
			}
			break
		}
		if !nameSuggests {
			report.warn(col.Name, WarnConversion,
				"%d values do not match %s; column kept as text", failed, format)
			return
		}
		report.warn(col.Name, WarnConversion,
			"%d values do not match %s; falling back to permissive parsing", failed, format)
		if !applyPermissive(col, loc, report) {
			return
		}
	case nameSuggests:
		if !applyPermissive(col, loc, report) {
			return
		}
	default:
		return
	}

	if isEventTimestamp(col.Name) && col.Format != models.FormatISODate && zeroSubsecond(col.Times) {
		report.warn(col.Name, WarnZeroSubsecond,
			"no value has a sub-second component; events within one second cannot be ordered by time")
	}
}

// parseAllStrict parses every non-NULL value with one strict format
func parseAllStrict(values []string, format models.TimeFormat, loc *time.Location) (times []time.Time, failed, truncated int) {
	times = make([]time.Time, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		t, trunc, err := ParseStrict(format, v, loc)
		if err != nil {
			failed++
			continue
		}
		if trunc {
			truncated++
		}
		times[i] = t
	}
	return times, failed, truncated
}

// applyPermissive converts the column with NULL for every failed cell.
// A column where nothing parses stays text.
func applyPermissive(col *models.Column, loc *time.Location, report *Report) bool {
	times := make([]time.Time, len(col.Text))
	parsed, failed, truncated := 0, 0, 0
	for i, v := range col.Text {
		if v == "" {
			continue
		}
		t, trunc, ok := ParsePermissive(v, loc)
		if !ok {
			failed++
			continue
		}
		if trunc {
			truncated++
		}
		times[i] = t
		parsed++
	}

	if parsed == 0 {
		report.warn(col.Name, WarnConversion, "no value could be parsed as a timestamp; column kept as text")
		return false
	}

	col.Format = models.FormatPermissive
	col.Times = times
	if failed > 0 {
		report.warn(col.Name, WarnConversion, "%d values could not be parsed and are NULL", failed)
	}
	if truncated > 0 {
		report.warn(col.Name, WarnPrecisionLoss,
			"%d values had more than %d fractional digits and were truncated", truncated, maxFractionDigits)
	}
	return true
}

// isEventTimestamp matches the event timestamp column before and after
// alias normalization ("timestamp", "timestamp [UTC]", ...)
func isEventTimestamp(name string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "timestamp")
}

// zeroSubsecond reports whether more than one value is present and none has
// a sub-second component
func zeroSubsecond(times []time.Time) bool {
	n := 0
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		if t.Nanosecond() != 0 {
			return false
		}
		n++
	}
	return n > 1
}
