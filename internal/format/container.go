package format

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedContainer is returned for files that are neither delimited
// text nor an Office Open XML spreadsheet.
var ErrUnsupportedContainer = errors.New("unsupported input container")

// Container is the physical encoding of an input file
type Container int

const (
	ContainerUnknown Container = iota
	ContainerDelimited
	ContainerSpreadsheet
)

func (c Container) String() string {
	switch c {
	case ContainerDelimited:
		return "delimited"
	case ContainerSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// candidate delimiters in sniffing priority order
var delimiters = []rune{',', ';', '\t', '|'}

// DetectContainer decides how path must be read. The file magic takes
// precedence over the extension.
func DetectContainer(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ContainerUnknown, fmt.Errorf("read input header: %w", err)
	}
	head = head[:n]

	if bytes.Equal(head, zipMagic) {
		return ContainerSpreadsheet, nil
	}
	if bytes.Equal(head, oleMagic) {
		return ContainerUnknown, fmt.Errorf("%s: legacy binary spreadsheet: %w", filepath.Base(path), ErrUnsupportedContainer)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return ContainerDelimited, nil
	case ".xlsx", ".xlsm":
		// Extension claims a spreadsheet but the magic disagrees
		return ContainerUnknown, fmt.Errorf("%s: not a valid spreadsheet: %w", filepath.Base(path), ErrUnsupportedContainer)
	default:
		return ContainerUnknown, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedContainer)
	}
}

// table is the raw cell grid of an input file
type table struct {
	header    []string
	rows      [][]string
	delimiter rune
	sheet     string
}

// readDelimited loads a delimited text file
func readDelimited(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	delim := sniffDelimiter(data)
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited input: %w", err)
	}
	if len(records) == 0 {
		return &table{delimiter: delim}, nil
	}
	return &table{header: records[0], rows: records[1:], delimiter: delim}, nil
}

// sniffDelimiter picks the candidate that occurs most often in the header
// line outside quotes. Ties resolve to the earlier candidate.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// readSpreadsheet loads the first sheet of a workbook using formatted cell
// values. Date formatted numbers are the exception: their display text
// drops seconds, so they are read as serials and rendered as ISO text.
func readSpreadsheet(path string) (*table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", filepath.Base(path))
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if err := restoreDates(f, sheet, rows, raw); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	t := &table{sheet: sheet}
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if t.header == nil {
			t.header = row
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// serialLayout renders restored dates; it carries no offset so the source
// time zone applies
const serialLayout = "2006-01-02T15:04:05.000"

// restoreDates replaces the display text of date formatted numeric cells
// with the full precision value of their serial
func restoreDates(f *excelize.File, sheet string, rows, raw [][]string) error {
	date1904 := false
	props, err := f.GetWorkbookProps()
	if err != nil {
		return err
	}
	if props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	styles := dateStyles{f: f, known: make(map[int]bool)}
	for r, row := range rows {
		if r >= len(raw) {
			break
		}
		for c := range row {
			if c >= len(raw[r]) || raw[r][c] == row[c] {
				continue
			}
			serial, err := strconv.ParseFloat(raw[r][c], 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if !styles.isDate(sheet, cell) {
				continue
			}
			wall, ok := excelSerialTime(serial, date1904)
			if !ok {
				continue
			}
			row[c] = wall.Format(serialLayout)
		}
	}
	return nil
}

// dateStyles caches, per style id, whether a style shows numbers as dates
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d *dateStyles) isDate(sheet, cell string) bool {
	id, err := d.f.GetCellStyle(sheet, cell)
	if err != nil {
		return false
	}
	if v, ok := d.known[id]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			v = isDateFormatCode(*style.CustomNumFmt)
		} else {
			v = isBuiltInDateFormat(style.NumFmt)
		}
	}
	d.known[id] = v
	return v
}

// isBuiltInDateFormat matches the built-in number format ids for dates and
// times, including the locale specific ranges
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 45 && id <= 47:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	return false
}

var (
	quotedLiteral  = regexp.MustCompile(`"[^"]*"`)
	bracketSection = regexp.MustCompile(`\[[^\]]*\]`)
	escapedChar    = regexp.MustCompile(`\\.`)
)

// isDateFormatCode reports whether a custom number format renders date or
// time parts. Literals, colors and locale tags are ignored.
func isDateFormatCode(code string) bool {
	section := strings.SplitN(code, ";", 2)[0]
	section = quotedLiteral.ReplaceAllString(section, "")
	section = bracketSection.ReplaceAllString(section, "")
	section = escapedChar.ReplaceAllString(section, "")
	return strings.ContainsAny(strings.ToLower(section), "ydhms")
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// uniqueHeaders trims header names, names blank ones column_N and suffixes
// repeats with _2, _3 and so on.
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for seen[name] > 0 {
			seen[base]++
			name = fmt.Sprintf("%s_%d", base, seen[base])
		}
		seen[name]++
		out[i] = name
	}
	return out
}
