package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/models"
	"github.com/xuri/excelize/v2"
)

// maxFractionDigits is the finest sub-second precision the event store keeps
const maxFractionDigits = 6

// timePattern is one strict, anchored timestamp encoding. The patterns are
// mutually exclusive: no value can match more than one of them.
type timePattern struct {
	format models.TimeFormat
	re     *regexp.Regexp
	parts  func(m []string) timeParts
}

// timeParts are the captured fields of a strict match
type timeParts struct {
	year, month, day  string
	hour, minute, sec string
	fraction, zone    string
}

var patterns = []timePattern{
	{
		format: models.FormatDottedDMY,
		re:     regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})(?: (\d{2}):(\d{2})(?::(\d{2})(?:[.,](\d+))?)?)?$`),
		parts: func(m []string) timeParts {
			return timeParts{day: m[1], month: m[2], year: m[3], hour: m[4], minute: m[5], sec: m[6], fraction: m[7]}
		},
	},
	{
		format: models.FormatSlashedDMY,
		re:     regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4}) (\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?$`),
		parts: func(m []string) timeParts {
			return timeParts{day: m[1], month: m[2], year: m[3], hour: m[4], minute: m[5], sec: m[6], fraction: m[7]}
		},
	},
	{
		format: models.FormatISOT,
		re:     regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?(Z|[+-]\d{2}:?\d{2})?$`),
		parts: func(m []string) timeParts {
			return timeParts{year: m[1], month: m[2], day: m[3], hour: m[4], minute: m[5], sec: m[6], fraction: m[7], zone: m[8]}
		},
	},
	{
		format: models.FormatISOSpace,
		re:     regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2}) (\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?$`),
		parts: func(m []string) timeParts {
			return timeParts{year: m[1], month: m[2], day: m[3], hour: m[4], minute: m[5], sec: m[6], fraction: m[7]}
		},
	},
	{
		format: models.FormatISODate,
		re:     regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`),
		parts: func(m []string) timeParts {
			return timeParts{year: m[1], month: m[2], day: m[3]}
		},
	},
}

// permissiveLayouts are tried in order when no strict pattern applies
var permissiveLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"02/01/2006 15:04",
	"02/01/2006",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04",
	"01-02-06 15:04",
	"01-02-06",
	"2-Jan-2006 15:04:05",
	"2-Jan-2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

// DetectFormat matches a sampled value against the strict pattern list and
// returns the first format that applies, or FormatNone.
func DetectFormat(sample string) models.TimeFormat {
	sample = strings.TrimSpace(sample)
	for _, p := range patterns {
		if p.re.MatchString(sample) {
			return p.format
		}
	}
	return models.FormatNone
}

// ParseStrict parses value with the given strict format. Values without a
// zone are interpreted in loc. truncated reports that sub-second digits
// beyond microseconds were dropped.
func ParseStrict(format models.TimeFormat, value string, loc *time.Location) (t time.Time, truncated bool, err error) {
	value = strings.TrimSpace(value)
	for _, p := range patterns {
		if p.format != format {
			continue
		}
		m := p.re.FindStringSubmatch(value)
		if m == nil {
			return time.Time{}, false, fmt.Errorf("value %q does not match %s", value, format)
		}
		return buildTime(p.parts(m), loc)
	}
	return time.Time{}, false, fmt.Errorf("unknown strict format %q", format)
}

// ParsePermissive tries every strict pattern, a wide list of layouts and
// numeric encodings (Excel serial days, Unix seconds or milliseconds).
// ok is false when nothing applies.
func ParsePermissive(value string, loc *time.Location) (t time.Time, truncated bool, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}

	if format := DetectFormat(value); format != models.FormatNone {
		t, truncated, err := ParseStrict(format, value, loc)
		if err == nil {
			return t, truncated, true
		}
	}

	for _, layout := range permissiveLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed.UTC(), false, true
		}
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return fromNumber(f, loc)
	}

	return time.Time{}, false, false
}

// fromNumber interprets a numeric cell by magnitude. Excel serials are
// wall-clock values and are read in loc; epoch values are absolute.
func fromNumber(f float64, loc *time.Location) (time.Time, bool, bool) {
	switch {
	case f >= 1e11:
		return time.UnixMilli(int64(f)).UTC(), false, true
	case f >= 1e9:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC().Truncate(time.Microsecond), false, true
	case f >= 1 && f < 1e6:
		wall, ok := excelSerialTime(f, false)
		if !ok {
			return time.Time{}, false, false
		}
		return inLocation(wall, loc).UTC(), false, true
	default:
		return time.Time{}, false, false
	}
}

var (
	excel1900Epoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	excel1904Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

// excelSerialTime converts a serial day number to its wall-clock time,
// returned with UTC fields. Excel stores milliseconds, so the fraction is
// rounded to the nearest one.
func excelSerialTime(serial float64, date1904 bool) (time.Time, bool) {
	if serial < 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	epoch := excel1904Epoch
	if !date1904 {
		if serial < 61 {
			// 1900 system before March 1900, including its phantom leap day
			t, err := excelize.ExcelDateToTime(serial, false)
			return t, err == nil
		}
		epoch = excel1900Epoch
	}
	days := math.Floor(serial)
	ms := math.Round((serial - days) * 24 * 60 * 60 * 1000)
	return epoch.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond), true
}

// inLocation reads the wall clock of t in loc
func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// buildTime validates the captured fields and assembles the instant
func buildTime(p timeParts, loc *time.Location) (time.Time, bool, error) {
	year, _ := strconv.Atoi(p.year)
	month, _ := strconv.Atoi(p.month)
	day, _ := strconv.Atoi(p.day)
	hour := atoiOrZero(p.hour)
	minute := atoiOrZero(p.minute)
	sec := atoiOrZero(p.sec)

	if month < 1 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false, fmt.Errorf("field out of range")
	}

	truncated := false
	fraction := p.fraction
	if len(fraction) > maxFractionDigits {
		fraction = fraction[:maxFractionDigits]
		truncated = true
	}
	nanos := 0
	if fraction != "" {
		padded := fraction + strings.Repeat("0", 9-len(fraction))
		nanos, _ = strconv.Atoi(padded)
	}

	zoneLoc := loc
	if p.zone != "" {
		z, err := parseZone(p.zone)
		if err != nil {
			return time.Time{}, false, err
		}
		zoneLoc = z
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, nanos, zoneLoc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false, fmt.Errorf("invalid calendar date %s-%s-%s", p.year, p.month, p.day)
	}
	return t.UTC(), truncated, nil
}

// parseZone converts Z, ±hh:mm or ±hhmm into a location
func parseZone(zone string) (*time.Location, error) {
	if zone == "Z" {
		return time.UTC, nil
	}
	sign := 1
	if zone[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(zone[1:], ":", "")
	if len(digits) != 4 {
		return nil, fmt.Errorf("invalid zone offset %q", zone)
	}
	hh, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, err
	}
	mm, err := strconv.Atoi(digits[2:])
	if err != nil {
		return nil, err
	}
	return time.FixedZone(zone, sign*(hh*3600+mm*60)), nil
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// SuggestsTimestamp reports whether a column name looks temporal
func SuggestsTimestamp(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.Contains(n, "timestamp") ||
		strings.Contains(n, "time") ||
		strings.Contains(n, "date") ||
		strings.HasSuffix(n, "_at")
}
