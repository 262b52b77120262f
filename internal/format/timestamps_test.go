package format

import (
	"testing"
	"time"

	"github.com/harrison/searchflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   models.TimeFormat
	}{
		{"dotted date only", "05.03.2024", models.FormatDottedDMY},
		{"dotted minutes", "05.03.2024 14:07", models.FormatDottedDMY},
		{"dotted with fraction", "05.03.2024 14:07:09.123", models.FormatDottedDMY},
		{"dotted comma fraction", "05.03.2024 14:07:09,5", models.FormatDottedDMY},
		{"slashed", "05/03/2024 14:07:09", models.FormatSlashedDMY},
		{"slashed with fraction", "05/03/2024 14:07:09.250", models.FormatSlashedDMY},
		{"iso T", "2024-03-05T14:07:09", models.FormatISOT},
		{"iso T zulu fraction", "2024-03-05T14:07:09.123456Z", models.FormatISOT},
		{"iso T offset", "2024-03-05T14:07:09+01:00", models.FormatISOT},
		{"iso space", "2024-03-05 14:07:09.5", models.FormatISOSpace},
		{"iso date", "2024-03-05", models.FormatISODate},
		{"surrounding spaces", "  2024-03-05  ", models.FormatISODate},
		{"slashed without seconds", "05/03/2024 14:07", models.FormatNone},
		{"plain text", "laptop stand", models.FormatNone},
		{"number", "1709647629", models.FormatNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.sample))
		})
	}
}

func TestParseStrict(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name      string
		format    models.TimeFormat
		value     string
		loc       *time.Location
		want      time.Time
		truncated bool
		wantErr   bool
	}{
		{
			name:   "dotted is day first",
			format: models.FormatDottedDMY,
			value:  "05.03.2024 14:07:09",
			loc:    time.UTC,
			want:   time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
		},
		{
			name:   "slashed is day first",
			format: models.FormatSlashedDMY,
			value:  "12/01/2024 08:00:00.25",
			loc:    time.UTC,
			want:   time.Date(2024, 1, 12, 8, 0, 0, 250000000, time.UTC),
		},
		{
			name:   "naive value uses source location",
			format: models.FormatISOSpace,
			value:  "2024-07-01 10:00:00",
			loc:    berlin,
			want:   time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:   "offset wins over source location",
			format: models.FormatISOT,
			value:  "2024-07-01T10:00:00-0230",
			loc:    berlin,
			want:   time.Date(2024, 7, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:      "nanoseconds truncated to micros",
			format:    models.FormatISOT,
			value:     "2024-07-01T10:00:00.123456789Z",
			loc:       time.UTC,
			want:      time.Date(2024, 7, 1, 10, 0, 0, 123456000, time.UTC),
			truncated: true,
		},
		{
			name:   "date only is midnight",
			format: models.FormatISODate,
			value:  "2024-02-29",
			loc:    time.UTC,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "impossible date",
			format:  models.FormatISODate,
			value:   "2023-02-29",
			loc:     time.UTC,
			wantErr: true,
		},
		{
			name:    "month out of range",
			format:  models.FormatDottedDMY,
			value:   "01.13.2024",
			loc:     time.UTC,
			wantErr: true,
		},
		{
			name:    "wrong pattern",
			format:  models.FormatISODate,
			value:   "05.03.2024",
			loc:     time.UTC,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated, err := ParseStrict(tt.format, tt.value, tt.loc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestParsePermissive(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
		ok    bool
	}{
		{"strict pattern first", "05.03.2024 14:07", time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC), true},
		{"slashed minutes", "05/03/2024 14:07", time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC), true},
		{"iso minutes", "2024-03-05 14:07", time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC), true},
		{"month name", "5 Mar 2024 14:07:09", time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), true},
		{"epoch seconds", "1709647629", time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), true},
		{"epoch millis", "1709647629500", time.Date(2024, 3, 5, 14, 7, 9, 500000000, time.UTC), true},
		{"excel serial", "45356.5", time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), true},
		{"excel serial keeps millis", "45306.4376428819", time.Date(2024, 1, 15, 10, 30, 12, 345_000_000, time.UTC), true},
		{"garbage", "not a time", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"negative number", "-3", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := ParsePermissive(tt.value, time.UTC)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestSuggestsTimestamp(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"timestamp", true},
		{"timestamp [UTC]", true},
		{"EventTime", true},
		{"date", true},
		{"created_at", true},
		{"CP_searchQuery", false},
		{"user_id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestsTimestamp(tt.name))
		})
	}
}
