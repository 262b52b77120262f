package schema

import (
	"testing"
	"time"

	"github.com/harrison/searchflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textColumn(name string, values ...string) *models.Column {
	return &models.Column{Name: name, Text: values}
}

func timeColumn(name string, times ...time.Time) *models.Column {
	text := make([]string, len(times))
	for i, t := range times {
		if !t.IsZero() {
			text[i] = t.Format(time.RFC3339)
		}
	}
	return &models.Column{Name: name, Format: models.FormatISOT, Text: text, Times: times}
}

func TestCanonicalFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"user_id", models.ColUserID},
		{"userId", models.ColUserID},
		{"user_Id", models.ColUserID},
		{"USERID", models.ColUserID},
		{"sessionId", models.ColSessionID},
		{"Session_ID", models.ColSessionID},
		{"Name", models.ColName},
		{"event_name", models.ColName},
		{"timestamp [UTC]", models.ColTimestamp},
		{"timestamp [Local Time]", models.ColTimestamp},
		{"Timestamp", models.ColTimestamp},
		{"CP_searchQuery", ""},
		{"username", ""},
		{"timestamp_local", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalFor(tt.name))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		columns   []string
		wantNames []string
		wantKept  []string
	}{
		{
			name:      "renames every alias",
			columns:   []string{"timestamp [UTC]", "userId", "sessionId", "Name", "CP_searchQuery"},
			wantNames: []string{"timestamp", "user_id", "session_id", "name", "CP_searchQuery"},
		},
		{
			name:      "absent aliases are skipped",
			columns:   []string{"timestamp", "event_name"},
			wantNames: []string{"timestamp", "name"},
		},
		{
			name:      "canonical already present keeps alias",
			columns:   []string{"name", "Name", "timestamp [UTC]", "timestamp"},
			wantNames: []string{"name", "Name", "timestamp [UTC]", "timestamp"},
			wantKept:  []string{"Name", "timestamp [UTC]"},
		},
		{
			name:      "first alias wins",
			columns:   []string{"userId", "user_Id"},
			wantNames: []string{"user_id", "user_Id"},
			wantKept:  []string{"user_Id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := &models.Batch{}
			for _, c := range tt.columns {
				batch.Columns = append(batch.Columns, textColumn(c))
			}

			res := Normalize(batch)
			assert.Equal(t, tt.wantNames, batch.ColumnNames())
			assert.Equal(t, tt.wantKept, res.Kept)
			assert.Len(t, res.Warnings, len(tt.wantKept))
		})
	}
}

func TestEvents(t *testing.T) {
	t0 := time.Date(2024, 3, 5, 14, 7, 9, 120000000, time.UTC)
	batch := &models.Batch{
		Source: "/in/events_2024_03_05.csv",
		Rows:   4,
		Columns: []*models.Column{
			timeColumn("timestamp", t0, t0.Add(time.Second), time.Time{}, t0.Add(2*time.Second)),
			textColumn("user_id", "u1", "u1", "u2", ""),
			textColumn("name", "SEARCH_TRIGGERED", " SEARCH_RESULT_COUNT ", "RESULT_CLICK", ""),
			textColumn("CP_searchQuery", "Laptop", "", "", ""),
			timeColumn("created_at", t0, time.Time{}, t0, t0),
			textColumn("session_key", "x", "", "", ""),
			textColumn("Session_Key_2", "", "y", "", ""),
		},
	}

	conv, err := Events(batch)
	require.NoError(t, err)

	require.Len(t, conv.Events, 2)
	assert.Equal(t, 1, conv.DroppedNoTime)
	assert.Equal(t, 1, conv.DroppedNoName)
	assert.Equal(t, 2, conv.Dropped())

	first := conv.Events[0]
	assert.Equal(t, "events_2024_03_05.csv", first.SourceFile)
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "", first.SessionID)
	assert.Equal(t, "SEARCH_TRIGGERED", first.Name)
	assert.Equal(t, map[string]string{
		"CP_searchQuery": "Laptop",
		"created_at":     "2024-03-05T14:07:09.12Z",
		"session_key_2":  "x",
	}, first.Properties)

	second := conv.Events[1]
	assert.Equal(t, "SEARCH_RESULT_COUNT", second.Name)
	assert.Equal(t, map[string]string{"Session_Key_2_2": "y"}, second.Properties)

	assert.Equal(t, []string{"CP_searchQuery", "created_at", "session_key_2", "Session_Key_2_2"}, conv.Properties)
	assert.Equal(t, map[string]string{"session_key": "session_key_2", "Session_Key_2": "Session_Key_2_2"}, conv.Renamed)
}

func TestEventsMissingColumns(t *testing.T) {
	ts := timeColumn("timestamp", time.Now())

	tests := []struct {
		name    string
		columns []*models.Column
		wantErr error
	}{
		{"no timestamp", []*models.Column{textColumn("name", "A")}, ErrMissingColumn},
		{"no name", []*models.Column{ts}, ErrMissingColumn},
		{"timestamp not parsed", []*models.Column{textColumn("timestamp", "soon"), textColumn("name", "A")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Events(&models.Batch{Source: "x.csv", Rows: 1, Columns: tt.columns})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
