package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{name: "valid", event: Event{Timestamp: ts, Name: EventSearchTriggered}},
		{name: "null ids are allowed", event: Event{Timestamp: ts, Name: "RESULT_CLICK"}},
		{name: "missing timestamp", event: Event{Name: "RESULT_CLICK"}, wantErr: "timestamp"},
		{name: "missing name", event: Event{Timestamp: ts}, wantErr: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEventKey(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	instant := time.Date(2024, 3, 5, 15, 0, 0, 0, berlin)

	a := Event{Timestamp: instant, UserID: "u1", Name: "RESULT_CLICK", Properties: map[string]string{"x": "1"}}
	b := Event{Timestamp: instant.UTC(), UserID: "u1", Name: "RESULT_CLICK"}
	assert.Equal(t, a.Key(), b.Key(), "keys ignore properties and zone")

	c := b
	c.SessionID = "s1"
	assert.NotEqual(t, b.Key(), c.Key())
}

func TestEventProperty(t *testing.T) {
	e := Event{Properties: map[string]string{"CP_searchQuery": "laptop"}}
	v, ok := e.Property("CP_searchQuery")
	assert.True(t, ok)
	assert.Equal(t, "laptop", v)

	_, ok = e.Property("missing")
	assert.False(t, ok)

	v, ok = e.Property("cp_searchquery")
	assert.True(t, ok)
	assert.Equal(t, "laptop", v)

	both := Event{Properties: map[string]string{"query": "lower", "QUERY": "upper"}}
	v, _ = both.Property("QUERY")
	assert.Equal(t, "upper", v)

	_, ok = (&Event{}).Property("any")
	assert.False(t, ok)
}

func TestEventNamePredicates(t *testing.T) {
	assert.True(t, IsSearchStart(EventSearchTriggered))
	assert.True(t, IsSearchStart(EventSearchStarted))
	assert.False(t, IsSearchStart(EventResultCount))

	assert.True(t, IsClick("RESULT_CLICK"))
	assert.True(t, IsClick("search_tab_click"))
	assert.False(t, IsClick("CLICKED"))
}

func TestIsReservedColumn(t *testing.T) {
	for _, name := range []string{"timestamp", "USER_ID", "ingest_seq", "session_key", "is_first_search_of_day"} {
		assert.True(t, IsReservedColumn(name), name)
	}
	assert.False(t, IsReservedColumn("CP_searchQuery"))
}

func TestBatchValidate(t *testing.T) {
	b := &Batch{Rows: 2, Columns: []*Column{
		{Name: "name", Text: []string{"a", "b"}},
		{Name: "timestamp", Text: []string{"x", "y"}, Times: make([]time.Time, 2), Format: FormatISOT},
	}}
	require.NoError(t, b.Validate())
	assert.Equal(t, []string{"name", "timestamp"}, b.ColumnNames())
	assert.True(t, b.Column("timestamp").IsTemporal())
	assert.False(t, b.Column("name").IsTemporal())
	assert.Nil(t, b.Column("missing"))

	b.Columns[0].Text = []string{"a"}
	assert.ErrorContains(t, b.Validate(), `column "name" has 1 values`)
}

func TestRunSummary(t *testing.T) {
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	r := RunSummary{
		StartedAt: start,
		Batches: []BatchSummary{
			{Warnings: []string{"a", "b"}},
			{},
			{Warnings: []string{"c"}},
		},
		Exports: []ExportSummary{
			{Artifact: "searches_raw"},
			{Artifact: "searches_daily", Err: "disk full"},
		},
	}

	assert.Zero(t, r.Duration(), "unfinished run")
	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
	assert.Equal(t, 3, r.Warnings())

	failed := r.FailedExports()
	require.Len(t, failed, 1)
	assert.Equal(t, "searches_daily", failed[0].Artifact)
}
