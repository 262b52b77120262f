package models

import (
	"errors"
	"strings"
	"time"
)

// Canonical column names shared by every stage of the pipeline
const (
	ColTimestamp = "timestamp"
	ColUserID    = "user_id"
	ColSessionID = "session_id"
	ColName      = "name"
)

// Event names with pipeline semantics
const (
	EventSearchTriggered = "SEARCH_TRIGGERED"
	EventSearchStarted   = "SEARCH_STARTED"
	EventResultCount     = "SEARCH_RESULT_COUNT"
)

// IsSearchStart reports whether name marks the initiation of a search
func IsSearchStart(name string) bool {
	return name == EventSearchTriggered || name == EventSearchStarted
}

// IsClick reports whether name is a click event of any kind
func IsClick(name string) bool {
	return strings.HasSuffix(strings.ToUpper(name), "_CLICK")
}

// Event is one interaction record as held by the event store.
// Properties holds every non-key column; a missing key means NULL.
type Event struct {
	Seq        int64     // Arrival order across all ingested batches
	BatchID    string    // Merge that inserted this row
	SourceFile string    // Input file the row came from
	Timestamp  time.Time // UTC instant
	UserID     string    // Empty means NULL
	SessionID  string    // Empty means NULL
	Name       string
	Properties map[string]string
}

// EventKey is the composite key used for upsert conflict resolution
type EventKey struct {
	Timestamp time.Time
	UserID    string
	SessionID string
	Name      string
}

// Key returns the composite key of the event
func (e *Event) Key() EventKey {
	return EventKey{
		Timestamp: e.Timestamp.UTC(),
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Name:      e.Name,
	}
}

// Property returns the named property and whether it is non-NULL. Names
// match case-insensitively, like store identifiers; an exact match wins.
func (e *Event) Property(name string) (string, bool) {
	if e.Properties == nil {
		return "", false
	}
	if v, ok := e.Properties[name]; ok {
		return v, true
	}
	for k, v := range e.Properties {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Validate checks the fields that may never be NULL
func (e *Event) Validate() error {
	if e.Timestamp.IsZero() {
		return errors.New("event timestamp is required")
	}
	if e.Name == "" {
		return errors.New("event name is required")
	}
	return nil
}

// Features is the derived attribute set computed per event.
// Pointer fields are NULL when nil.
type Features struct {
	SessionDate     time.Time // Local calendar date at midnight UTC
	SessionKey      string
	EventOrder      int
	PrevEvent       *string
	PrevTimestamp   *time.Time
	MsSincePrev     *int64
	SecSincePrev    *float64
	ElapsedBucket   string
	ElapsedSort     int
	SearchTerm      *string // Normalized search text
	TermLength      *int
	TermWordCount   int
	ActiveTerm      *string
	MsSinceSearch   *int64
	EventHour       int
	EventWeekday    string
	EventWeekdayNum int
	TimeOfDay       string
	ResultCount     *int64
	IsNullResult    *bool
	ClickCategory   *string
	IsSuccessClick  bool
	IsFirstOfDay    *bool
}

// EnrichedEvent pairs a stored event with its derived features
type EnrichedEvent struct {
	Event
	Features
}

// IsSearchStart reports whether the event initiates a search
func (e *EnrichedEvent) IsSearchStart() bool {
	return IsSearchStart(e.Name)
}

// IsResult reports whether the event reports a result count
func (e *EnrichedEvent) IsResult() bool {
	return e.Name == EventResultCount
}

// IsClick reports whether the event was classified as a click
func (e *EnrichedEvent) IsClick() bool {
	return e.ClickCategory != nil
}

// NullResult reports whether the event is a result event with zero results
func (e *EnrichedEvent) NullResult() bool {
	return e.IsNullResult != nil && *e.IsNullResult
}

// Store bookkeeping columns
const (
	ColIngestSeq  = "ingest_seq"
	ColBatchID    = "batch_id"
	ColSourceFile = "source_file"
	ColIngestedAt = "ingested_at"
)

// FeatureColumns names the derived columns of the enriched event table in
// table order
var FeatureColumns = []string{
	"session_date", "session_key", "event_order",
	"prev_event", "prev_timestamp", "ms_since_prev_event", "sec_since_prev_event",
	"time_since_prev_bucket", "time_since_prev_bucket_sort",
	"search_term_normalized", "search_term_length", "search_term_word_count",
	"active_search_term", "ms_since_search_start",
	"event_hour", "event_weekday", "event_weekday_num", "time_of_day",
	"result_count", "is_null_result", "click_category", "is_success_click",
	"is_first_search_of_day",
}

// IsReservedColumn reports whether a property may not use name. Store
// identifiers are case-insensitive, so the comparison is too.
func IsReservedColumn(name string) bool {
	n := strings.ToLower(name)
	switch n {
	case ColTimestamp, ColUserID, ColSessionID, ColName,
		ColIngestSeq, ColBatchID, ColSourceFile, ColIngestedAt:
		return true
	}
	for _, c := range FeatureColumns {
		if n == c {
			return true
		}
	}
	return false
}
