// Package features derives per-event session attributes with an explicit
// sort-and-scan over session partitions.
package features

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/models"
)

var (
	// DefaultTermColumns are searched in order for search text
	DefaultTermColumns = []string{"CP_searchQuery", "searchQuery", "query"}
	// DefaultCountColumns are searched in order for the reported result count
	DefaultCountColumns = []string{"CP_totalResultCount", "totalResultCount", "resultCount"}
)

// Options controls derivation
type Options struct {
	Location     *time.Location // Target time zone for calendar days and hours; nil means UTC
	TermColumns  []string
	CountColumns []string
}

// DefaultOptions derives in UTC with the default property columns
func DefaultOptions() Options {
	return Options{
		Location:     time.UTC,
		TermColumns:  DefaultTermColumns,
		CountColumns: DefaultCountColumns,
	}
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if len(o.TermColumns) == 0 {
		o.TermColumns = DefaultTermColumns
	}
	if len(o.CountColumns) == 0 {
		o.CountColumns = DefaultCountColumns
	}
	return o
}

// SessionKey joins the local date, user id and session id
func SessionKey(date time.Time, userID, sessionID string) string {
	return date.Format("2006-01-02") + "_" + userID + "_" + sessionID
}

// Derive computes the feature set of every event. The result is ordered by
// session key and position within the session. Events are not modified.
func Derive(events []models.Event, opts Options) []models.EnrichedEvent {
	opts = opts.withDefaults()

	enriched := make([]models.EnrichedEvent, len(events))
	sessions := make(map[string][]int)
	for i := range events {
		e := &enriched[i]
		e.Event = events[i]
		deriveEventLocal(e, opts)
		sessions[e.SessionKey] = append(sessions[e.SessionKey], i)
	}

	keys := make([]string, 0, len(sessions))
	for k := range sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]models.EnrichedEvent, 0, len(enriched))
	for _, k := range keys {
		idx := sessions[k]
		sortChronologically(enriched, idx)
		scanSession(enriched, idx)
		for _, i := range idx {
			ordered = append(ordered, enriched[i])
		}
	}

	markFirstSearchOfDay(ordered)
	return ordered
}

// deriveEventLocal fills the attributes that depend on the event alone
func deriveEventLocal(e *models.EnrichedEvent, opts Options) {
	f := &e.Features
	local := e.Timestamp.In(opts.Location)

	f.SessionDate = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	f.SessionKey = SessionKey(f.SessionDate, e.UserID, e.SessionID)
	f.EventHour = local.Hour()
	f.EventWeekday = local.Weekday().String()
	f.EventWeekdayNum = isoWeekday(local.Weekday())
	f.TimeOfDay = TimeOfDay(f.EventHour)

	if raw, ok := firstProperty(&e.Event, opts.TermColumns); ok {
		term := NormalizeTerm(raw)
		length := len([]rune(term))
		f.SearchTerm = &term
		f.TermLength = &length
		f.TermWordCount = WordCount(term)
	}

	if raw, ok := firstProperty(&e.Event, opts.CountColumns); ok {
		if n, ok := parseCount(raw); ok {
			f.ResultCount = &n
			if e.Name == models.EventResultCount {
				isNull := n == 0
				f.IsNullResult = &isNull
			}
		}
	}

	if category, ok := ClickCategory(e.Name); ok {
		f.ClickCategory = &category
		f.IsSuccessClick = IsSuccessCategory(category)
	}
}

// sortChronologically orders a session by timestamp, then arrival
func sortChronologically(events []models.EnrichedEvent, idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := &events[idx[a]], &events[idx[b]]
		if !ea.Timestamp.Equal(eb.Timestamp) {
			return ea.Timestamp.Before(eb.Timestamp)
		}
		return ea.Seq < eb.Seq
	})
}

// scanSession walks one ordered session carrying the previous event and the
// active search term forward
func scanSession(events []models.EnrichedEvent, idx []int) {
	var (
		prev        *models.EnrichedEvent
		activeTerm  *string
		searchStart time.Time
	)

	for pos, i := range idx {
		e := &events[i]
		f := &e.Features
		f.EventOrder = pos + 1

		if prev != nil {
			name := prev.Name
			ts := prev.Timestamp
			ms := e.Timestamp.Sub(prev.Timestamp).Milliseconds()
			sec := float64(ms) / 1000
			f.PrevEvent = &name
			f.PrevTimestamp = &ts
			f.MsSincePrev = &ms
			f.SecSincePrev = &sec
		}
		f.ElapsedBucket, f.ElapsedSort = ElapsedBucket(f.MsSincePrev)

		if models.IsSearchStart(e.Name) && f.SearchTerm != nil && *f.SearchTerm != "" {
			term := *f.SearchTerm
			activeTerm = &term
			searchStart = e.Timestamp
		}
		if activeTerm != nil {
			term := *activeTerm
			ms := e.Timestamp.Sub(searchStart).Milliseconds()
			f.ActiveTerm = &term
			f.MsSinceSearch = &ms
		}

		prev = e
	}
}

// markFirstSearchOfDay flags the earliest search start per user and local
// day; later search starts get false, other events stay NULL
func markFirstSearchOfDay(events []models.EnrichedEvent) {
	type dayKey struct {
		user string
		date time.Time
	}

	var starts []int
	for i := range events {
		if events[i].IsSearchStart() {
			starts = append(starts, i)
		}
	}
	sortChronologically(events, starts)

	seen := make(map[dayKey]bool)
	for _, i := range starts {
		e := &events[i]
		k := dayKey{user: e.UserID, date: e.SessionDate}
		first := !seen[k]
		seen[k] = true
		e.IsFirstOfDay = &first
	}
}

// firstProperty returns the first non-empty property among names
func firstProperty(e *models.Event, names []string) (string, bool) {
	for _, n := range names {
		if v, ok := e.Property(n); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// parseCount reads an integer count. Decimals such as "5.0" are rounded.
func parseCount(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// isoWeekday numbers Monday 1 through Sunday 7
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
