package aggregate

import (
	"sort"
	"time"

	"github.com/harrison/searchflow/internal/features"
	"github.com/harrison/searchflow/internal/models"
)

type termKey struct {
	date time.Time
	term string
}

// Terms rolls search activity up by date and normalized term. Clicks and
// null results count toward the term that was active when they happened.
// Rows are ordered by date, then search count descending, then term.
func Terms(events []models.EnrichedEvent) []models.TermAggregate {
	rows := make(map[termKey]*models.TermAggregate)
	row := func(date time.Time, term string) *models.TermAggregate {
		k := termKey{date: date, term: term}
		if r, ok := rows[k]; ok {
			return r
		}
		r := &models.TermAggregate{
			Date:           date,
			Term:           term,
			TermLength:     len([]rune(term)),
			TermWordCount:  features.WordCount(term),
			SearchesByBand: zeroCounts(features.TimeOfDayBands),
		}
		rows[k] = r
		return r
	}

	for i := range events {
		e := &events[i]
		if e.IsSearchStart() && e.SearchTerm != nil && *e.SearchTerm != "" {
			r := row(e.SessionDate, *e.SearchTerm)
			r.SearchCount++
			r.SearchesByBand[e.TimeOfDay]++
		}
		if e.ActiveTerm == nil {
			continue
		}
		if e.IsClick() {
			r := row(e.SessionDate, *e.ActiveTerm)
			r.ClickCount++
			if e.IsSuccessClick {
				r.SuccessClickCount++
				if e.MsSinceSearch != nil {
					r.ClickedCount++
					sum := *e.MsSinceSearch
					if r.SumMsToClick != nil {
						sum += *r.SumMsToClick
					}
					r.SumMsToClick = &sum
				}
			}
		}
		if e.NullResult() {
			row(e.SessionDate, *e.ActiveTerm).NullResultCount++
		}
	}

	firstSeen := make(map[string]time.Time)
	for k := range rows {
		if d, ok := firstSeen[k.term]; !ok || k.date.Before(d) {
			firstSeen[k.term] = k.date
		}
	}

	out := make([]models.TermAggregate, 0, len(rows))
	for k, r := range rows {
		r.IsNewTerm = firstSeen[k.term].Equal(k.date)
		if r.SumMsToClick != nil {
			r.AvgMsToClick = avg(float64(*r.SumMsToClick), r.ClickedCount, 1)
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SearchCount != b.SearchCount {
			return a.SearchCount > b.SearchCount
		}
		return a.Term < b.Term
	})
	return out
}
