package aggregate

import (
	"sort"
	"time"

	"github.com/harrison/searchflow/internal/features"
	"github.com/harrison/searchflow/internal/models"
)

type dailyAcc struct {
	agg          models.DailyAggregate
	sessions     map[string]bool
	users        map[string]bool
	terms        map[string]bool
	termLenSum   float64
	termWordSum  float64
	termedEvents int64
}

// Daily rolls enriched events up by local calendar date, oldest first
func Daily(events []models.EnrichedEvent) []models.DailyAggregate {
	firstSeen := firstUserDates(events)
	days := make(map[time.Time]*dailyAcc)

	for i := range events {
		e := &events[i]
		acc, ok := days[e.SessionDate]
		if !ok {
			acc = &dailyAcc{
				agg: models.DailyAggregate{
					Date:             e.SessionDate,
					ClicksByCategory: zeroCounts(features.ClickCategories),
					SearchesByBand:   zeroCounts(features.TimeOfDayBands),
				},
				sessions: make(map[string]bool),
				users:    make(map[string]bool),
				terms:    make(map[string]bool),
			}
			days[e.SessionDate] = acc
		}
		a := &acc.agg

		a.TotalEvents++
		acc.sessions[e.SessionKey] = true
		if e.UserID != "" {
			acc.users[e.UserID] = true
		}
		if e.SearchTerm != nil {
			acc.terms[*e.SearchTerm] = true
			acc.termLenSum += float64(*e.TermLength)
			acc.termWordSum += float64(e.TermWordCount)
			acc.termedEvents++
		}

		if e.IsSearchStart() {
			a.SearchStarts++
			a.SearchesByBand[e.TimeOfDay]++
		}
		if e.IsResult() {
			a.ResultEvents++
		}
		if e.IsClick() {
			a.ClickEvents++
			a.ClicksByCategory[*e.ClickCategory]++
		}
		if e.IsSuccessClick {
			a.SuccessClicks++
		}
		if e.NullResult() {
			a.NullResults++
		}
		if e.IsFirstOfDay != nil && *e.IsFirstOfDay {
			a.FirstSearchesOfDay++
		}
	}

	out := make([]models.DailyAggregate, 0, len(days))
	for date, acc := range days {
		a := acc.agg
		a.UniqueSessions = int64(len(acc.sessions))
		a.UniqueUsers = int64(len(acc.users))
		a.UniqueTerms = int64(len(acc.terms))
		a.ClickRatePct = pct(a.ClickEvents, a.SearchStarts)
		a.NullRatePct = pct(a.NullResults, a.ResultEvents)
		a.AvgTermLength = avg(acc.termLenSum, acc.termedEvents, 1)
		a.AvgTermWords = avg(acc.termWordSum, acc.termedEvents, 1)
		for user := range acc.users {
			if firstSeen[user].Equal(date) {
				a.NewUsers++
			} else {
				a.ReturningUsers++
			}
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// firstUserDates maps each known user to the earliest date they appear on
func firstUserDates(events []models.EnrichedEvent) map[string]time.Time {
	first := make(map[string]time.Time)
	for i := range events {
		e := &events[i]
		if e.UserID == "" {
			continue
		}
		if d, ok := first[e.UserID]; !ok || e.SessionDate.Before(d) {
			first[e.UserID] = e.SessionDate
		}
	}
	return first
}
