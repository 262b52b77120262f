package aggregate

import (
	"sort"

	"github.com/harrison/searchflow/internal/features"
	"github.com/harrison/searchflow/internal/models"
)

// Journeys summarises every session, ordered by date, start time and key
func Journeys(events []models.EnrichedEvent) []models.Journey {
	sessions := make(map[string][]*models.EnrichedEvent)
	var keys []string
	for i := range events {
		e := &events[i]
		if _, ok := sessions[e.SessionKey]; !ok {
			keys = append(keys, e.SessionKey)
		}
		sessions[e.SessionKey] = append(sessions[e.SessionKey], e)
	}

	out := make([]models.Journey, 0, len(keys))
	for _, k := range keys {
		members := sessions[k]
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].EventOrder < members[b].EventOrder
		})
		out = append(out, journey(members))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.SessionDate.Equal(b.SessionDate) {
			return a.SessionDate.Before(b.SessionDate)
		}
		if !a.SessionStart.Equal(b.SessionStart) {
			return a.SessionStart.Before(b.SessionStart)
		}
		return a.SessionKey < b.SessionKey
	})
	numberUserSessions(out)
	return out
}

// journey summarises the ordered events of one session
func journey(events []*models.EnrichedEvent) models.Journey {
	first, last := events[0], events[len(events)-1]
	j := models.Journey{
		SessionKey:       first.SessionKey,
		SessionDate:      first.SessionDate,
		UserID:           first.UserID,
		SessionID:        first.SessionID,
		SessionStart:     first.Timestamp,
		SessionEnd:       last.Timestamp,
		TotalEvents:      int64(len(events)),
		TotalDurationMs:  last.Timestamp.Sub(first.Timestamp).Milliseconds(),
		FirstEventHour:   first.EventHour,
		LastEventHour:    last.EventHour,
		ClicksByCategory: zeroCounts(features.ClickCategories),
	}

	var (
		terms        = make(map[string]bool)
		countSum     float64
		countN       int64
		gapSum       float64
		gapN         int64
		lastResult   = -1
		resultBefore = -1
		successClick = -1
	)

	for i, e := range events {
		if e.SearchTerm != nil {
			terms[*e.SearchTerm] = true
		}
		if e.MsSincePrev != nil {
			gapSum += float64(*e.MsSincePrev)
			gapN++
		}
		if e.IsFirstOfDay != nil && *e.IsFirstOfDay {
			j.IncludesFirstSearch = true
		}
		if e.IsSearchStart() {
			j.SearchCount++
		}

		if e.IsResult() {
			j.ResultCount++
			lastResult = i
			if e.NullResult() {
				j.NullResultCount++
			}
			if e.ResultCount != nil {
				n := *e.ResultCount
				countSum += float64(n)
				countN++
				if j.MaxTotalResults == nil || n > *j.MaxTotalResults {
					j.MaxTotalResults = &n
				}
			}
			if e.PrevEvent != nil && models.IsSearchStart(*e.PrevEvent) && e.MsSincePrev != nil {
				if j.MsSearchToResult == nil || *e.MsSincePrev < *j.MsSearchToResult {
					ms := *e.MsSincePrev
					j.MsSearchToResult = &ms
				}
			}
		}

		if e.IsClick() {
			j.ClickCount++
			j.ClicksByCategory[*e.ClickCategory]++
		}
		if e.IsSuccessClick {
			j.SuccessClickCount++
			if successClick < 0 && lastResult >= 0 {
				successClick = i
				resultBefore = lastResult
			}
		}
	}

	if successClick >= 0 {
		ms := events[successClick].Timestamp.Sub(events[resultBefore].Timestamp).Milliseconds()
		j.MsResultToClick = &ms
	}

	j.UniqueQueries = int64(len(terms))
	j.AvgTotalResults = avg(countSum, countN, 1)
	j.AvgMsBetweenEvents = avg(gapSum, gapN, 1)
	j.HadReformulation = j.UniqueQueries > 1
	j.RecoveredFromNullResult = j.NullResultCount > 0 && j.SuccessClickCount > 0

	j.Outcome = outcome(&j)
	j.OutcomeSort = OutcomeSort(j.Outcome)
	j.Complexity, j.ComplexitySort = Complexity(j.TotalEvents)
	j.SearchToResultBucket, j.SearchToResultSort = bucketOrNone(SearchToResultBands, j.MsSearchToResult, NoResult)
	j.ResultToClickBucket, j.ResultToClickSort = bucketOrNone(ResultToClickBands, j.MsResultToClick, NoClick)
	d := features.Bucket(DurationBands, j.TotalDurationMs)
	j.DurationBucket, j.DurationSort = d.Label, d.Sort
	return j
}

func outcome(j *models.Journey) string {
	switch {
	case j.SuccessClickCount > 0:
		return OutcomeSuccess
	case j.ClickCount > 0:
		return OutcomeEngaged
	case j.NullResultCount > 0:
		return OutcomeNoResults
	case j.ResultCount > 0:
		return OutcomeAbandoned
	default:
		return OutcomeUnknown
	}
}

// numberUserSessions ranks each session among the sessions of its user by
// start time. Journeys must already be ordered.
func numberUserSessions(journeys []models.Journey) {
	idx := make([]int, len(journeys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ja, jb := &journeys[idx[a]], &journeys[idx[b]]
		if ja.UserID != jb.UserID {
			return ja.UserID < jb.UserID
		}
		if !ja.SessionStart.Equal(jb.SessionStart) {
			return ja.SessionStart.Before(jb.SessionStart)
		}
		return ja.SessionKey < jb.SessionKey
	})

	seq := make(map[string]int64)
	for _, i := range idx {
		u := journeys[i].UserID
		seq[u]++
		journeys[i].UserSessionSeq = seq[u]
	}
}
