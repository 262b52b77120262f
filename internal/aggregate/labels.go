// Package aggregate projects enriched events into daily, session journey and
// term level summaries. Every projection is a pure function recomputed in
// full on each run.
package aggregate

import (
	"math"

	"github.com/harrison/searchflow/internal/features"
)

// Journey outcomes
const (
	OutcomeSuccess   = "Success"
	OutcomeEngaged   = "Engaged"
	OutcomeNoResults = "No Results"
	OutcomeAbandoned = "Abandoned"
	OutcomeUnknown   = "Unknown"
)

// Outcomes lists the outcomes in sort order
var Outcomes = []string{OutcomeSuccess, OutcomeEngaged, OutcomeNoResults, OutcomeAbandoned, OutcomeUnknown}

// OutcomeSort returns the sort helper of an outcome
func OutcomeSort(outcome string) int {
	for i, o := range Outcomes {
		if o == outcome {
			return i + 1
		}
	}
	return len(Outcomes)
}

// Labels for journeys without a measured gap
const (
	NoResult = "No Result"
	NoClick  = "No Click"
)

// SearchToResultBands bands the time from search initiation to results
var SearchToResultBands = []features.Band{
	{Label: "<500ms", Sort: 1, Lower: 0, Upper: 500},
	{Label: "500-1000ms", Sort: 2, Lower: 500, Upper: 1000},
	{Label: "1-2s", Sort: 3, Lower: 1000, Upper: 2000},
	{Label: "2-5s", Sort: 4, Lower: 2000, Upper: 5000},
	{Label: ">5s", Sort: 5, Lower: 5000, Upper: math.MaxInt64},
}

// ResultToClickBands bands the time from results to the first success click
var ResultToClickBands = []features.Band{
	{Label: "<2s", Sort: 1, Lower: 0, Upper: 2000},
	{Label: "2-5s", Sort: 2, Lower: 2000, Upper: 5000},
	{Label: "5-10s", Sort: 3, Lower: 5000, Upper: 10000},
	{Label: "10-30s", Sort: 4, Lower: 10000, Upper: 30000},
	{Label: "30-60s", Sort: 5, Lower: 30000, Upper: 60000},
	{Label: ">60s", Sort: 6, Lower: 60000, Upper: math.MaxInt64},
}

// DurationBands bands the total session duration
var DurationBands = []features.Band{
	{Label: "<5s", Sort: 1, Lower: 0, Upper: 5000},
	{Label: "5-30s", Sort: 2, Lower: 5000, Upper: 30000},
	{Label: "30-60s", Sort: 3, Lower: 30000, Upper: 60000},
	{Label: "1-3min", Sort: 4, Lower: 60000, Upper: 180000},
	{Label: "3-5min", Sort: 5, Lower: 180000, Upper: 300000},
	{Label: ">5min", Sort: 6, Lower: 300000, Upper: math.MaxInt64},
}

// bucketOrNone labels ms with bands, or with none and sort 0 when ms is nil
func bucketOrNone(bands []features.Band, ms *int64, none string) (string, int) {
	if ms == nil {
		return none, 0
	}
	b := features.Bucket(bands, *ms)
	return b.Label, b.Sort
}

// Complexity labels a session by its event count
func Complexity(events int64) (string, int) {
	switch {
	case events <= 1:
		return "Single Event", 1
	case events <= 3:
		return "Simple", 2
	case events <= 10:
		return "Medium", 3
	default:
		return "Complex", 4
	}
}

// round rounds x to places decimals
func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// pct is 100·num/den rounded to two decimals, nil on a zero denominator
func pct(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	v := round(100*float64(num)/float64(den), 2)
	return &v
}

// avg is sum/n rounded to places, nil when n is zero
func avg(sum float64, n int64, places int) *float64 {
	if n == 0 {
		return nil
	}
	v := round(sum/float64(n), places)
	return &v
}

// zeroCounts returns a map holding 0 for every label
func zeroCounts(labels []string) map[string]int64 {
	m := make(map[string]int64, len(labels))
	for _, l := range labels {
		m[l] = 0
	}
	return m
}
