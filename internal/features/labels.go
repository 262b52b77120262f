package features

import (
	"math"
	"strings"

	"github.com/harrison/searchflow/internal/models"
)

// FirstEvent labels the opening event of a session
const FirstEvent = "First Event"

// Band is one half-open range [Lower, Upper) in milliseconds with a label
// and a sort helper
type Band struct {
	Label string
	Sort  int
	Lower int64
	Upper int64
}

// ElapsedBands bands the gap to the previous event of the session
var ElapsedBands = []Band{
	{Label: "<500ms", Sort: 1, Lower: 0, Upper: 500},
	{Label: "500-1000ms", Sort: 2, Lower: 500, Upper: 1000},
	{Label: "1-2s", Sort: 3, Lower: 1000, Upper: 2000},
	{Label: "2-5s", Sort: 4, Lower: 2000, Upper: 5000},
	{Label: "5-10s", Sort: 5, Lower: 5000, Upper: 10000},
	{Label: "10-30s", Sort: 6, Lower: 10000, Upper: 30000},
	{Label: "30-60s", Sort: 7, Lower: 30000, Upper: 60000},
	{Label: ">60s", Sort: 8, Lower: 60000, Upper: math.MaxInt64},
}

// Bucket returns the band containing ms. Values below the first band fall
// into it.
func Bucket(bands []Band, ms int64) Band {
	for _, b := range bands {
		if ms < b.Upper {
			return b
		}
	}
	return bands[len(bands)-1]
}

// ElapsedBucket labels a gap; nil means the event opens its session
func ElapsedBucket(ms *int64) (string, int) {
	if ms == nil {
		return FirstEvent, 0
	}
	b := Bucket(ElapsedBands, *ms)
	return b.Label, b.Sort
}

// Click categories in report order
const (
	CategoryResult         = "Result"
	CategoryTrending       = "Trending"
	CategoryTab            = "Tab"
	CategoryPaginationAll  = "Pagination All"
	CategoryPaginationNews = "Pagination News"
	CategoryPaginationGoTo = "Pagination GoTo"
	CategoryFilter         = "Filter"
	CategoryOther          = "Other"
)

// ClickCategories lists every category in report order
var ClickCategories = []string{
	CategoryResult,
	CategoryTrending,
	CategoryTab,
	CategoryPaginationAll,
	CategoryPaginationNews,
	CategoryPaginationGoTo,
	CategoryFilter,
	CategoryOther,
}

var clickNames = map[string]string{
	"RESULT_CLICK":               CategoryResult,
	"SEARCH_RESULT_CLICK":        CategoryResult,
	"TRENDING_CLICK":             CategoryTrending,
	"SEARCH_TRENDING_CLICK":      CategoryTrending,
	"SEARCH_TAB_CLICK":           CategoryTab,
	"SEARCH_ALL_TAB_PAGE_CLICK":  CategoryPaginationAll,
	"SEARCH_NEWS_TAB_PAGE_CLICK": CategoryPaginationNews,
	"SEARCH_GOTO_TAB_PAGE_CLICK": CategoryPaginationGoTo,
	"FILTER_CLICK":               CategoryFilter,
	"SEARCH_FILTER_CLICK":        CategoryFilter,
}

// ClickCategory classifies an event name; ok is false for non-click events
func ClickCategory(name string) (category string, ok bool) {
	if c, found := clickNames[strings.ToUpper(name)]; found {
		return c, true
	}
	if models.IsClick(name) {
		return CategoryOther, true
	}
	return "", false
}

// IsSuccessCategory reports whether a click category counts as a success
func IsSuccessCategory(category string) bool {
	return category == CategoryResult
}

// Time-of-day bands over local hours
const (
	Night     = "Night"
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
)

// TimeOfDayBands lists the bands in clock order
var TimeOfDayBands = []string{Night, Morning, Afternoon, Evening}

// TimeOfDay maps a local hour to its band
func TimeOfDay(hour int) string {
	switch {
	case hour < 6:
		return Night
	case hour < 12:
		return Morning
	case hour < 18:
		return Afternoon
	default:
		return Evening
	}
}

// NormalizeTerm lower-cases and trims search text
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// WordCount is one more than the number of spaces of a normalized term,
// zero for an empty term
func WordCount(term string) int {
	if term == "" {
		return 0
	}
	return strings.Count(term, " ") + 1
}
