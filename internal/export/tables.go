package export

import (
	"strings"

	"github.com/harrison/searchflow/internal/features"
	"github.com/harrison/searchflow/internal/models"
	"github.com/harrison/searchflow/internal/store"
)

// slug turns a label such as "Pagination All" into "pagination_all"
func slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}

func countColumns(prefix string, labels []string) []store.ColumnDef {
	cols := make([]store.ColumnDef, len(labels))
	for i, l := range labels {
		cols[i] = store.ColumnDef{Name: prefix + slug(l), Type: "BIGINT"}
	}
	return cols
}

func countValues(counts map[string]int64, labels []string) []any {
	vals := make([]any, len(labels))
	for i, l := range labels {
		vals[i] = counts[l]
	}
	return vals
}

func defs(pairs ...string) []store.ColumnDef {
	cols := make([]store.ColumnDef, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		cols = append(cols, store.ColumnDef{Name: pairs[i], Type: pairs[i+1]})
	}
	return cols
}

// DailySpec is the layout of the daily artifact
func DailySpec(table string) store.TableSpec {
	cols := defs(
		"date", "DATE",
		"total_events", "BIGINT",
		"unique_sessions", "BIGINT",
		"unique_users", "BIGINT",
		"unique_terms", "BIGINT",
		"search_starts", "BIGINT",
		"result_events", "BIGINT",
		"click_events", "BIGINT",
		"success_clicks", "BIGINT",
		"null_results", "BIGINT",
		"click_rate_pct", "DOUBLE",
		"null_rate_pct", "DOUBLE",
		"first_searches_of_day", "BIGINT",
		"new_users", "BIGINT",
		"returning_users", "BIGINT",
		"avg_term_length", "DOUBLE",
		"avg_term_words", "DOUBLE",
	)
	cols = append(cols, countColumns("clicks_", features.ClickCategories)...)
	cols = append(cols, countColumns("searches_", features.TimeOfDayBands)...)
	return store.TableSpec{Name: table, Columns: cols}
}

// DailyRows converts daily aggregates into rows matching DailySpec
func DailyRows(days []models.DailyAggregate) [][]any {
	rows := make([][]any, len(days))
	for i, d := range days {
		row := []any{
			d.Date,
			d.TotalEvents,
			d.UniqueSessions,
			d.UniqueUsers,
			d.UniqueTerms,
			d.SearchStarts,
			d.ResultEvents,
			d.ClickEvents,
			d.SuccessClicks,
			d.NullResults,
			nullFloat(d.ClickRatePct),
			nullFloat(d.NullRatePct),
			d.FirstSearchesOfDay,
			d.NewUsers,
			d.ReturningUsers,
			nullFloat(d.AvgTermLength),
			nullFloat(d.AvgTermWords),
		}
		row = append(row, countValues(d.ClicksByCategory, features.ClickCategories)...)
		row = append(row, countValues(d.SearchesByBand, features.TimeOfDayBands)...)
		rows[i] = row
	}
	return rows
}

// JourneySpec is the layout of the journeys artifact
func JourneySpec(table string) store.TableSpec {
	cols := defs(
		"session_key", "VARCHAR",
		"session_date", "DATE",
		"user_id", "VARCHAR",
		"session_id", "VARCHAR",
		"user_session_seq", "BIGINT",
		"session_start", "TIMESTAMP",
		"session_end", "TIMESTAMP",
		"total_events", "BIGINT",
		"search_count", "BIGINT",
		"result_count", "BIGINT",
		"click_count", "BIGINT",
		"success_click_count", "BIGINT",
		"unique_queries", "BIGINT",
		"null_result_count", "BIGINT",
		"avg_total_results", "DOUBLE",
		"max_total_results", "BIGINT",
	)
	cols = append(cols, countColumns("clicks_", features.ClickCategories)...)
	cols = append(cols, defs(
		"ms_search_to_result", "BIGINT",
		"ms_result_to_click", "BIGINT",
		"total_duration_ms", "BIGINT",
		"avg_ms_between_events", "DOUBLE",
		"first_event_hour", "BIGINT",
		"last_event_hour", "BIGINT",
		"includes_first_search", "BOOLEAN",
		"journey_outcome", "VARCHAR",
		"outcome_sort", "BIGINT",
		"had_reformulation", "BOOLEAN",
		"recovered_from_null_result", "BOOLEAN",
		"session_complexity", "VARCHAR",
		"complexity_sort", "BIGINT",
		"search_to_result_bucket", "VARCHAR",
		"search_to_result_sort", "BIGINT",
		"result_to_click_bucket", "VARCHAR",
		"result_to_click_sort", "BIGINT",
		"duration_bucket", "VARCHAR",
		"duration_sort", "BIGINT",
	)...)
	return store.TableSpec{Name: table, Columns: cols}
}

// JourneyRows converts journeys into rows matching JourneySpec
func JourneyRows(journeys []models.Journey) [][]any {
	rows := make([][]any, len(journeys))
	for i, j := range journeys {
		row := []any{
			j.SessionKey,
			j.SessionDate,
			nullIfEmpty(j.UserID),
			nullIfEmpty(j.SessionID),
			j.UserSessionSeq,
			j.SessionStart,
			j.SessionEnd,
			j.TotalEvents,
			j.SearchCount,
			j.ResultCount,
			j.ClickCount,
			j.SuccessClickCount,
			j.UniqueQueries,
			j.NullResultCount,
			nullFloat(j.AvgTotalResults),
			nullInt64(j.MaxTotalResults),
		}
		row = append(row, countValues(j.ClicksByCategory, features.ClickCategories)...)
		row = append(row,
			nullInt64(j.MsSearchToResult),
			nullInt64(j.MsResultToClick),
			j.TotalDurationMs,
			nullFloat(j.AvgMsBetweenEvents),
			int64(j.FirstEventHour),
			int64(j.LastEventHour),
			j.IncludesFirstSearch,
			j.Outcome,
			int64(j.OutcomeSort),
			j.HadReformulation,
			j.RecoveredFromNullResult,
			j.Complexity,
			int64(j.ComplexitySort),
			j.SearchToResultBucket,
			int64(j.SearchToResultSort),
			j.ResultToClickBucket,
			int64(j.ResultToClickSort),
			j.DurationBucket,
			int64(j.DurationSort),
		)
		rows[i] = row
	}
	return rows
}

// TermSpec is the layout of the terms artifact
func TermSpec(table string) store.TableSpec {
	cols := defs(
		"date", "DATE",
		"search_term", "VARCHAR",
		"term_length", "BIGINT",
		"term_word_count", "BIGINT",
		"search_count", "BIGINT",
		"click_count", "BIGINT",
		"success_click_count", "BIGINT",
		"null_result_count", "BIGINT",
		"clicked_count", "BIGINT",
		"sum_ms_to_click", "BIGINT",
		"avg_ms_to_click", "DOUBLE",
		"is_new_term", "BOOLEAN",
	)
	cols = append(cols, countColumns("searches_", features.TimeOfDayBands)...)
	return store.TableSpec{Name: table, Columns: cols}
}

// TermRows converts term aggregates into rows matching TermSpec
func TermRows(terms []models.TermAggregate) [][]any {
	rows := make([][]any, len(terms))
	for i, t := range terms {
		row := []any{
			t.Date,
			t.Term,
			int64(t.TermLength),
			int64(t.TermWordCount),
			t.SearchCount,
			t.ClickCount,
			t.SuccessClickCount,
			t.NullResultCount,
			t.ClickedCount,
			nullInt64(t.SumMsToClick),
			nullFloat(t.AvgMsToClick),
			t.IsNewTerm,
		}
		row = append(row, countValues(t.SearchesByBand, features.TimeOfDayBands)...)
		rows[i] = row
	}
	return rows
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
