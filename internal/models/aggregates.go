package models

import "time"

// DailyAggregate summarises one local calendar date
type DailyAggregate struct {
	Date               time.Time
	TotalEvents        int64
	UniqueSessions     int64
	UniqueUsers        int64
	UniqueTerms        int64
	SearchStarts       int64
	ResultEvents       int64
	ClickEvents        int64
	SuccessClicks      int64
	NullResults        int64
	ClickRatePct       *float64 // NULL when there were no search starts
	NullRatePct        *float64 // NULL when there were no result events
	FirstSearchesOfDay int64
	NewUsers           int64
	ReturningUsers     int64
	AvgTermLength      *float64
	AvgTermWords       *float64
	ClicksByCategory   map[string]int64
	SearchesByBand     map[string]int64
}

// Journey is the behavioural summary of one session
type Journey struct {
	SessionKey              string
	SessionDate             time.Time
	UserID                  string
	SessionID               string
	UserSessionSeq          int64
	SessionStart            time.Time
	SessionEnd              time.Time
	TotalEvents             int64
	SearchCount             int64
	ResultCount             int64
	ClickCount              int64
	SuccessClickCount       int64
	UniqueQueries           int64
	NullResultCount         int64
	AvgTotalResults         *float64
	MaxTotalResults         *int64
	ClicksByCategory        map[string]int64
	MsSearchToResult        *int64
	MsResultToClick         *int64
	TotalDurationMs         int64
	AvgMsBetweenEvents      *float64
	FirstEventHour          int
	LastEventHour           int
	IncludesFirstSearch     bool
	Outcome                 string
	OutcomeSort             int
	HadReformulation        bool
	RecoveredFromNullResult bool
	Complexity              string
	ComplexitySort          int
	SearchToResultBucket    string
	SearchToResultSort      int
	ResultToClickBucket     string
	ResultToClickSort       int
	DurationBucket          string
	DurationSort            int
}

// TermAggregate summarises one normalized search term on one date
type TermAggregate struct {
	Date              time.Time
	Term              string
	TermLength        int
	TermWordCount     int
	SearchCount       int64
	ClickCount        int64
	SuccessClickCount int64
	NullResultCount   int64
	ClickedCount      int64    // Success clicks with a measured time to click
	SumMsToClick      *int64   // NULL when nothing was clicked
	AvgMsToClick      *float64 // NULL when nothing was clicked
	IsNewTerm         bool
	SearchesByBand    map[string]int64
}
