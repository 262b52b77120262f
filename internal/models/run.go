package models

import "time"

// Run modes
const (
	ModeNewest      = "newest"       // Newest discovered input
	ModeFile        = "file"         // One explicitly named input
	ModeFullRefresh = "full-refresh" // Wipe the store and replay every input
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BatchSummary describes the ingestion of one input file
type BatchSummary struct {
	BatchID            string
	SourceFile         string
	SHA256             string
	FileDate           *time.Time // From the file name; nil when undated
	RowsRead           int
	RowsDropped        int
	Collisions         int64
	Inserted           int64
	InternalDuplicates int
	NewColumns         []string
	StoreSize          int64
	Warnings           []string
}

// ExportSummary describes one written artifact
type ExportSummary struct {
	Artifact string
	Path     string
	Rows     int64
	Err      string // Empty when the artifact was written
}

// RunSummary is the outcome of one pipeline run
type RunSummary struct {
	RunID        string
	Mode         string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Batches      []BatchSummary
	StoreRows    int64
	EnrichedRows int64
	Sessions     int
	Days         int
	Terms        int
	Exports      []ExportSummary
	Error        string
}

// Duration returns the wall time of the run
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Warnings counts warnings across all batches
func (r *RunSummary) Warnings() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Warnings)
	}
	return n
}

// FailedExports returns the artifacts that could not be written
func (r *RunSummary) FailedExports() []ExportSummary {
	var failed []ExportSummary
	for _, e := range r.Exports {
		if e.Err != "" {
			failed = append(failed, e)
		}
	}
	return failed
}
