package pipeline

import "fmt"

// Stage names a step of a run
type Stage string

const (
	StagePreflight Stage = "preflight"
	StageLock      Stage = "lock"
	StageStore     Stage = "store"
	StageIngest    Stage = "ingest"
	StageDerive    Stage = "derive"
	StageAggregate Stage = "aggregate"
	StageExport    Stage = "export"
)

// StageError reports which stage of a run failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
