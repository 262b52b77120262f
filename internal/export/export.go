// Package export stages the aggregated projections into the store and writes
// them out as columnar artifacts.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/harrison/searchflow/internal/filelock"
	"github.com/harrison/searchflow/internal/models"
	"github.com/harrison/searchflow/internal/store"
)

// Artifact names, also the output file stems
const (
	Raw      = "searches_raw"
	Daily    = "searches_daily"
	Journeys = "searches_journeys"
	Terms    = "searches_terms"
)

// Artifacts lists every artifact in write order
var Artifacts = []string{Raw, Daily, Journeys, Terms}

// Staging tables for the aggregated projections
const (
	dailyTable    = "export_daily"
	journeysTable = "export_journeys"
	termsTable    = "export_terms"
)

// Store is the subset of the event store the exporter needs
type Store interface {
	ReplaceTable(ctx context.Context, spec store.TableSpec, rows [][]any) error
	CopyTo(ctx context.Context, table, path string, format store.CopyFormat) error
	TableRows(ctx context.Context, table string) (int64, error)
}

// Options controls where and how artifacts are written
type Options struct {
	Dir    string
	Format store.CopyFormat
}

// Data holds the aggregated projections of one run
type Data struct {
	Daily    []models.DailyAggregate
	Journeys []models.Journey
	Terms    []models.TermAggregate
}

// Path returns the output file of an artifact
func (o Options) Path(artifact string) string {
	return filepath.Join(o.Dir, artifact+o.Format.Extension())
}

// Write stages and writes every artifact. A failure affects only its own
// artifact; all failures are joined into the returned error.
func Write(ctx context.Context, st Store, data Data, opts Options) ([]models.ExportSummary, error) {
	if opts.Format == "" {
		opts.Format = store.FormatParquet
	}

	jobs := []struct {
		artifact string
		table    string
		stage    func() error
	}{
		{artifact: Raw, table: store.EnrichedTable},
		{artifact: Daily, table: dailyTable, stage: func() error {
			return st.ReplaceTable(ctx, DailySpec(dailyTable), DailyRows(data.Daily))
		}},
		{artifact: Journeys, table: journeysTable, stage: func() error {
			return st.ReplaceTable(ctx, JourneySpec(journeysTable), JourneyRows(data.Journeys))
		}},
		{artifact: Terms, table: termsTable, stage: func() error {
			return st.ReplaceTable(ctx, TermSpec(termsTable), TermRows(data.Terms))
		}},
	}

	summaries := make([]models.ExportSummary, 0, len(jobs))
	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		sum := models.ExportSummary{Artifact: job.artifact, Path: opts.Path(job.artifact)}
		rows, err := writeOne(ctx, st, job.table, job.stage, sum.Path, opts.Format)
		if err != nil {
			err = fmt.Errorf("export %s: %w", job.artifact, err)
			sum.Err = err.Error()
			errs = append(errs, err)
		}
		sum.Rows = rows
		summaries = append(summaries, sum)
	}
	return summaries, errors.Join(errs...)
}

func writeOne(ctx context.Context, st Store, table string, stage func() error, path string, format store.CopyFormat) (int64, error) {
	if stage != nil {
		if err := stage(); err != nil {
			return 0, fmt.Errorf("stage: %w", err)
		}
	}
	rows, err := st.TableRows(ctx, table)
	if err != nil {
		return 0, err
	}
	err = filelock.AtomicReplace(path, func(tmp string) error {
		return st.CopyTo(ctx, table, tmp, format)
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}
