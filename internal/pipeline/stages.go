package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/searchflow/internal/aggregate"
	"github.com/harrison/searchflow/internal/discovery"
	"github.com/harrison/searchflow/internal/export"
	"github.com/harrison/searchflow/internal/features"
	"github.com/harrison/searchflow/internal/format"
	"github.com/harrison/searchflow/internal/models"
	"github.com/harrison/searchflow/internal/schema"
	"github.com/harrison/searchflow/internal/store"
)

// ingest merges every input into the store in order
func (p *Pipeline) ingest(ctx context.Context, st *store.Store, set *settings, inputs []discovery.Input, summary *models.RunSummary) error {
	p.log.LogStageStart("ingest")
	start := time.Now()

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := p.ingestOne(ctx, st, set, in)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
		summary.Batches = append(summary.Batches, *batch)
		p.log.LogProgress("Ingest", i+1, len(inputs))
	}

	rows, err := st.Count(ctx)
	if err != nil {
		return err
	}
	summary.StoreRows = rows
	p.log.LogStageComplete("ingest", time.Since(start))
	return nil
}

func (p *Pipeline) ingestOne(ctx context.Context, st *store.Store, set *settings, in discovery.Input) (*models.BatchSummary, error) {
	sum := &models.BatchSummary{BatchID: p.newID(), SourceFile: in.Path}
	if in.Dated {
		d := in.Date
		sum.FileDate = &d
	}

	hash, err := hashFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("hash input: %w", err)
	}
	sum.SHA256 = hash
	if p.ledger != nil {
		prev, err := p.ledger.FindBatch(ctx, hash)
		if err != nil {
			p.log.LogWarn(err.Error())
		} else if prev != nil {
			p.log.LogInfo(fmt.Sprintf("%s was already merged by run %s; its rows will be replaced", in.Name, prev.RunID))
		}
	}

	batch, rep, err := format.Read(in.Path, format.Options{Location: set.sourceLoc})
	if err != nil {
		return nil, err
	}
	sum.RowsRead = batch.Rows
	p.log.LogDebug(fmt.Sprintf("%s: %s container, %d rows, %d columns", in.Name, rep.Container, batch.Rows, len(batch.Columns)))
	for col, f := range rep.Formats {
		p.log.LogDebug(fmt.Sprintf("%s: column %q parsed as %s", in.Name, col, f))
	}
	for _, w := range rep.Warnings {
		sum.Warnings = append(sum.Warnings, w.String())
	}

	norm := schema.Normalize(batch)
	for _, r := range norm.Renamed {
		p.log.LogDebug(fmt.Sprintf("%s: column %q renamed to %q", in.Name, r.From, r.To))
	}
	sum.Warnings = append(sum.Warnings, norm.Warnings...)

	conv, err := schema.Events(batch)
	if err != nil {
		return nil, err
	}
	sum.RowsDropped = conv.Dropped()
	sum.Warnings = append(sum.Warnings, conv.Warnings...)

	res, err := st.Merge(ctx, sum.BatchID, conv.Events)
	if err != nil {
		return nil, err
	}
	sum.Collisions = res.Collisions
	sum.Inserted = res.Inserted
	sum.InternalDuplicates = res.InternalDuplicates
	sum.NewColumns = res.NewColumns
	sum.StoreSize = res.StoreSize
	if res.InternalDuplicates > 0 {
		sum.Warnings = append(sum.Warnings,
			fmt.Sprintf("%d rows share a key with an earlier row of the same file", res.InternalDuplicates))
	}

	for _, w := range sum.Warnings {
		p.log.LogWarn(fmt.Sprintf("%s: %s", in.Name, w))
	}
	p.log.LogInfo(fmt.Sprintf("%s: inserted %d, replaced %d, store now %d rows",
		in.Name, res.Inserted, res.Collisions, res.StoreSize))
	return sum, nil
}

// derive recomputes features for the whole store and rebuilds the
// enriched table
func (p *Pipeline) derive(ctx context.Context, st *store.Store, set *settings, summary *models.RunSummary) ([]models.EnrichedEvent, error) {
	p.log.LogStageStart("feature derivation")
	start := time.Now()

	events, err := st.LoadEvents(ctx)
	if err != nil {
		return nil, err
	}
	enriched := features.Derive(events, features.Options{
		Location:     set.loc,
		TermColumns:  p.cfg.Columns.Term,
		CountColumns: p.cfg.Columns.Count,
	})
	if err := st.ReplaceFeatures(ctx, enriched); err != nil {
		return nil, err
	}
	if err := st.RebuildEnriched(ctx); err != nil {
		return nil, err
	}
	n, err := st.EnrichedCount(ctx)
	if err != nil {
		return nil, err
	}
	summary.EnrichedRows = n

	p.log.LogStageComplete("feature derivation", time.Since(start))
	return enriched, nil
}

func (p *Pipeline) aggregate(enriched []models.EnrichedEvent, summary *models.RunSummary) export.Data {
	p.log.LogStageStart("aggregation")
	start := time.Now()

	data := export.Data{
		Daily:    aggregate.Daily(enriched),
		Journeys: aggregate.Journeys(enriched),
		Terms:    aggregate.Terms(enriched),
	}
	summary.Days = len(data.Daily)
	summary.Sessions = len(data.Journeys)
	summary.Terms = len(data.Terms)

	p.log.LogStageComplete("aggregation", time.Since(start))
	return data
}
