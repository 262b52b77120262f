// Package pipeline runs the ingestion pipeline end to end: input discovery,
// format resolution, schema normalization, the store merge, feature
// derivation, aggregation and export.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/searchflow/internal/config"
	"github.com/harrison/searchflow/internal/discovery"
	"github.com/harrison/searchflow/internal/export"
	"github.com/harrison/searchflow/internal/filelock"
	"github.com/harrison/searchflow/internal/format"
	"github.com/harrison/searchflow/internal/ledger"
	"github.com/harrison/searchflow/internal/models"
	"github.com/harrison/searchflow/internal/report"
	"github.com/harrison/searchflow/internal/store"
)

// Logger receives progress of a run
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStageStart(stage string)
	LogStageComplete(stage string, duration time.Duration)
	LogProgress(label string, done, total int)
	LogSummary(summary models.RunSummary)
}

// Request selects the inputs of a run
type Request struct {
	// Path names one input file; empty means the newest discovered input
	Path string

	// FullRefresh wipes the store and replays every discovered input
	FullRefresh bool
}

// Mode returns the run mode the request resolves to
func (r Request) Mode() string {
	switch {
	case r.FullRefresh:
		return models.ModeFullRefresh
	case r.Path != "":
		return models.ModeFile
	default:
		return models.ModeNewest
	}
}

// Pipeline runs ingestion against one configuration
type Pipeline struct {
	cfg    *config.Config
	log    Logger
	ledger *ledger.Ledger
	now    func() time.Time
	newID  func() string
}

// New creates a Pipeline. The ledger is optional and may be nil.
func New(cfg *config.Config, log Logger, l *ledger.Ledger) *Pipeline {
	if cfg == nil {
		panic("config cannot be nil")
	}
	return &Pipeline{
		cfg:    cfg,
		log:    log,
		ledger: l,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// settings are the validated values a run needs from the configuration
type settings struct {
	loc       *time.Location
	sourceLoc *time.Location
	format    store.CopyFormat
	storePath string
}

func (p *Pipeline) settings() (*settings, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := p.cfg.Location()
	if err != nil {
		return nil, err
	}
	sourceLoc, err := p.cfg.SourceLocation()
	if err != nil {
		return nil, err
	}
	f, err := store.ParseCopyFormat(p.cfg.Format)
	if err != nil {
		return nil, err
	}
	return &settings{
		loc:       loc,
		sourceLoc: sourceLoc,
		format:    f,
		storePath: p.cfg.StorePath(store.FileName),
	}, nil
}

// Run executes one pipeline run and returns its summary. The summary is
// returned even when the run fails; it is also logged, written to the
// output directory and recorded in the ledger.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     p.newID(),
		Mode:      req.Mode(),
		Status:    models.StatusRunning,
		StartedAt: p.now(),
	}

	set, err := p.settings()
	if err != nil {
		return p.finish(ctx, summary, stageErr(StagePreflight, err), false)
	}

	p.log.LogStageStart("preflight")
	start := time.Now()
	inputs, err := preflight(req, p.cfg.InputDir)
	if err != nil {
		return p.finish(ctx, summary, stageErr(StagePreflight, err), false)
	}
	p.log.LogStageComplete("preflight", time.Since(start))
	p.log.LogInfo(fmt.Sprintf("Mode %s: %d input(s)", summary.Mode, len(inputs)))

	lock := filelock.ForStore(set.storePath)
	if err := lock.TryLock(); err != nil {
		return p.finish(ctx, summary, stageErr(StageLock, err), false)
	}
	defer lock.Unlock()

	if p.ledger != nil {
		if err := p.ledger.StartRun(context.WithoutCancel(ctx), summary.RunID, summary.Mode, summary.StartedAt); err != nil {
			p.log.LogWarn(fmt.Sprintf("Run history unavailable: %v", err))
		}
	}

	err = p.execute(ctx, req, set, inputs, summary)
	return p.finish(ctx, summary, err, true)
}

// execute runs every stage after the lock is held
func (p *Pipeline) execute(ctx context.Context, req Request, set *settings, inputs []discovery.Input, summary *models.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if req.FullRefresh {
		if err := removeStore(set.storePath); err != nil {
			return stageErr(StageStore, err)
		}
		p.log.LogInfo(fmt.Sprintf("Removed store %s for full refresh", set.storePath))
	}

	st, err := store.Open(ctx, set.storePath)
	if err != nil {
		return stageErr(StageStore, err)
	}
	defer st.Close()

	if err := p.ingest(ctx, st, set, inputs, summary); err != nil {
		return stageErr(StageIngest, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	enriched, err := p.derive(ctx, st, set, summary)
	if err != nil {
		return stageErr(StageDerive, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := p.aggregate(enriched, summary)
	if err := ctx.Err(); err != nil {
		return err
	}

	p.log.LogStageStart("export")
	start := time.Now()
	exports, exportErr := export.Write(ctx, st, data, export.Options{Dir: p.cfg.OutputDir, Format: set.format})
	summary.Exports = exports
	for _, e := range exports {
		if e.Err == "" {
			p.log.LogInfo(fmt.Sprintf("Wrote %s (%d rows)", e.Path, e.Rows))
		}
	}
	p.log.LogStageComplete("export", time.Since(start))

	if err := st.Checkpoint(ctx); err != nil {
		p.log.LogWarn(err.Error())
	}
	return stageErr(StageExport, exportErr)
}

// finish closes out the summary, logs it, writes the summary document and
// records the run
func (p *Pipeline) finish(ctx context.Context, summary *models.RunSummary, runErr error, recorded bool) (*models.RunSummary, error) {
	summary.FinishedAt = p.now()
	summary.Status = models.StatusSucceeded
	if runErr != nil {
		summary.Status = models.StatusFailed
		summary.Error = runErr.Error()
		p.log.LogError(runErr.Error())
	}

	// Input and configuration failures happen before anything is touched
	if recorded {
		if path, err := report.WriteSummary(p.cfg.OutputDir, *summary); err != nil {
			p.log.LogWarn(err.Error())
		} else {
			p.log.LogDebug(fmt.Sprintf("Run summary written to %s", path))
		}
		if p.ledger != nil {
			// The run context may be cancelled; the outcome is recorded regardless
			if err := p.ledger.FinishRun(context.WithoutCancel(ctx), *summary); err != nil {
				p.log.LogWarn(fmt.Sprintf("Record run: %v", err))
			}
		}
	}

	p.log.LogSummary(*summary)
	return summary, runErr
}

// preflight resolves and checks every input before any state is mutated
func preflight(req Request, inputDir string) ([]discovery.Input, error) {
	var inputs []discovery.Input
	switch {
	case req.FullRefresh:
		all, err := discovery.Chronological(inputDir)
		if err != nil {
			return nil, err
		}
		inputs = all
	case req.Path != "":
		info, err := os.Stat(req.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", discovery.ErrNoInput, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", discovery.ErrNoInput, req.Path)
		}
		abs, err := filepath.Abs(req.Path)
		if err != nil {
			return nil, err
		}
		in := discovery.Input{Path: abs, Name: filepath.Base(abs), Date: info.ModTime()}
		stem := in.Name[:len(in.Name)-len(filepath.Ext(in.Name))]
		if d, ok := discovery.FileDate(stem); ok {
			in.Date, in.Dated = d, true
		}
		inputs = []discovery.Input{in}
	default:
		newest, err := discovery.Newest(inputDir)
		if err != nil {
			return nil, err
		}
		inputs = []discovery.Input{newest}
	}

	for _, in := range inputs {
		if _, err := format.DetectContainer(in.Path); err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
	}
	return inputs, nil
}

// removeStore deletes the store file and its write-ahead log
func removeStore(path string) error {
	for _, f := range []string{path, store.WALPath(path)} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
