// Package pipeline orchestrates the end-to-end flow: both ingestions, both
// typed transforms, the mapping rebuild, and the curated join. The orchestrator
// owns the metadata run lifecycle for every stage; the stage implementations
// only read and advance checkpoints.
package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ecopipe-systems/ecopipe/internal/curate"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/internal/metrics"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/internal/transform"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Options narrows a single invocation's ingestion window.
type Options struct {
	MinYear *int
	MaxYear *int
}

// Pipeline wires the stage implementations to shared storage and metadata
// backends.
type Pipeline struct {
	meta     metastore.Store
	store    storage.Store
	gdp      *worldbank.Controller
	co2      *wikipedia.Controller
	resolver *mapping.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New assembles a Pipeline from its stage controllers.
func New(meta metastore.Store, store storage.Store, gdp *worldbank.Controller, co2 *wikipedia.Controller, resolver *mapping.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		meta:     meta,
		store:    store,
		gdp:      gdp,
		co2:      co2,
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// stageOutcome is what a stage hands back to the run bookkeeping.
type stageOutcome struct {
	rows       int
	checkpoint string
	artifacts  []string
}

// Execute runs every stage in order. The first failing stage is recorded as
// FAILED and halts the invocation; completed stages are never rolled back.
// The returned summary always covers every stage that was started, alongside
// the error that stopped the run (nil when all stages succeeded).
func (p *Pipeline) Execute(ctx context.Context, opts Options) (*types.Summary, error) {
	summary := &types.Summary{}

	var gdpRaw string
	var co2Raw string
	var entries []types.MappingEntry

	stages := []struct {
		stage types.Stage
		scope string
		fn    func(ctx context.Context, runID string) (stageOutcome, error)
	}{
		{types.StageIngestGDP, types.ScopeWorldBankAPI, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := p.gdp.Ingest(ctx, runID, worldbank.Options{MinYear: opts.MinYear, MaxYear: opts.MaxYear})
			if err != nil {
				return stageOutcome{}, err
			}
			gdpRaw = res.ArtifactKey
			return stageOutcome{rows: res.RowsProcessed, checkpoint: res.Checkpoint, artifacts: []string{res.ArtifactKey}}, nil
		}},
		{types.StageTransformGDP, types.ScopeWorldBankProcessed, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := transform.GDP(ctx, p.store, gdpRaw, p.logger)
			if err != nil {
				return stageOutcome{}, err
			}
			return stageOutcome{rows: res.Rows, artifacts: res.ArtifactKeys}, nil
		}},
		{types.StageResolveMapping, types.ScopeCountryMapping, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := p.resolver.Resolve(ctx)
			if err != nil {
				return stageOutcome{}, err
			}
			entries, err = mapping.Load(ctx, p.store)
			if err != nil {
				return stageOutcome{}, err
			}
			return stageOutcome{rows: res.Entries, artifacts: []string{res.ArtifactKey}}, nil
		}},
		{types.StageIngestCO2, types.ScopeWikipediaCO2, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := p.co2.Ingest(ctx, runID)
			if err != nil {
				return stageOutcome{}, err
			}
			if res.Skipped {
				// Reuse the newest previously ingested snapshot downstream.
				co2Raw, err = p.co2.LatestArtifactKey(ctx)
				if err != nil {
					return stageOutcome{}, err
				}
				return stageOutcome{checkpoint: strconv.FormatInt(res.RevisionID, 10)}, nil
			}
			co2Raw = res.ArtifactKey
			return stageOutcome{
				rows:       res.RowsProcessed,
				checkpoint: strconv.FormatInt(res.RevisionID, 10),
				artifacts:  []string{res.ArtifactKey},
			}, nil
		}},
		{types.StageTransformCO2, types.ScopeWikipediaProcessed, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := transform.CO2(ctx, p.store, co2Raw, entries, p.logger)
			if err != nil {
				return stageOutcome{}, err
			}
			return stageOutcome{rows: res.Rows, artifacts: res.ArtifactKeys}, nil
		}},
		{types.StageJoin, types.ScopeCuratedJoin, func(ctx context.Context, runID string) (stageOutcome, error) {
			res, err := curate.Run(ctx, p.store, entries, runID, p.now().UTC(), p.logger)
			if err != nil {
				return stageOutcome{}, err
			}
			return stageOutcome{rows: res.Stats.RowsEmitted, artifacts: res.ArtifactKeys}, nil
		}},
	}

	for _, s := range stages {
		if err := p.runStage(ctx, summary, s.stage, s.scope, s.fn); err != nil {
			p.logger.Error("pipeline halted", "stage", string(s.stage), "error", err)
			return summary, err
		}
	}
	return summary, nil
}

// runStage wraps one stage execution in a metadata run: RUNNING at start, then
// exactly one terminal update.
func (p *Pipeline) runStage(ctx context.Context, summary *types.Summary, stage types.Stage, scope string, fn func(ctx context.Context, runID string) (stageOutcome, error)) error {
	runID, err := p.meta.StartRun(ctx, scope)
	if err != nil {
		summary.Stages = append(summary.Stages, types.StageResult{
			Stage:        stage,
			RunScope:     scope,
			Status:       types.RunFailed,
			ErrorMessage: err.Error(),
		})
		return err
	}
	metrics.RunsStarted.Add(1)
	p.logger.Info("stage started", "stage", string(stage), "run_id", runID, "run_scope", scope)

	outcome, err := fn(ctx, runID)
	if err != nil {
		metrics.RunsFailed.Add(1)
		if _, endErr := p.meta.EndRun(ctx, runID, types.RunFailed, metastore.EndRunOptions{
			ErrorMessage: err.Error(),
		}); endErr != nil {
			p.logger.Error("recording failed run", "run_id", runID, "error", endErr)
		}
		summary.Stages = append(summary.Stages, types.StageResult{
			Stage:        stage,
			RunScope:     scope,
			RunID:        runID,
			Status:       types.RunFailed,
			ErrorMessage: err.Error(),
		})
		return err
	}

	if _, err := p.meta.EndRun(ctx, runID, types.RunSuccess, metastore.EndRunOptions{
		RowsProcessed:  metastore.IntPtr(outcome.rows),
		LastCheckpoint: outcome.checkpoint,
	}); err != nil {
		p.logger.Error("recording successful run", "run_id", runID, "error", err)
	}
	summary.Stages = append(summary.Stages, types.StageResult{
		Stage:         stage,
		RunScope:      scope,
		RunID:         runID,
		Status:        types.RunSuccess,
		RowsProcessed: outcome.rows,
		ArtifactKeys:  outcome.artifacts,
	})
	p.logger.Info("stage completed", "stage", string(stage), "run_id", runID, "rows", outcome.rows)
	return nil
}
