// Package worldbank ingests the World Bank GDP-per-capita indicator into the
// raw layer, incrementally: only years newer than the stored checkpoint are
// fetched into a fresh write-once artifact.
package worldbank

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/internal/metrics"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// RawPrefix is the raw-layer key prefix for World Bank artifacts.
const RawPrefix = "raw/world_bank_gdp"

// RawRecord is one audit-enriched observation as persisted in the raw layer.
type RawRecord struct {
	Observation
	IngestionRunID string    `json:"ingestion_run_id"`
	IngestionTS    time.Time `json:"ingestion_ts"`
	DataSource     string    `json:"data_source"`
	RecordHash     string    `json:"record_hash"`
}

// Options narrows the ingestion window. Bounds only ever narrow the fetch;
// they never move the stored checkpoint backward.
type Options struct {
	MinYear *int
	MaxYear *int
}

// Result reports one ingestion run.
type Result struct {
	ArtifactKey   string
	RowsProcessed int
	Checkpoint    string // checkpoint value after the run ("" if none yet)
}

// Controller runs the period-checkpointed ingestion policy for source A.
type Controller struct {
	store       storage.Store
	meta        metastore.Store
	client      Client
	indicatorID string
	logger      *slog.Logger
	now         func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithIndicator overrides the indicator id.
func WithIndicator(id string) ControllerOption {
	return func(c *Controller) { c.indicatorID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a World Bank ingestion controller.
func NewController(store storage.Store, meta metastore.Store, client Client, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:       store,
		meta:        meta,
		client:      client,
		indicatorID: DefaultIndicatorID,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ingest fetches the indicator, keeps only years inside the incremental
// window, and persists one raw artifact under a fresh key. The artifact is
// written even when zero rows qualify, for traceability. The checkpoint
// advances to the max ingested year, and only when the run succeeds — the
// caller owns the surrounding metadata run.
func (c *Controller) Ingest(ctx context.Context, runID string, opts Options) (*Result, error) {
	ingestionTS := c.now().UTC()

	// Exclusive lower bound: the stored checkpoint, unless the caller's
	// MinYear moves the window forward for this run.
	checkpoint, err := c.meta.LoadCheckpoint(ctx, types.CheckpointWorldBankYear, "")
	if err != nil {
		return nil, err
	}
	var baseline *int
	if checkpoint != "" {
		if y, err := strconv.Atoi(checkpoint); err == nil {
			baseline = &y
		}
	}
	if opts.MinYear != nil && (baseline == nil || *opts.MinYear > *baseline) {
		b := *opts.MinYear - 1
		baseline = &b
	}

	observations, err := c.client.FetchObservations(ctx, c.indicatorID)
	if err != nil {
		return nil, fmt.Errorf("world bank fetch: %w", err)
	}

	key := fmt.Sprintf("%s/world_bank_gdp_raw_%s.jsonl", RawPrefix, ingestionTS.Format("20060102T150405Z"))

	var records []RawRecord
	var maxIngested *int
	for _, obs := range observations {
		year, ok := obs.Year()
		if !ok {
			continue
		}
		if baseline != nil && year <= *baseline {
			continue
		}
		if opts.MaxYear != nil && year > *opts.MaxYear {
			continue
		}
		if maxIngested == nil || year > *maxIngested {
			y := year
			maxIngested = &y
		}
		records = append(records, RawRecord{
			Observation:    obs,
			IngestionRunID: runID,
			IngestionTS:    ingestionTS,
			DataSource:     types.SourceWorldBank,
			RecordHash:     hashObservation(obs),
		})
	}

	if _, err := storage.WriteTable(ctx, c.store, key, records); err != nil {
		return nil, fmt.Errorf("persisting raw artifact: %w", err)
	}

	final := checkpoint
	if maxIngested != nil {
		final = strconv.Itoa(*maxIngested)
		if err := c.meta.SaveCheckpoint(ctx, types.CheckpointWorldBankYear, final); err != nil {
			return nil, fmt.Errorf("advancing checkpoint: %w", err)
		}
	}

	metrics.RowsIngested.Add(int64(len(records)))
	c.logger.Info("world bank raw ingested",
		"run_id", runID, "rows", len(records), "artifact", key, "checkpoint", final)

	return &Result{
		ArtifactKey:   key,
		RowsProcessed: len(records),
		Checkpoint:    final,
	}, nil
}

// hashObservation returns the SHA-1 of the canonical JSON of the original
// payload, excluding audit fields, for dedup and lineage checks.
func hashObservation(obs Observation) string {
	data, _ := json.Marshal(obs)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
