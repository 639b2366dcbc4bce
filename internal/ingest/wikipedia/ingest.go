// Package wikipedia ingests the Wikipedia CO2-per-capita table into the raw
// layer under a revision guard: the page's revision id is fetched first, and
// the expensive table scrape is skipped entirely when the revision matches
// the stored checkpoint.
package wikipedia

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

// RawPrefix is the raw-layer key prefix for Wikipedia artifacts.
const RawPrefix = "raw/wikipedia_co2"

// RawSnapshot is the audit-enriched snapshot persisted in the raw layer, one
// record per artifact.
type RawSnapshot struct {
	IngestionRunID string    `json:"ingestion_run_id"`
	IngestionTS    time.Time `json:"ingestion_ts"`
	DataSource     string    `json:"data_source"`
	Snapshot
	RecordHash string `json:"record_hash"`
}

// Result reports one ingestion run.
type Result struct {
	// Skipped is true when the revision guard found no new revision; no
	// artifact was written and the checkpoint is unchanged.
	Skipped       bool
	ArtifactKey   string
	RowsProcessed int
	RevisionID    int64
}

// Controller runs the revision-guarded snapshot ingestion policy for source B.
type Controller struct {
	store  storage.Store
	meta   metastore.Store
	client Client
	logger *slog.Logger
	now    func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Wikipedia ingestion controller.
func NewController(store storage.Store, meta metastore.Store, client Client, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		meta:   meta,
		client: client,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ingest checks the page revision against the stored checkpoint and, only
// when it changed, fetches the full snapshot, persists it under a fresh
// write-once key, and advances the checkpoint. The caller owns the
// surrounding metadata run.
func (c *Controller) Ingest(ctx context.Context, runID string) (*Result, error) {
	ingestionTS := c.now().UTC()

	revision, err := c.client.FetchRevisionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("wikipedia revision check: %w", err)
	}

	stored, err := c.meta.LoadCheckpoint(ctx, types.CheckpointWikipediaRevision, "")
	if err != nil {
		return nil, err
	}
	if stored == strconv.FormatInt(revision, 10) {
		metrics.SnapshotFetchesSkipped.Add(1)
		c.logger.Info("wikipedia snapshot unchanged, skipping fetch",
			"run_id", runID, "revision_id", revision)
		return &Result{Skipped: true, RevisionID: revision}, nil
	}

	snapshot, err := c.client.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("wikipedia fetch: %w", err)
	}
	// Trust the snapshot's own revision when the page changed between the
	// two calls; the checkpoint must match what was actually persisted.
	if snapshot.RevisionID != 0 {
		revision = snapshot.RevisionID
	} else {
		snapshot.RevisionID = revision
	}

	key := fmt.Sprintf("%s/wikipedia_co2_raw_%s.jsonl", RawPrefix, ingestionTS.Format("20060102T150405Z"))
	record := RawSnapshot{
		IngestionRunID: runID,
		IngestionTS:    ingestionTS,
		DataSource:     types.SourceWikipedia,
		Snapshot:       *snapshot,
		RecordHash:     hashSnapshot(snapshot),
	}
	if _, err := storage.WriteTable(ctx, c.store, key, []RawSnapshot{record}); err != nil {
		return nil, fmt.Errorf("persisting raw artifact: %w", err)
	}

	if err := c.meta.SaveCheckpoint(ctx, types.CheckpointWikipediaRevision, strconv.FormatInt(revision, 10)); err != nil {
		return nil, fmt.Errorf("advancing checkpoint: %w", err)
	}

	metrics.RowsIngested.Add(int64(len(snapshot.Rows)))
	c.logger.Info("wikipedia raw ingested",
		"run_id", runID, "rows", len(snapshot.Rows), "artifact", key, "revision_id", revision)

	return &Result{
		ArtifactKey:   key,
		RowsProcessed: len(snapshot.Rows),
		RevisionID:    revision,
	}, nil
}

// LatestArtifactKey returns the most recent raw artifact key, or "" when no
// snapshot has ever been ingested. Raw keys embed a UTC timestamp, so the
// lexical maximum is the newest.
func (c *Controller) LatestArtifactKey(ctx context.Context) (string, error) {
	keys, err := c.store.List(ctx, RawPrefix)
	if err != nil {
		return "", err
	}
	latest := ""
	for _, k := range keys {
		if k > latest {
			latest = k
		}
	}
	return latest, nil
}

// hashSnapshot returns the SHA-1 of the canonical JSON of the scraped
// payload, excluding audit fields.
func hashSnapshot(s *Snapshot) string {
	data, _ := json.Marshal(s)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
