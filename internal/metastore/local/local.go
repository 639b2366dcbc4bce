// Package local implements the metastore.Store interface on a single local
// JSON file, mirroring the layout of the DynamoDB table so the two backends
// stay interchangeable.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ecopipe-systems/ecopipe/internal/lifecycle"
	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Compile-time interface satisfaction check.
var _ metastore.Store = (*Store)(nil)

// Store persists runs and checkpoints in one JSON document on disk.
type Store struct {
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a JSON-file-backed store at the given path. The file is created
// lazily on first write.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// document is the on-disk shape of the store.
type document struct {
	Runs        []types.Run       `json:"runs"`
	Checkpoints map[string]string `json:"checkpoints"`
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Checkpoints: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", metastore.ErrStoreUnavailable, s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metadata file %s is corrupted: %w", s.path, err)
	}
	if doc.Checkpoints == nil {
		doc.Checkpoints = map[string]string{}
	}
	return &doc, nil
}

// save writes the document atomically: temp file in the same directory, then
// rename over the target.
func (s *Store) save(doc *document) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %s: %v", metastore.ErrStoreUnavailable, dir, err)
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", metastore.ErrStoreUnavailable, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: renaming %s: %v", metastore.ErrStoreUnavailable, tmp, err)
	}
	return nil
}

// StartRun registers a new RUNNING run and returns its id.
func (s *Store) StartRun(_ context.Context, scope string) (string, error) {
	doc, err := s.load()
	if err != nil {
		return "", err
	}

	runID := metastore.NewRunID()
	doc.Runs = append(doc.Runs, types.Run{
		IngestionRunID: runID,
		RunScope:       scope,
		Status:         types.RunRunning,
		StartTS:        s.now().UTC(),
	})

	if err := s.save(doc); err != nil {
		return "", err
	}
	return runID, nil
}

// EndRun applies the terminal update to a run.
func (s *Store) EndRun(_ context.Context, runID string, status types.RunStatus, opts metastore.EndRunOptions) (*types.Run, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var target *types.Run
	for i := len(doc.Runs) - 1; i >= 0; i-- {
		if doc.Runs[i].IngestionRunID == runID {
			target = &doc.Runs[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", metastore.ErrUnknownRun, runID)
	}
	if lifecycle.IsTerminal(target.Status) {
		return nil, fmt.Errorf("%w: run %s is %s", metastore.ErrInvalidTransition, runID, target.Status)
	}
	if err := lifecycle.Transition(target.Status, status); err != nil {
		return nil, fmt.Errorf("%w: %v", metastore.ErrInvalidTransition, err)
	}

	end := s.now().UTC()
	target.EndTS = &end
	target.Status = status
	if opts.RowsProcessed != nil {
		target.RowsProcessed = opts.RowsProcessed
	}
	if opts.LastCheckpoint != "" {
		target.LastCheckpoint = opts.LastCheckpoint
	}
	if opts.ErrorMessage != "" {
		target.ErrorMessage = opts.ErrorMessage
	}

	updated := *target
	if err := s.save(doc); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SaveCheckpoint overwrites the checkpoint value for a source.
func (s *Store) SaveCheckpoint(_ context.Context, source, value string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Checkpoints[source] = value
	return s.save(doc)
}

// LoadCheckpoint returns the stored value for a source, or def when absent.
func (s *Store) LoadCheckpoint(_ context.Context, source, def string) (string, error) {
	doc, err := s.load()
	if err != nil {
		return "", err
	}
	if v, ok := doc.Checkpoints[source]; ok {
		return v, nil
	}
	return def, nil
}

// ListRuns returns runs newest-first, optionally filtered by scope.
func (s *Store) ListRuns(_ context.Context, scope string) ([]types.Run, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var runs []types.Run
	for _, r := range doc.Runs {
		if scope == "" || r.RunScope == scope {
			runs = append(runs, r)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTS.After(runs[j].StartTS)
	})
	return runs, nil
}

// Checkpoints returns a copy of the full checkpoint map, for audit tooling.
func (s *Store) Checkpoints(_ context.Context) (map[string]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Checkpoints))
	for k, v := range doc.Checkpoints {
		out[k] = v
	}
	return out, nil
}
