// Package metastoretest provides an in-memory metastore.Store for tests.
package metastoretest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecopipe-systems/ecopipe/internal/lifecycle"
	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Compile-time interface satisfaction check.
var _ metastore.Store = (*Store)(nil)

// Store is an in-memory metastore.Store implementation for testing.
type Store struct {
	mu          sync.Mutex
	runs        []types.Run
	checkpoints map[string]string

	// FailStartRun forces StartRun to report the store as unavailable.
	FailStartRun bool
	// Now is the injectable time source; defaults to time.Now.
	Now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		checkpoints: map[string]string{},
		Now:         time.Now,
	}
}

func (s *Store) StartRun(_ context.Context, scope string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailStartRun {
		return "", metastore.ErrStoreUnavailable
	}

	runID := metastore.NewRunID()
	s.runs = append(s.runs, types.Run{
		IngestionRunID: runID,
		RunScope:       scope,
		Status:         types.RunRunning,
		StartTS:        s.Now().UTC(),
	})
	return runID, nil
}

func (s *Store) EndRun(_ context.Context, runID string, status types.RunStatus, opts metastore.EndRunOptions) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].IngestionRunID != runID {
			continue
		}
		run := &s.runs[i]
		if lifecycle.IsTerminal(run.Status) {
			return nil, fmt.Errorf("%w: run %s is %s", metastore.ErrInvalidTransition, runID, run.Status)
		}
		end := s.Now().UTC()
		run.EndTS = &end
		run.Status = status
		if opts.RowsProcessed != nil {
			run.RowsProcessed = opts.RowsProcessed
		}
		if opts.LastCheckpoint != "" {
			run.LastCheckpoint = opts.LastCheckpoint
		}
		if opts.ErrorMessage != "" {
			run.ErrorMessage = opts.ErrorMessage
		}
		out := *run
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", metastore.ErrUnknownRun, runID)
}

func (s *Store) SaveCheckpoint(_ context.Context, source, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[source] = value
	return nil
}

func (s *Store) LoadCheckpoint(_ context.Context, source, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.checkpoints[source]; ok {
		return v, nil
	}
	return def, nil
}

func (s *Store) ListRuns(_ context.Context, scope string) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []types.Run
	for _, r := range s.runs {
		if scope == "" || r.RunScope == scope {
			runs = append(runs, r)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTS.After(runs[j].StartTS)
	})
	return runs, nil
}

// Checkpoint returns the raw stored checkpoint and whether it exists.
func (s *Store) Checkpoint(source string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.checkpoints[source]
	return v, ok
}

// Runs returns a copy of all recorded runs in insertion order.
func (s *Store) Runs() []types.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Run, len(s.runs))
	copy(out, s.runs)
	return out
}
