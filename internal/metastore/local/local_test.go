package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta", "metadata.json")
	return New(path), path
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	runID, err := s.StartRun(ctx, types.ScopeWorldBankAPI)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := s.EndRun(ctx, runID, types.RunSuccess, metastore.EndRunOptions{
		RowsProcessed:  metastore.IntPtr(42),
		LastCheckpoint: "2024",
	})
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, run.Status)
	assert.Equal(t, 42, *run.RowsProcessed)
	assert.Equal(t, "2024", run.LastCheckpoint)
	require.NotNil(t, run.EndTS)
	assert.False(t, run.EndTS.Before(run.StartTS))
}

func TestEndRunUnknown(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.EndRun(ctx, "nope", types.RunSuccess, metastore.EndRunOptions{})
	assert.ErrorIs(t, err, metastore.ErrUnknownRun)
}

func TestTerminalRunIsImmutable(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	runID, err := s.StartRun(ctx, types.ScopeCuratedJoin)
	require.NoError(t, err)

	_, err = s.EndRun(ctx, runID, types.RunFailed, metastore.EndRunOptions{
		ErrorMessage: "upstream timeout",
	})
	require.NoError(t, err)

	// A second terminal update must be rejected, in either direction.
	_, err = s.EndRun(ctx, runID, types.RunSuccess, metastore.EndRunOptions{})
	assert.ErrorIs(t, err, metastore.ErrInvalidTransition)
	_, err = s.EndRun(ctx, runID, types.RunFailed, metastore.EndRunOptions{})
	assert.ErrorIs(t, err, metastore.ErrInvalidTransition)

	runs, err := s.ListRuns(ctx, types.ScopeCuratedJoin)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "upstream timeout", runs[0].ErrorMessage)
}

func TestCheckpoints(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	v, err := s.LoadCheckpoint(ctx, types.CheckpointWorldBankYear, "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	require.NoError(t, s.SaveCheckpoint(ctx, types.CheckpointWorldBankYear, "2022"))
	require.NoError(t, s.SaveCheckpoint(ctx, types.CheckpointWorldBankYear, "2023"))

	v, err = s.LoadCheckpoint(ctx, types.CheckpointWorldBankYear, "none")
	require.NoError(t, err)
	assert.Equal(t, "2023", v)

	cps, err := s.Checkpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{types.CheckpointWorldBankYear: "2023"}, cps)
}

func TestListRunsNewestFirstAndScoped(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metadata.json")

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(path, WithClock(func() time.Time {
		ts = ts.Add(time.Minute)
		return ts
	}))

	first, err := s.StartRun(ctx, types.ScopeWorldBankAPI)
	require.NoError(t, err)
	second, err := s.StartRun(ctx, types.ScopeWikipediaCO2)
	require.NoError(t, err)
	third, err := s.StartRun(ctx, types.ScopeWorldBankAPI)
	require.NoError(t, err)

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third, all[0].IngestionRunID)
	assert.Equal(t, second, all[1].IngestionRunID)
	assert.Equal(t, first, all[2].IngestionRunID)

	scoped, err := s.ListRuns(ctx, types.ScopeWorldBankAPI)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, third, scoped[0].IngestionRunID)
	assert.Equal(t, first, scoped[1].IngestionRunID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	runID, err := s.StartRun(ctx, types.ScopeCountryMapping)
	require.NoError(t, err)
	require.NoError(t, s.SaveCheckpoint(ctx, types.CheckpointWikipediaRevision, "12345"))

	reopened := New(path)
	runs, err := reopened.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].IngestionRunID)
	assert.Equal(t, types.RunRunning, runs[0].Status)

	v, err := reopened.LoadCheckpoint(ctx, types.CheckpointWikipediaRevision, "")
	require.NoError(t, err)
	assert.Equal(t, "12345", v)
}

func TestCorruptMetadataFileFailsLoudly(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	_, err := s.StartRun(ctx, types.ScopeWorldBankAPI)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = s.ListRuns(ctx, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, metastore.ErrStoreUnavailable))
}
