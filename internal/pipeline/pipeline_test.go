package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	"github.com/ecopipe-systems/ecopipe/internal/metastore/metastoretest"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	localstore "github.com/ecopipe-systems/ecopipe/internal/storage/local"
	"github.com/ecopipe-systems/ecopipe/internal/transform"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWorldBank struct {
	observations []worldbank.Observation
	err          error
}

func (f *fakeWorldBank) FetchObservations(_ context.Context, _ string) ([]worldbank.Observation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.observations, nil
}

type fakeWikipedia struct {
	revisionID int64
	rows       []map[string]string
	err        error
}

func (f *fakeWikipedia) FetchRevisionID(_ context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.revisionID, nil
}

func (f *fakeWikipedia) FetchSnapshot(_ context.Context) (*wikipedia.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &wikipedia.Snapshot{
		RevisionID: f.revisionID,
		Headers:    []string{transform.ColLocation, transform.ColEmissions2023, transform.ColChangeFrom2000},
		Rows:       f.rows,
	}, nil
}

func obs(code, name, date string, value float64) worldbank.Observation {
	return worldbank.Observation{
		Country:         worldbank.IndicatorRef{Value: name},
		CountryISO3Code: code,
		Date:            date,
		Value:           &value,
	}
}

func newTestPipeline(t *testing.T, wb worldbank.Client, wiki wikipedia.Client) (*Pipeline, *localstore.Store, *metastoretest.Store) {
	t.Helper()
	store := localstore.New(t.TempDir())
	meta := metastoretest.New()
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	gdp := worldbank.NewController(store, meta, wb, worldbank.WithClock(clock))
	co2 := wikipedia.NewController(store, meta, wiki, wikipedia.WithClock(clock))
	resolver := mapping.NewResolver(store)

	return New(meta, store, gdp, co2, resolver, WithClock(clock)), store, meta
}

func TestExecuteEndToEnd(t *testing.T) {
	ctx := context.Background()
	wb := &fakeWorldBank{observations: []worldbank.Observation{
		obs("USA", "United States", "2023", 81000),
		obs("DEU", "Germany", "2023", 54000),
	}}
	wiki := &fakeWikipedia{revisionID: 777, rows: []map[string]string{
		{transform.ColLocation: "United States", transform.ColEmissions2023: "14.3"},
		{transform.ColLocation: "Germany", transform.ColEmissions2023: "7.1"},
	}}
	p, store, meta := newTestPipeline(t, wb, wiki)

	summary, err := p.Execute(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, summary.Stages, len(types.Stages))
	for i, stage := range types.Stages {
		assert.Equal(t, stage, summary.Stages[i].Stage)
		assert.Equal(t, types.RunSuccess, summary.Stages[i].Status)
	}
	assert.False(t, summary.Failed())

	// One metadata run per stage, all terminal.
	runs := meta.Runs()
	require.Len(t, runs, len(types.Stages))
	for _, r := range runs {
		assert.Equal(t, types.RunSuccess, r.Status)
	}

	// The curated snapshot carries both measures and the derived metric.
	curated, err := storage.ReadTable[types.CuratedRecord](
		ctx, store, layout.CuratedPartitionKey(2023, "20260301"))
	require.NoError(t, err)
	require.Len(t, curated, 2)
	for _, row := range curated {
		assert.NotZero(t, row.GDPPerCapitaUSD)
		assert.NotZero(t, row.CO2TonsPerCapita)
		require.NotNil(t, row.CO2Per1000USDGDP)
	}

	// Both checkpoints advanced.
	year, _ := meta.Checkpoint(types.CheckpointWorldBankYear)
	assert.Equal(t, "2023", year)
	rev, _ := meta.Checkpoint(types.CheckpointWikipediaRevision)
	assert.Equal(t, "777", rev)
}

func TestExecuteHaltsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	wb := &fakeWorldBank{observations: []worldbank.Observation{
		obs("USA", "United States", "2023", 81000),
	}}
	wiki := &fakeWikipedia{err: errors.New("mediawiki down")}
	p, _, meta := newTestPipeline(t, wb, wiki)

	summary, err := p.Execute(ctx, Options{})
	require.Error(t, err)
	assert.True(t, summary.Failed())

	// First three stages succeed, INGEST_CO2 fails, nothing after runs.
	require.Len(t, summary.Stages, 4)
	assert.Equal(t, types.StageIngestCO2, summary.Stages[3].Stage)
	assert.Equal(t, types.RunFailed, summary.Stages[3].Status)
	assert.Contains(t, summary.Stages[3].ErrorMessage, "mediawiki down")
	assert.Nil(t, summary.Result(types.StageTransformCO2))
	assert.Nil(t, summary.Result(types.StageJoin))

	// The failed stage is recorded as FAILED in the ledger; completed stages
	// are not rolled back.
	runs := meta.Runs()
	require.Len(t, runs, 4)
	assert.Equal(t, types.RunFailed, runs[3].Status)
	assert.Contains(t, runs[3].ErrorMessage, "mediawiki down")

	year, _ := meta.Checkpoint(types.CheckpointWorldBankYear)
	assert.Equal(t, "2023", year)
	_, ok := meta.Checkpoint(types.CheckpointWikipediaRevision)
	assert.False(t, ok)
}

// When the revision guard skips the fetch, the transform falls back to the
// newest previously ingested snapshot and the join still runs.
func TestExecuteWithRevisionSkipReusesSnapshot(t *testing.T) {
	ctx := context.Background()
	wb := &fakeWorldBank{observations: []worldbank.Observation{
		obs("USA", "United States", "2023", 81000),
	}}
	wiki := &fakeWikipedia{revisionID: 777, rows: []map[string]string{
		{transform.ColLocation: "United States", transform.ColEmissions2023: "14.3"},
	}}
	p, store, meta := newTestPipeline(t, wb, wiki)

	_, err := p.Execute(ctx, Options{})
	require.NoError(t, err)

	rawKeys, err := store.List(ctx, wikipedia.RawPrefix)
	require.NoError(t, err)
	require.Len(t, rawKeys, 1)

	// Second invocation: same revision, so no new raw artifact.
	summary, err := p.Execute(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, summary.Failed())

	rawKeys, err = store.List(ctx, wikipedia.RawPrefix)
	require.NoError(t, err)
	assert.Len(t, rawKeys, 1)

	ingest := summary.Result(types.StageIngestCO2)
	require.NotNil(t, ingest)
	assert.Empty(t, ingest.ArtifactKeys)
	assert.Equal(t, 0, ingest.RowsProcessed)

	// The join still produced a curated snapshot from the reused raw data.
	join := summary.Result(types.StageJoin)
	require.NotNil(t, join)
	assert.Equal(t, 1, join.RowsProcessed)

	runs := meta.Runs()
	assert.Len(t, runs, 2*len(types.Stages))
}

func TestExecuteStartRunFailureRecorded(t *testing.T) {
	ctx := context.Background()
	wb := &fakeWorldBank{}
	wiki := &fakeWikipedia{revisionID: 1}
	p, _, meta := newTestPipeline(t, wb, wiki)
	meta.FailStartRun = true

	summary, err := p.Execute(ctx, Options{})
	require.Error(t, err)
	require.Len(t, summary.Stages, 1)
	assert.Equal(t, types.StageIngestGDP, summary.Stages[0].Stage)
	assert.Equal(t, types.RunFailed, summary.Stages[0].Status)
	assert.Empty(t, summary.Stages[0].RunID)
}
