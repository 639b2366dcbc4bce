package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	localstore "github.com/ecopipe-systems/ecopipe/internal/storage/local"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

func writeRawSnapshot(t *testing.T, store storage.Store, rows []map[string]string) string {
	t.Helper()
	key := "raw/wikipedia_co2/raw.jsonl"
	_, err := storage.WriteTable(context.Background(), store, key, []wikipedia.RawSnapshot{{
		IngestionRunID: "01RUN",
		IngestionTS:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DataSource:     types.SourceWikipedia,
		Snapshot: wikipedia.Snapshot{
			RevisionID: 777,
			Headers:    []string{ColLocation, ColEmissions2023, ColChangeFrom2000},
			Rows:       rows,
		},
	}})
	require.NoError(t, err)
	return key
}

func TestCO2UnpivotsBothPeriods(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	rawKey := writeRawSnapshot(t, store, []map[string]string{
		{ColLocation: "United States", ColEmissions2023: "14.3", ColChangeFrom2000: "19.1"},
		{ColLocation: "Germany", ColEmissions2023: "7.1", ColChangeFrom2000: "-"},
	})
	entries := []types.MappingEntry{
		{CountryNameNormalized: "united states", CountryCode: "USA", CountryName: "United States", SourcePrecedence: types.PrecedenceWorldBank},
		{CountryNameNormalized: "germany", CountryCode: "DEU", CountryName: "Germany", SourcePrecedence: types.PrecedenceWorldBank},
	}

	res, err := CO2(ctx, store, rawKey, entries, nil)
	require.NoError(t, err)
	// US contributes both periods; Germany's 2000 measure is missing.
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []string{
		layout.CO2PartitionKey(2000),
		layout.CO2PartitionKey(2023),
	}, res.ArtifactKeys)

	y2000, err := storage.ReadTable[types.CO2Record](ctx, store, layout.CO2PartitionKey(2000))
	require.NoError(t, err)
	require.Len(t, y2000, 1)
	assert.Equal(t, "USA", y2000[0].CountryCode)
	assert.Equal(t, 2000, y2000[0].Year)
	require.NotNil(t, y2000[0].CO2TonsPerCapita)
	assert.InDelta(t, 19.1, *y2000[0].CO2TonsPerCapita, 1e-9)

	y2023, err := storage.ReadTable[types.CO2Record](ctx, store, layout.CO2PartitionKey(2023))
	require.NoError(t, err)
	require.Len(t, y2023, 2)
}

func TestCO2KeepsUnmappedRowsWithoutCode(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	rawKey := writeRawSnapshot(t, store, []map[string]string{
		{ColLocation: "Atlantis", ColEmissions2023: "3.0"},
	})

	res, err := CO2(ctx, store, rawKey, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	y2023, err := storage.ReadTable[types.CO2Record](ctx, store, layout.CO2PartitionKey(2023))
	require.NoError(t, err)
	require.Len(t, y2023, 1)
	assert.Empty(t, y2023[0].CountryCode)
	assert.Equal(t, "atlantis", y2023[0].CountryNameNormalized)
}

func TestCO2DropsRowsWithoutLocation(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	rawKey := writeRawSnapshot(t, store, []map[string]string{
		{ColEmissions2023: "3.0"},
		{ColLocation: "Germany", ColEmissions2023: "7.1"},
	})

	res, err := CO2(ctx, store, rawKey, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, res.RowsDropped)
}

// With no snapshot ever ingested there is nothing to project, and that is not
// an error.
func TestCO2NoRawArtifact(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	res, err := CO2(ctx, store, "", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.Empty(t, res.ArtifactKeys)
}
