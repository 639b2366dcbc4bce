package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	localstore "github.com/ecopipe-systems/ecopipe/internal/storage/local"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

func rawGDP(code, name, date string, value *float64) worldbank.RawRecord {
	return worldbank.RawRecord{
		Observation: worldbank.Observation{
			Indicator:       worldbank.IndicatorRef{ID: "NY.GDP.PCAP.CD", Value: "GDP per capita (current US$)"},
			Country:         worldbank.IndicatorRef{Value: name},
			CountryISO3Code: code,
			Date:            date,
			Value:           value,
		},
		IngestionRunID: "01RUN",
		IngestionTS:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DataSource:     types.SourceWorldBank,
	}
}

func TestGDPPartitionsByYear(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	rawKey := "raw/world_bank_gdp/raw.jsonl"
	_, err := storage.WriteTable(ctx, store, rawKey, []worldbank.RawRecord{
		rawGDP("USA", "United States", "2022", f64(76000)),
		rawGDP("USA", "United States", "2023", f64(81000)),
		rawGDP("DEU", "Germany", "2023", nil), // null measure survives typing
	})
	require.NoError(t, err)

	res, err := GDP(ctx, store, rawKey, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 0, res.RowsDropped)
	assert.Equal(t, []string{
		layout.GDPPartitionKey(2022),
		layout.GDPPartitionKey(2023),
	}, res.ArtifactKeys)

	y2023, err := storage.ReadTable[types.GDPRecord](ctx, store, layout.GDPPartitionKey(2023))
	require.NoError(t, err)
	require.Len(t, y2023, 2)
	assert.Equal(t, "USA", y2023[0].CountryCode)
	assert.Equal(t, 2023, y2023[0].Year)
	require.NotNil(t, y2023[0].GDPPerCapitaUSD)
	assert.InDelta(t, 81000, *y2023[0].GDPPerCapitaUSD, 1e-9)
	assert.Nil(t, y2023[1].GDPPerCapitaUSD)
	assert.Equal(t, "01RUN", y2023[0].IngestionRunID)
}

func TestGDPDropsUnkeyedRows(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())

	rawKey := "raw/world_bank_gdp/raw.jsonl"
	_, err := storage.WriteTable(ctx, store, rawKey, []worldbank.RawRecord{
		rawGDP("USA", "United States", "2023", f64(81000)),
		rawGDP("", "Aggregates", "2023", f64(1)),           // missing code
		rawGDP("ZZZ", "", "2023", f64(1)),                  // missing name
		rawGDP("FRA", "France", "2019-2023", f64(40000)),   // unparseable period
	})
	require.NoError(t, err)

	res, err := GDP(ctx, store, rawKey, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 3, res.RowsDropped)
}
