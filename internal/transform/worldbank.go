// Package transform projects raw artifacts into the typed layer: a fixed
// column schema with enforced types, partitioned by year. Transforms are pure
// functions of their raw input and never touch checkpoints.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/metrics"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Result reports one transform stage execution.
type Result struct {
	ArtifactKeys []string
	Rows         int
	RowsDropped  int // rows whose key columns could not be parsed
}

// GDP reads a raw World Bank artifact and writes one typed artifact per
// year partition. Rows missing the country code, country name, or a parseable
// year are dropped and counted; a missing measure degrades to null.
func GDP(ctx context.Context, store storage.Store, rawKey string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := storage.ReadTable[worldbank.RawRecord](ctx, store, rawKey)
	if err != nil {
		return nil, fmt.Errorf("reading raw artifact %s: %w", rawKey, err)
	}

	partitions := map[int][]types.GDPRecord{}
	dropped := 0
	for _, rec := range raw {
		year, ok := rec.Year()
		if !ok || rec.CountryISO3Code == "" || rec.Country.Value == "" {
			dropped++
			continue
		}
		partitions[year] = append(partitions[year], types.GDPRecord{
			CountryCode:     rec.CountryISO3Code,
			CountryName:     rec.Country.Value,
			Year:            year,
			GDPPerCapitaUSD: rec.Value,
			IndicatorID:     rec.Indicator.ID,
			IndicatorName:   rec.Indicator.Value,
			IngestionRunID:  rec.IngestionRunID,
			IngestionTS:     rec.IngestionTS,
			DataSource:      rec.DataSource,
		})
	}

	years := make([]int, 0, len(partitions))
	for y := range partitions {
		years = append(years, y)
	}
	sort.Ints(years)

	result := &Result{RowsDropped: dropped}
	for _, y := range years {
		key := layout.GDPPartitionKey(y)
		if _, err := storage.WriteTable(ctx, store, key, partitions[y]); err != nil {
			return nil, fmt.Errorf("writing partition %s: %w", key, err)
		}
		result.ArtifactKeys = append(result.ArtifactKeys, key)
		result.Rows += len(partitions[y])
	}

	metrics.RowsTyped.Add(int64(result.Rows))
	metrics.RowsDroppedUnparseable.Add(int64(dropped))
	if dropped > 0 {
		logger.Warn("dropped raw world bank rows with unparseable keys", "rows", dropped)
	}
	return result, nil
}
