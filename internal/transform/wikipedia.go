package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	"github.com/ecopipe-systems/ecopipe/internal/metrics"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Column headers of the scraped per-capita emissions table.
const (
	ColLocation       = "Location"
	ColEmissions2023  = "Emissions per capita (tons per year)"
	ColChangeFrom2000 = "% change from 2000"
)

// The scraped table carries exactly two periods.
const (
	YearRecent   = 2023
	YearBaseline = 2000
)

// CO2 reads a raw Wikipedia snapshot artifact and writes one typed artifact
// per year partition, unpivoting the wide table into one record per
// (country, year). The country mapping, when it has a matching normalized
// name, fills in the canonical code and name; rows without a match keep an
// empty code and are resolved or dropped at join time. Unparseable measures
// degrade to null; rows without a location are dropped and counted.
func CO2(ctx context.Context, store storage.Store, rawKey string, entries []types.MappingEntry, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rawKey == "" {
		// No snapshot has ever been ingested; nothing to project.
		return &Result{}, nil
	}

	raw, err := storage.ReadTable[wikipedia.RawSnapshot](ctx, store, rawKey)
	if err != nil {
		return nil, fmt.Errorf("reading raw artifact %s: %w", rawKey, err)
	}

	byKey := make(map[string]types.MappingEntry, len(entries))
	for _, e := range entries {
		if _, ok := byKey[e.CountryNameNormalized]; !ok {
			byKey[e.CountryNameNormalized] = e
		}
	}

	partitions := map[int][]types.CO2Record{}
	dropped := 0
	for _, snapshot := range raw {
		for _, row := range snapshot.Rows {
			name := row[ColLocation]
			if name == "" {
				dropped++
				continue
			}
			normalized := mapping.Normalize(name)

			code := ""
			if entry, ok := byKey[normalized]; ok {
				code = entry.CountryCode
				name = entry.CountryName
			}

			measures := map[int]*float64{
				YearRecent:   ParseMeasure(row[ColEmissions2023]),
				YearBaseline: ParseMeasure(row[ColChangeFrom2000]),
			}
			for year, measure := range measures {
				if measure == nil {
					continue
				}
				partitions[year] = append(partitions[year], types.CO2Record{
					CountryName:           name,
					CountryNameNormalized: normalized,
					CountryCode:           code,
					Year:                  year,
					CO2TonsPerCapita:      measure,
					IngestionRunID:        snapshot.IngestionRunID,
					IngestionTS:           snapshot.IngestionTS,
					DataSource:            snapshot.DataSource,
				})
			}
		}
	}

	years := make([]int, 0, len(partitions))
	for y := range partitions {
		years = append(years, y)
	}
	sort.Ints(years)

	result := &Result{RowsDropped: dropped}
	for _, y := range years {
		key := layout.CO2PartitionKey(y)
		if _, err := storage.WriteTable(ctx, store, key, partitions[y]); err != nil {
			return nil, fmt.Errorf("writing partition %s: %w", key, err)
		}
		result.ArtifactKeys = append(result.ArtifactKeys, key)
		result.Rows += len(partitions[y])
	}

	metrics.RowsTyped.Add(int64(result.Rows))
	metrics.RowsDroppedUnparseable.Add(int64(dropped))
	if dropped > 0 {
		logger.Warn("dropped raw wikipedia rows without a location", "rows", dropped)
	}
	return result, nil
}
