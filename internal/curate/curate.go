// Package curate builds the analysis-ready dataset: an inner join of the two
// typed sources on (country_code, year), with a derived emissions-intensity
// metric. Curated snapshots are dated and never overwritten; re-running on a
// later day produces a new snapshot alongside the old one.
package curate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	"github.com/ecopipe-systems/ecopipe/internal/metrics"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Stats counts join outcomes for one curate run. Every candidate row is
// accounted for in exactly one bucket.
type Stats struct {
	RowsEmitted          int `json:"rows_emitted"`
	RowsDroppedNoMapping int `json:"rows_dropped_no_mapping"`
	RowsDroppedNoMatch   int `json:"rows_dropped_no_match"`
}

// Result reports one curate stage execution.
type Result struct {
	ArtifactKeys []string
	Stats        Stats
}

type joinKey struct {
	code string
	year int
}

// Join inner-joins the typed records on (country_code, year). Emissions rows
// without a country code are resolved through the mapping table; rows that
// still have no code are dropped as unmapped. A key is emitted only when both
// sides are present with non-null measures; keys present on a single side, or
// whose measure is null, are dropped as unmatched. Emitted rows stamp the
// curate run's id as both the first and last run, so every row in a snapshot
// traces back to the run that wrote it.
func Join(gdp []types.GDPRecord, co2 []types.CO2Record, entries []types.MappingEntry, runID string, snapshotTS time.Time) ([]types.CuratedRecord, Stats) {
	byName := make(map[string]types.MappingEntry, len(entries))
	for _, e := range entries {
		if _, ok := byName[e.CountryNameNormalized]; !ok {
			byName[e.CountryNameNormalized] = e
		}
	}

	var stats Stats

	gdpSide := map[joinKey]types.GDPRecord{}
	for _, rec := range gdp {
		if rec.CountryCode == "" {
			continue
		}
		gdpSide[joinKey{rec.CountryCode, rec.Year}] = rec
	}

	co2Side := map[joinKey]types.CO2Record{}
	for _, rec := range co2 {
		code := rec.CountryCode
		if code == "" {
			normalized := rec.CountryNameNormalized
			if normalized == "" {
				normalized = mapping.Normalize(rec.CountryName)
			}
			if entry, ok := byName[normalized]; ok {
				code = entry.CountryCode
			}
		}
		if code == "" {
			stats.RowsDroppedNoMapping++
			continue
		}
		rec.CountryCode = code
		co2Side[joinKey{code, rec.Year}] = rec
	}

	keys := make([]joinKey, 0, len(gdpSide))
	seen := map[joinKey]bool{}
	for k := range gdpSide {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range co2Side {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].code < keys[j].code
	})

	var records []types.CuratedRecord
	for _, k := range keys {
		g, gOK := gdpSide[k]
		c, cOK := co2Side[k]
		if !gOK || !cOK || g.GDPPerCapitaUSD == nil || c.CO2TonsPerCapita == nil {
			stats.RowsDroppedNoMatch++
			continue
		}

		gdpValue := *g.GDPPerCapitaUSD
		co2Value := *c.CO2TonsPerCapita

		var intensity *float64
		if gdpValue > 0 {
			v := co2Value * 1000 / gdpValue
			intensity = &v
		}

		records = append(records, types.CuratedRecord{
			CountryCode:         k.code,
			CountryName:         g.CountryName,
			Year:                k.year,
			GDPPerCapitaUSD:     gdpValue,
			CO2TonsPerCapita:    co2Value,
			CO2Per1000USDGDP:    intensity,
			GDPSourceSystem:     g.DataSource,
			CO2SourceSystem:     c.DataSource,
			FirstIngestionRunID: runID,
			LastUpdateRunID:     runID,
			LastUpdateTS:        snapshotTS,
		})
		stats.RowsEmitted++
	}
	return records, stats
}

// Run loads every typed partition from both sources, joins them, and writes
// the curated artifacts for snapshotTS's date, one per year partition.
func Run(ctx context.Context, store storage.Store, entries []types.MappingEntry, runID string, snapshotTS time.Time, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gdp, err := loadAll[types.GDPRecord](ctx, store, layout.GDPProcessedPrefix)
	if err != nil {
		return nil, err
	}
	co2, err := loadAll[types.CO2Record](ctx, store, layout.CO2ProcessedPrefix)
	if err != nil {
		return nil, err
	}

	records, stats := Join(gdp, co2, entries, runID, snapshotTS)

	partitions := map[int][]types.CuratedRecord{}
	for _, rec := range records {
		partitions[rec.Year] = append(partitions[rec.Year], rec)
	}
	years := make([]int, 0, len(partitions))
	for y := range partitions {
		years = append(years, y)
	}
	sort.Ints(years)

	snapshotDate := snapshotTS.UTC().Format("20060102")
	result := &Result{Stats: stats}
	for _, y := range years {
		key := layout.CuratedPartitionKey(y, snapshotDate)
		if _, err := storage.WriteTable(ctx, store, key, partitions[y]); err != nil {
			return nil, fmt.Errorf("writing curated partition %s: %w", key, err)
		}
		result.ArtifactKeys = append(result.ArtifactKeys, key)
	}

	metrics.JoinRowsEmitted.Add(int64(stats.RowsEmitted))
	metrics.JoinRowsDroppedNoMapping.Add(int64(stats.RowsDroppedNoMapping))
	metrics.JoinRowsDroppedNoMatch.Add(int64(stats.RowsDroppedNoMatch))

	logger.Info("curated snapshot written",
		"snapshot_date", snapshotDate,
		"rows_emitted", stats.RowsEmitted,
		"rows_dropped_no_mapping", stats.RowsDroppedNoMapping,
		"rows_dropped_no_match", stats.RowsDroppedNoMatch)
	return result, nil
}

func loadAll[T any](ctx context.Context, store storage.Store, prefix string) ([]T, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing typed partitions under %s: %w", prefix, err)
	}
	sort.Strings(keys)

	var all []T
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		records, err := storage.ReadTable[T](ctx, store, key)
		if err != nil {
			return nil, fmt.Errorf("reading typed partition %s: %w", key, err)
		}
		all = append(all, records...)
	}
	return all, nil
}
