// Package layout centralizes the storage key conventions for the typed and
// curated layers: {layer}/{source}/year=<year>/..., with curated artifacts
// additionally nested under snapshot_date=<date>.
package layout

import "fmt"

const (
	// GDPProcessedPrefix is the typed layer for World Bank GDP records.
	GDPProcessedPrefix = "processed/world_bank_gdp"
	// CO2ProcessedPrefix is the typed layer for Wikipedia CO2 records.
	CO2ProcessedPrefix = "processed/wikipedia_co2"
	// MappingKey is the single-artifact country mapping table.
	MappingKey = "processed/country_mapping/country_mapping.jsonl"
	// CuratedPrefix is the curated econ/environment layer.
	CuratedPrefix = "curated/env_econ_country_year"
)

// GDPPartitionKey returns the typed World Bank artifact key for a year.
func GDPPartitionKey(year int) string {
	return fmt.Sprintf("%s/year=%d/processed_worldbank_gdp_per_capita.jsonl", GDPProcessedPrefix, year)
}

// CO2PartitionKey returns the typed Wikipedia artifact key for a year.
func CO2PartitionKey(year int) string {
	return fmt.Sprintf("%s/year=%d/processed_wikipedia_co2_per_capita.jsonl", CO2ProcessedPrefix, year)
}

// CuratedPartitionKey returns the curated artifact key for a year and a
// snapshot date (YYYYMMDD). Re-running on a later date produces a new,
// independently addressable snapshot.
func CuratedPartitionKey(year int, snapshotDate string) string {
	return fmt.Sprintf("%s/year=%d/snapshot_date=%s/curated_econ_environment_country_year.jsonl",
		CuratedPrefix, year, snapshotDate)
}
