// Package types defines the shared domain types for the ecopipe pipeline:
// metadata runs, typed record schemas for both sources, the country mapping
// table, and the curated join output.
package types

import "time"

// Run is one bookkeeping record spanning the start and terminal outcome of a
// single pipeline stage execution. Once a run reaches a terminal status it is
// never mutated again; the run ledger is an immutable audit history.
type Run struct {
	IngestionRunID string     `json:"ingestion_run_id"`
	RunScope       string     `json:"run_scope"`
	Status         RunStatus  `json:"status"`
	StartTS        time.Time  `json:"start_ts"`
	EndTS          *time.Time `json:"end_ts,omitempty"`
	RowsProcessed  *int       `json:"rows_processed,omitempty"`
	LastCheckpoint string     `json:"last_checkpoint,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// GDPRecord is the typed projection of one World Bank indicator observation.
type GDPRecord struct {
	CountryCode     string    `json:"country_code"`
	CountryName     string    `json:"country_name"`
	Year            int       `json:"year"`
	GDPPerCapitaUSD *float64  `json:"gdp_per_capita_usd"`
	IndicatorID     string    `json:"indicator_id"`
	IndicatorName   string    `json:"indicator_name"`
	IngestionRunID  string    `json:"ingestion_run_id"`
	IngestionTS     time.Time `json:"ingestion_ts"`
	DataSource      string    `json:"data_source"`
}

// CO2Record is the typed projection of one Wikipedia CO2-per-capita row,
// already unpivoted to one record per (country, year).
type CO2Record struct {
	CountryName           string    `json:"country_name"`
	CountryNameNormalized string    `json:"country_name_normalized"`
	CountryCode           string    `json:"country_code,omitempty"`
	Year                  int       `json:"year"`
	CO2TonsPerCapita      *float64  `json:"co2_tons_per_capita"`
	Notes                 string    `json:"notes,omitempty"`
	IngestionRunID        string    `json:"ingestion_run_id"`
	IngestionTS           time.Time `json:"ingestion_ts"`
	DataSource            string    `json:"data_source"`
}

// MappingEntry is one row of the canonical country mapping table, keyed by
// the normalized country name.
type MappingEntry struct {
	CountryNameNormalized string `json:"country_name_normalized"`
	CountryCode           string `json:"country_code"`
	CountryName           string `json:"country_name"`
	SourcePrecedence      string `json:"source_precedence"`
}

// CuratedRecord is one row of the curated econ/environment dataset, keyed by
// (country_code, year) within a snapshot.
type CuratedRecord struct {
	CountryCode         string    `json:"country_code"`
	CountryName         string    `json:"country_name"`
	Year                int       `json:"year"`
	GDPPerCapitaUSD     float64   `json:"gdp_per_capita_usd"`
	CO2TonsPerCapita    float64   `json:"co2_tons_per_capita"`
	CO2Per1000USDGDP    *float64  `json:"co2_per_1000usd_gdp"`
	GDPSourceSystem     string    `json:"gdp_source_system"`
	CO2SourceSystem     string    `json:"co2_source_system"`
	FirstIngestionRunID string    `json:"first_ingestion_run_id"`
	LastUpdateRunID     string    `json:"last_update_run_id"`
	LastUpdateTS        time.Time `json:"last_update_ts"`
}

// StageResult reports the outcome of one pipeline stage in the invocation
// summary.
type StageResult struct {
	Stage         Stage     `json:"stage"`
	RunScope      string    `json:"run_scope"`
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	RowsProcessed int       `json:"rows_processed"`
	ArtifactKeys  []string  `json:"artifact_keys,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// Summary is the result of one full pipeline invocation.
type Summary struct {
	Stages []StageResult `json:"stages"`
}

// Result returns the stage result for the given stage, or nil if the stage
// was never reached.
func (s *Summary) Result(stage Stage) *StageResult {
	for i := range s.Stages {
		if s.Stages[i].Stage == stage {
			return &s.Stages[i]
		}
	}
	return nil
}

// Failed reports whether any executed stage ended FAILED.
func (s *Summary) Failed() bool {
	for _, r := range s.Stages {
		if r.Status == RunFailed {
			return true
		}
	}
	return false
}
