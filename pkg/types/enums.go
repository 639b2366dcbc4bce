package types

// RunStatus is the lifecycle status of a metadata run.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)

// Stage identifies one step of the pipeline state machine.
type Stage string

const (
	StageIngestGDP      Stage = "INGEST_GDP"
	StageTransformGDP   Stage = "TRANSFORM_GDP"
	StageResolveMapping Stage = "RESOLVE_MAPPING"
	StageIngestCO2      Stage = "INGEST_CO2"
	StageTransformCO2   Stage = "TRANSFORM_CO2"
	StageJoin           Stage = "JOIN"
)

// Stages lists all pipeline stages in execution order.
var Stages = []Stage{
	StageIngestGDP,
	StageTransformGDP,
	StageResolveMapping,
	StageIngestCO2,
	StageTransformCO2,
	StageJoin,
}

// Run scopes recorded in the metadata store, one per stage.
const (
	ScopeWorldBankAPI       = "world_bank_api"
	ScopeWorldBankProcessed = "world_bank_processed"
	ScopeCountryMapping     = "country_mapping"
	ScopeWikipediaCO2       = "wikipedia_co2"
	ScopeWikipediaProcessed = "wikipedia_co2_processed"
	ScopeCuratedJoin        = "curated_join"
)

// Data source identifiers stamped on every ingested record.
const (
	SourceWorldBank = "world_bank_api"
	SourceWikipedia = "wikipedia_co2"
)

// Checkpoint keys tracked in the metadata store.
const (
	CheckpointWorldBankYear     = "last_year_loaded_world_bank"
	CheckpointWikipediaRevision = "wikipedia_co2_last_revision_id"
)

// Mapping precedence values. Overrides always win over the base source.
const (
	PrecedenceWorldBank = "world_bank"
	PrecedenceOverride  = "override"
)
