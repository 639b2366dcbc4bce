// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	RunsStarted              = expvar.NewInt("runs_started")
	RunsFailed               = expvar.NewInt("runs_failed")
	RowsIngested             = expvar.NewInt("rows_ingested")
	RowsTyped                = expvar.NewInt("rows_typed")
	RowsDroppedUnparseable   = expvar.NewInt("rows_dropped_unparseable")
	SnapshotFetchesSkipped   = expvar.NewInt("snapshot_fetches_skipped")
	JoinRowsEmitted          = expvar.NewInt("join_rows_emitted")
	JoinRowsDroppedNoMapping = expvar.NewInt("join_rows_dropped_no_mapping")
	JoinRowsDroppedNoMatch   = expvar.NewInt("join_rows_dropped_no_match")
)
