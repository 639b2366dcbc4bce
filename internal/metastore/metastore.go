// Package metastore defines the metadata/checkpoint port: a run ledger plus a
// flat key/value checkpoint map. Implementations back it with a local JSON
// file or a DynamoDB table.
package metastore

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

var (
	// ErrStoreUnavailable indicates the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("metadata store unavailable")
	// ErrUnknownRun indicates the run id was never started.
	ErrUnknownRun = errors.New("unknown run")
	// ErrInvalidTransition indicates the run is already terminal.
	ErrInvalidTransition = errors.New("run already terminal")
)

// EndRunOptions carries the optional terminal fields of a run record.
type EndRunOptions struct {
	RowsProcessed  *int
	LastCheckpoint string
	ErrorMessage   string
}

// Store is the metadata/checkpoint backend interface. Every call is a single
// durable read or write; there is no transaction spanning runs and
// checkpoints, so a crash between StartRun and EndRun leaves a permanently
// RUNNING run that only shows up in the audit listing.
type Store interface {
	// StartRun allocates a new run id and persists the run with status RUNNING.
	StartRun(ctx context.Context, scope string) (string, error)

	// EndRun applies the terminal update to a run. It fails with ErrUnknownRun
	// if the run was never started and ErrInvalidTransition if it is already
	// terminal.
	EndRun(ctx context.Context, runID string, status types.RunStatus, opts EndRunOptions) (*types.Run, error)

	// SaveCheckpoint persists a checkpoint value for a source, overwriting any
	// previous value.
	SaveCheckpoint(ctx context.Context, source, value string) error

	// LoadCheckpoint returns the checkpoint for a source, or def when no
	// checkpoint has been saved yet.
	LoadCheckpoint(ctx context.Context, source, def string) (string, error)

	// ListRuns returns runs newest-first, optionally filtered by scope
	// (empty scope = all). Used for audit only, never for control flow.
	ListRuns(ctx context.Context, scope string) ([]types.Run, error)
}

// NewRunID returns a fresh, lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// IntPtr is a small helper for EndRunOptions.RowsProcessed.
func IntPtr(n int) *int { return &n }
