// Package mapping builds the canonical country mapping table used as the
// join key between the two sources. The table is rebuilt wholesale on every
// resolver run — never merged incrementally — so a changed manual override
// always propagates to existing keys.
package mapping

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ecopipe-systems/ecopipe/internal/layout"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// DefaultOverridesCSV is the override table shipped with the binary. It is
// applied whenever no override file is configured, so deployments without a
// filesystem (the scheduled Lambda) still resolve the known naming conflicts
// between the two sources.
//
//go:embed country_mapping_overrides.csv
var DefaultOverridesCSV []byte

// Result reports one resolver run.
type Result struct {
	ArtifactKey string
	Entries     int
}

// Resolver builds and persists the country mapping table.
type Resolver struct {
	store        storage.Store
	overridesCSV []byte
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverridesCSV provides the manual override table. Expected columns:
// country_name_normalized, country_code, country_name.
func WithOverridesCSV(data []byte) Option {
	return func(r *Resolver) { r.overridesCSV = data }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over the given storage backend.
func NewResolver(store storage.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve scans every typed World Bank partition for (code, name) pairs,
// de-duplicates by normalized name keeping the first occurrence, applies the
// manual overrides on top (overrides always win, and override-only keys are
// inserted), and persists the result as a single table artifact.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	base, err := r.buildBase(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := ApplyOverrides(base, r.overridesCSV)
	if err != nil {
		return nil, err
	}

	if _, err := storage.WriteTable(ctx, r.store, layout.MappingKey, entries); err != nil {
		return nil, fmt.Errorf("persisting mapping table: %w", err)
	}

	r.logger.Info("country mapping rebuilt", "entries", len(entries), "artifact", layout.MappingKey)
	return &Result{ArtifactKey: layout.MappingKey, Entries: len(entries)}, nil
}

func (r *Resolver) buildBase(ctx context.Context) ([]types.MappingEntry, error) {
	keys, err := r.store.List(ctx, layout.GDPProcessedPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing typed partitions: %w", err)
	}
	sort.Strings(keys)

	var entries []types.MappingEntry
	seen := map[string]bool{}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		records, err := storage.ReadTable[types.GDPRecord](ctx, r.store, key)
		if err != nil {
			return nil, fmt.Errorf("reading typed partition %s: %w", key, err)
		}
		for _, rec := range records {
			if rec.CountryCode == "" || rec.CountryName == "" {
				continue
			}
			normalized := Normalize(rec.CountryName)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			entries = append(entries, types.MappingEntry{
				CountryNameNormalized: normalized,
				CountryCode:           rec.CountryCode,
				CountryName:           rec.CountryName,
				SourcePrecedence:      types.PrecedenceWorldBank,
			})
		}
	}
	return entries, nil
}

// ApplyOverrides layers the manual override CSV over the base entries.
// Regardless of insertion order, a key present in both always resolves to the
// override's code and name with precedence "override". Entries are returned
// sorted by normalized name for deterministic artifacts.
func ApplyOverrides(base []types.MappingEntry, overridesCSV []byte) ([]types.MappingEntry, error) {
	index := make(map[string]int, len(base))
	entries := make([]types.MappingEntry, len(base))
	copy(entries, base)
	for i, e := range entries {
		index[e.CountryNameNormalized] = i
	}

	if len(overridesCSV) > 0 {
		overrides, err := parseOverrides(overridesCSV)
		if err != nil {
			return nil, err
		}
		for _, o := range overrides {
			if i, ok := index[o.CountryNameNormalized]; ok {
				entries[i] = o
			} else {
				index[o.CountryNameNormalized] = len(entries)
				entries = append(entries, o)
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CountryNameNormalized < entries[j].CountryNameNormalized
	})
	return entries, nil
}

func parseOverrides(data []byte) ([]types.MappingEntry, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading overrides header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"country_name_normalized", "country_code", "country_name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("overrides CSV missing required column %q", required)
		}
	}

	var overrides []types.MappingEntry
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading overrides row: %w", err)
		}
		normalized := Normalize(row[col["country_name_normalized"]])
		if normalized == "" {
			continue
		}
		overrides = append(overrides, types.MappingEntry{
			CountryNameNormalized: normalized,
			CountryCode:           strings.TrimSpace(row[col["country_code"]]),
			CountryName:           strings.TrimSpace(row[col["country_name"]]),
			SourcePrecedence:      types.PrecedenceOverride,
		})
	}
	return overrides, nil
}

// Load reads the persisted mapping table. A missing table is not an error;
// it simply yields no entries.
func Load(ctx context.Context, store storage.Store) ([]types.MappingEntry, error) {
	entries, err := storage.ReadTable[types.MappingEntry](ctx, store, layout.MappingKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}
