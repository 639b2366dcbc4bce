// Package commands implements the CLI subcommands for the ecopipe binary.
package commands

import (
	"fmt"
	"os"

	"github.com/ecopipe-systems/ecopipe/internal/config"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	"github.com/ecopipe-systems/ecopipe/internal/metastore"
	ddbmeta "github.com/ecopipe-systems/ecopipe/internal/metastore/dynamodb"
	localmeta "github.com/ecopipe-systems/ecopipe/internal/metastore/local"
	"github.com/ecopipe-systems/ecopipe/internal/pipeline"
	"github.com/ecopipe-systems/ecopipe/internal/storage"
	localstore "github.com/ecopipe-systems/ecopipe/internal/storage/local"
	s3store "github.com/ecopipe-systems/ecopipe/internal/storage/s3"
)

// newBackends creates the configured storage and metadata backends.
func newBackends(cfg *config.Config) (storage.Store, metastore.Store, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return localstore.New(cfg.Local.DataDir), localmeta.New(cfg.Local.MetadataFile), nil
	case config.BackendAWS:
		store, err := s3store.New(cfg.AWS.Bucket, cfg.AWS.BasePrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("creating S3 store: %w", err)
		}
		meta, err := ddbmeta.New(cfg.AWS.DynamoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("creating DynamoDB store: %w", err)
		}
		return store, meta, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// newPipeline assembles the full pipeline from config: backends, source
// clients, ingestion controllers, and the mapping resolver.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	store, meta, err := newBackends(cfg)
	if err != nil {
		return nil, err
	}

	var wbClientOpts []worldbank.HTTPClientOption
	if cfg.Sources.WorldBank.BaseURL != "" {
		wbClientOpts = append(wbClientOpts, worldbank.WithBaseURL(cfg.Sources.WorldBank.BaseURL))
	}
	var wbOpts []worldbank.ControllerOption
	if cfg.Sources.WorldBank.IndicatorID != "" {
		wbOpts = append(wbOpts, worldbank.WithIndicator(cfg.Sources.WorldBank.IndicatorID))
	}
	gdp := worldbank.NewController(store, meta, worldbank.NewHTTPClient(wbClientOpts...), wbOpts...)

	var wikiOpts []wikipedia.HTTPClientOption
	if cfg.Sources.Wikipedia.APIBaseURL != "" {
		wikiOpts = append(wikiOpts, wikipedia.WithAPIBaseURL(cfg.Sources.Wikipedia.APIBaseURL))
	}
	if cfg.Sources.Wikipedia.PageTitle != "" {
		wikiOpts = append(wikiOpts, wikipedia.WithPageTitle(cfg.Sources.Wikipedia.PageTitle))
	}
	co2 := wikipedia.NewController(store, meta, wikipedia.NewHTTPClient(wikiOpts...))

	overrides := mapping.DefaultOverridesCSV
	if cfg.OverridesPath != "" {
		overrides, err = os.ReadFile(cfg.OverridesPath)
		if err != nil {
			return nil, fmt.Errorf("reading overrides %s: %w", cfg.OverridesPath, err)
		}
	}
	resolver := mapping.NewResolver(store, mapping.WithOverridesCSV(overrides))

	return pipeline.New(meta, store, gdp, co2, resolver), nil
}
