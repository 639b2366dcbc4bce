// pipeline Lambda runs the full ingestion pipeline on a schedule.
package main

import (
	"context"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/ecopipe-systems/ecopipe/internal/config"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/wikipedia"
	"github.com/ecopipe-systems/ecopipe/internal/ingest/worldbank"
	"github.com/ecopipe-systems/ecopipe/internal/mapping"
	ddbmeta "github.com/ecopipe-systems/ecopipe/internal/metastore/dynamodb"
	"github.com/ecopipe-systems/ecopipe/internal/pipeline"
	s3store "github.com/ecopipe-systems/ecopipe/internal/storage/s3"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Request is the invocation payload, typically empty on scheduled runs.
type Request struct {
	MinYear *int `json:"min_year,omitempty"`
	MaxYear *int `json:"max_year,omitempty"`
}

// Response wraps the per-stage summary.
type Response struct {
	Stages []types.StageResult `json:"stages"`
	Failed bool                `json:"failed"`
}

func newPipeline(logger *slog.Logger) (*pipeline.Pipeline, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	store, err := s3store.New(cfg.AWS.Bucket, cfg.AWS.BasePrefix)
	if err != nil {
		return nil, err
	}
	meta, err := ddbmeta.New(cfg.AWS.DynamoDB, ddbmeta.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	gdp := worldbank.NewController(store, meta, worldbank.NewHTTPClient(), worldbank.WithLogger(logger))
	co2 := wikipedia.NewController(store, meta, wikipedia.NewHTTPClient(), wikipedia.WithLogger(logger))
	resolver := mapping.NewResolver(store,
		mapping.WithOverridesCSV(mapping.DefaultOverridesCSV),
		mapping.WithLogger(logger))

	return pipeline.New(meta, store, gdp, co2, resolver, pipeline.WithLogger(logger)), nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	p, err := newPipeline(logger)
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}

	awslambda.Start(func(ctx context.Context, req Request) (Response, error) {
		summary, execErr := p.Execute(ctx, pipeline.Options{
			MinYear: req.MinYear,
			MaxYear: req.MaxYear,
		})
		resp := Response{Stages: summary.Stages, Failed: summary.Failed()}
		if execErr != nil {
			// The summary already records the failed stage; surface the error
			// so the invocation itself is marked failed for retries/alarms.
			return resp, execErr
		}
		return resp, nil
	})
}
