package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ecopipe-systems/ecopipe/internal/config"
	"github.com/ecopipe-systems/ecopipe/internal/pipeline"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var minYear, maxYear int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full ingestion pipeline",
		Long: `Runs every stage in order: World Bank ingestion, GDP transform, country
mapping rebuild, Wikipedia ingestion, CO2 transform, and the curated join.
Each stage is recorded as a metadata run; the first failure halts the
invocation without rolling back completed stages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts runOptions
			if cmd.Flags().Changed("min-year") {
				opts.minYear = &minYear
			}
			if cmd.Flags().Changed("max-year") {
				opts.maxYear = &maxYear
			}
			return runPipeline(opts)
		},
	}
	cmd.Flags().IntVar(&minYear, "min-year", 0, "inclusive lower bound on ingested years")
	cmd.Flags().IntVar(&maxYear, "max-year", 0, "inclusive upper bound on ingested years")
	return cmd
}

type runOptions struct {
	minYear *int
	maxYear *int
}

func pipelineOptions(o runOptions) pipeline.Options {
	return pipeline.Options{MinYear: o.minYear, MaxYear: o.maxYear}
}

func runPipeline(opts runOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	summary, execErr := p.Execute(ctx, pipelineOptions(opts))
	printSummary(summary)
	return execErr
}

func printSummary(summary *types.Summary) {
	bold := color.New(color.Bold)
	_, _ = bold.Println("Pipeline Summary:")
	fmt.Println()

	for _, r := range summary.Stages {
		statusStr := color.GreenString("SUCCESS")
		if r.Status == types.RunFailed {
			statusStr = color.RedString("FAILED")
		}
		fmt.Printf("  %-18s %s  rows=%d  run=%s\n", r.Stage, statusStr, r.RowsProcessed, r.RunID)
		if len(r.ArtifactKeys) > 0 {
			fmt.Printf("    artifacts: %s\n", strings.Join(r.ArtifactKeys, ", "))
		}
		if r.ErrorMessage != "" {
			color.Red("    error: %s", r.ErrorMessage)
		}
	}
	if !summary.Failed() && len(summary.Stages) == len(types.Stages) {
		fmt.Println()
		color.Green("All stages completed successfully")
	}
}
