package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ecopipe-systems/ecopipe/internal/config"
	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var scope string
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(scope, limit)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "only show runs for this run scope")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func runStatus(scope string, limit int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, meta, err := newBackends(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := meta.ListRuns(ctx, scope)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Recent Runs:")
	fmt.Println()

	for _, r := range runs {
		statusStr := color.YellowString("RUNNING")
		switch r.Status {
		case types.RunSuccess:
			statusStr = color.GreenString("SUCCESS")
		case types.RunFailed:
			statusStr = color.RedString("FAILED")
		}

		rows := "-"
		if r.RowsProcessed != nil {
			rows = fmt.Sprintf("%d", *r.RowsProcessed)
		}
		fmt.Printf("  %s  %-22s %s  rows=%s  started=%s\n",
			r.IngestionRunID, r.RunScope, statusStr, rows, r.StartTS.Format(time.RFC3339))
		if r.LastCheckpoint != "" {
			fmt.Printf("    checkpoint: %s\n", r.LastCheckpoint)
		}
		if r.ErrorMessage != "" {
			color.Red("    error: %s", r.ErrorMessage)
		}
	}
	return nil
}
