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

// NewCheckpointsCmd creates the checkpoints command.
func NewCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints",
		Short: "Show the incremental-load checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoints()
		},
	}
}

func runCheckpoints() error {
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

	bold := color.New(color.Bold)
	_, _ = bold.Println("Checkpoints:")
	fmt.Println()

	sources := []string{
		types.CheckpointWorldBankYear,
		types.CheckpointWikipediaRevision,
	}
	for _, source := range sources {
		value, err := meta.LoadCheckpoint(ctx, source, "")
		if err != nil {
			return fmt.Errorf("loading checkpoint %s: %w", source, err)
		}
		if value == "" {
			fmt.Printf("  %-32s %s\n", source, color.YellowString("(not set)"))
			continue
		}
		fmt.Printf("  %-32s %s\n", source, value)
	}
	return nil
}
