package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecopipe-systems/ecopipe/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "ecopipe",
		Short: "Incremental economic/environmental data pipeline",
		Long: `Ecopipe ingests GDP-per-capita figures from the World Bank API and
CO2-per-capita figures scraped from Wikipedia, resolves the two sources'
country names into a canonical mapping, and joins them into a curated
country/year dataset. Ingestion is incremental: checkpoints skip already
loaded years and unchanged page revisions, and every stage execution is
recorded in an immutable run ledger.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewCheckpointsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
