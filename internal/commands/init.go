package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new ecopipe project",
		Long:  "Creates a project directory with a starter ecopipe.yaml and override table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing ecopipe project: %s\n", projectName)

	if err := os.MkdirAll(filepath.Join(projectName, "data"), 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	configPath := filepath.Join(projectName, "ecopipe.yaml")
	configContent := `backend: local
local:
  dataDir: ./data
  metadataFile: ./data/metadata.json
overridesPath: ./country_overrides.csv

# Switch to AWS by replacing the local section with:
# backend: aws
# aws:
#   bucket: my-data-lake
#   basePrefix: ecopipe
#   region: us-east-1
#   dynamodb:
#     tableName: ecopipe-metadata
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	overridesPath := filepath.Join(projectName, "country_overrides.csv")
	overridesContent := `country_name_normalized,country_code,country_name
democratic republic of the congo,COD,"Congo, Dem. Rep."
republic of the congo,COG,"Congo, Rep."
south korea,KOR,"Korea, Rep."
north korea,PRK,"Korea, Dem. People's Rep."
`
	if err := os.WriteFile(overridesPath, []byte(overridesContent), 0o644); err != nil {
		return fmt.Errorf("writing overrides: %w", err)
	}

	color.Green("Project created.")
	fmt.Printf("  cd %s && ecopipe run\n", projectName)
	return nil
}
