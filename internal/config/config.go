// Package config handles loading and validation of ecopipe.yaml project
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ddbmeta "github.com/ecopipe-systems/ecopipe/internal/metastore/dynamodb"
)

// Backend names.
const (
	BackendLocal = "local"
	BackendAWS   = "aws"
)

// Config is the top-level ecopipe.yaml shape.
type Config struct {
	// Backend selects where artifacts and metadata live: "local" (filesystem
	// + JSON metadata file) or "aws" (S3 + DynamoDB).
	Backend string `yaml:"backend"`

	Local *LocalConfig `yaml:"local,omitempty"`
	AWS   *AWSConfig   `yaml:"aws,omitempty"`

	Sources SourcesConfig `yaml:"sources,omitempty"`

	// OverridesPath points at the manual country-mapping override CSV.
	// Optional; without it only source-derived mappings are used.
	OverridesPath string `yaml:"overridesPath,omitempty"`
}

// LocalConfig holds the filesystem backend settings.
type LocalConfig struct {
	DataDir      string `yaml:"dataDir"`
	MetadataFile string `yaml:"metadataFile"`
}

// AWSConfig holds the S3 + DynamoDB backend settings.
type AWSConfig struct {
	Bucket     string          `yaml:"bucket"`
	BasePrefix string          `yaml:"basePrefix,omitempty"`
	Region     string          `yaml:"region,omitempty"`
	DynamoDB   *ddbmeta.Config `yaml:"dynamodb"`
}

// SourcesConfig overrides the upstream source endpoints. Zero values fall
// back to the built-in defaults of each client.
type SourcesConfig struct {
	WorldBank WorldBankSource `yaml:"worldbank,omitempty"`
	Wikipedia WikipediaSource `yaml:"wikipedia,omitempty"`
}

// WorldBankSource configures the World Bank indicator API client.
type WorldBankSource struct {
	BaseURL     string `yaml:"baseUrl,omitempty"`
	IndicatorID string `yaml:"indicatorId,omitempty"`
}

// WikipediaSource configures the MediaWiki API client.
type WikipediaSource struct {
	APIBaseURL string `yaml:"apiBaseUrl,omitempty"`
	PageTitle  string `yaml:"pageTitle,omitempty"`
}

// Load reads and parses ecopipe.yaml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "ecopipe.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Backend {
	case BackendLocal:
		if cfg.Local == nil || cfg.Local.DataDir == "" {
			return fmt.Errorf("local.dataDir is required when backend is local")
		}
		if cfg.Local.MetadataFile == "" {
			cfg.Local.MetadataFile = filepath.Join(cfg.Local.DataDir, "metadata.json")
		}
	case BackendAWS:
		if cfg.AWS == nil || cfg.AWS.Bucket == "" {
			return fmt.Errorf("aws.bucket is required when backend is aws")
		}
		if cfg.AWS.DynamoDB == nil || cfg.AWS.DynamoDB.TableName == "" {
			return fmt.Errorf("aws.dynamodb.tableName is required when backend is aws")
		}
		if cfg.AWS.DynamoDB.Region == "" {
			cfg.AWS.DynamoDB.Region = cfg.AWS.Region
		}
	case "":
		return fmt.Errorf("backend is required")
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}

// FromEnv builds an AWS-backed config from environment variables, for the
// Lambda entrypoint where no config file is shipped.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Backend: BackendAWS,
		AWS: &AWSConfig{
			Bucket:     os.Getenv("PIPELINE_S3_BUCKET"),
			BasePrefix: os.Getenv("PIPELINE_S3_BASE_PREFIX"),
			Region:     os.Getenv("AWS_REGION"),
			DynamoDB: &ddbmeta.Config{
				TableName: os.Getenv("PIPELINE_METADATA_TABLE"),
			},
		},
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
