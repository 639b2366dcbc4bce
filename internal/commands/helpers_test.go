package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopipe-systems/ecopipe/internal/config"
)

func TestNewBackendsLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Backend: config.BackendLocal,
		Local: &config.LocalConfig{
			DataDir:      dir,
			MetadataFile: filepath.Join(dir, "metadata.json"),
		},
	}

	store, meta, err := newBackends(cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NotNil(t, meta)
}

func TestNewBackendsUnknown(t *testing.T) {
	_, _, err := newBackends(&config.Config{Backend: "tape"})
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestNewPipelineLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Backend: config.BackendLocal,
		Local:   &config.LocalConfig{DataDir: dir, MetadataFile: filepath.Join(dir, "metadata.json")},
	}

	p, err := newPipeline(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewPipelineMissingOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Backend:       config.BackendLocal,
		Local:         &config.LocalConfig{DataDir: dir, MetadataFile: filepath.Join(dir, "metadata.json")},
		OverridesPath: filepath.Join(dir, "missing.csv"),
	}

	_, err := newPipeline(cfg)
	assert.ErrorContains(t, err, "reading overrides")
}
