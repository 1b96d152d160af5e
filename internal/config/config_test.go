package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.BatchIntervalMs)
	assert.Equal(t, 100, cfg.MaxBatchSize)
	assert.Equal(t, 100, cfg.MaxOrphanFiles)
	assert.Equal(t, 7, cfg.OrphanRetentionDays)
	assert.Equal(t, 10, cfg.ParseConcurrency)
	assert.False(t, cfg.Verbose)
	assert.True(t, cfg.Parsers.ExtractDimensions)
	assert.True(t, cfg.Parsers.ParseCodeBlocks)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
batch_interval_ms: 250
max_batch_size: 20
graph:
  uri: bolt://graph:7687
  username: admin
parsers:
  use_ocr: true
aliases:
  base_url: /proj
  paths:
    "@/*": ["src/*"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.BatchIntervalMs)
	assert.Equal(t, 20, cfg.MaxBatchSize)
	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "admin", cfg.Graph.Username)
	assert.True(t, cfg.Parsers.UseOCR)
	assert.Equal(t, "/proj", cfg.Aliases.BaseURL)
	assert.Equal(t, []string{"src/*"}, cfg.Aliases.Paths["@/*"])

	// Unset keys keep their defaults.
	assert.Equal(t, 100, cfg.MaxOrphanFiles)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://override:7687")
	t.Setenv("CODEGRAPH_MAX_BATCH_SIZE", "5")
	t.Setenv("CODEGRAPH_VERBOSE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bolt://override:7687", cfg.Graph.URI)
	assert.Equal(t, 5, cfg.MaxBatchSize)
	assert.True(t, cfg.Verbose)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.BatchIntervalMs = 333
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 333, loaded.BatchIntervalMs)
}
