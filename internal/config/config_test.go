package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honorwall/roster-cli/internal/reconcile"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "roster.db", cfg.Store.DatabaseURL)
	assert.Equal(t, reconcile.DefaultHighSimilarity, cfg.Reconcile.Thresholds.HighSimilarity)
	assert.Equal(t, reconcile.DefaultFirstNameSimilarity, cfg.Reconcile.Thresholds.FirstNameSimilarity)
	assert.Equal(t, reconcile.DefaultPrefixMatchMinLen, cfg.Reconcile.Thresholds.PrefixMatchMinLen)
	assert.Contains(t, cfg.Reconcile.Sentinels, "Unknown")
	assert.Equal(t, 500, cfg.Apply.BatchSize)
	assert.True(t, cfg.Apply.Verify)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	dir := chdirTemp(t)

	content := `
store:
  driver: postgres
  database_url: postgres://localhost/honorwall
reconcile:
  thresholds:
    high_similarity: 0.9
  sentinels: ["Unknown"]
apply:
  batch_size: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 0.9, cfg.Reconcile.Thresholds.HighSimilarity)
	assert.Equal(t, []string{"Unknown"}, cfg.Reconcile.Sentinels)
	assert.Equal(t, 250, cfg.Apply.BatchSize)

	// Unset keys still come from defaults.
	assert.Equal(t, reconcile.DefaultPrefixMatchMinLen, cfg.Reconcile.Thresholds.PrefixMatchMinLen)
}

func TestLoad_InvalidThresholdsRejected(t *testing.T) {
	dir := chdirTemp(t)

	content := `
reconcile:
  thresholds:
    high_similarity: 1.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid thresholds")
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "noisy", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
