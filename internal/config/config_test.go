package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "chronicle.db"), cfg.DatabasePath())
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, 0.8, cfg.Resolver.AdoptThreshold)
	assert.Equal(t, 0.5, cfg.Resolver.ReviewThreshold)
	assert.Equal(t, "exponential", cfg.Context.Decay)
	assert.Equal(t, 50, cfg.Archive.InactiveChapters)
	assert.Equal(t, 10, cfg.Archive.CheckEvery)
	assert.Contains(t, cfg.Ledger.SignificantFields, "realm")
	assert.False(t, cfg.Embedding.Enabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHRONICLE_DATA_DIR", "/srv/novel")
	t.Setenv("CHRONICLE_CONTEXT_BUDGET", "12000")
	t.Setenv("CHRONICLE_CONTEXT_DECAY", "hyperbolic")
	t.Setenv("CHRONICLE_LEDGER_SIGNIFICANT_FIELDS", "realm,location")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/novel", cfg.DataDir)
	assert.Equal(t, 12000, cfg.Context.Budget)
	assert.Equal(t, "hyperbolic", cfg.Context.Decay)
	assert.Equal(t, []string{"realm", "location"}, cfg.Ledger.SignificantFields)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronicle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /books/one
context:
  budget: 9000
  template: battle
archive:
  check_every: 5
storage:
  busy_timeout: 2s
`), 0o644))
	t.Setenv("CHRONICLE_CONTEXT_BUDGET", "7000")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/books/one", cfg.DataDir)
	assert.Equal(t, 7000, cfg.Context.Budget, "env wins over file")
	assert.Equal(t, "battle", cfg.Context.Template)
	assert.Equal(t, 5, cfg.Archive.CheckEvery)
	assert.Equal(t, 2*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, 50, cfg.Archive.InactiveChapters, "keys absent from the file keep defaults")
}

func TestLoad_InvalidThresholds(t *testing.T) {
	t.Setenv("CHRONICLE_RESOLVER_REVIEW_THRESHOLD", "0.9")
	_, err := config.LoadConfig()
	assert.ErrorContains(t, err, "resolver thresholds")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("CHRONICLE_CONTEXT_BUDGET", "lots")
	_, err := config.LoadConfig()
	assert.ErrorContains(t, err, "parse env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
