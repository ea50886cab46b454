package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Ingest.BatchSize)
	require.Equal(t, "USD", cfg.Ingest.DefaultCurrency)
	require.Equal(t, 4, cfg.Jobs.Workers)
	require.Equal(t, "info", cfg.Log.Level)
	require.NotEmpty(t, cfg.Database.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TXSENTRY_INGEST_BATCH_SIZE", "250")
	t.Setenv("TXSENTRY_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 250, cfg.Ingest.BatchSize)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[database]\npath = \"/tmp/custom.db\"\n\n" +
		"[ingest]\nbatch_size = 42\ndefault_currency = \"GBP\"\n\n" +
		"[jobs]\nworkers = 9\nbuffer_size = 64\nmax_retries = 7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TXSENTRY_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	require.Equal(t, 42, cfg.Ingest.BatchSize)
	require.Equal(t, "GBP", cfg.Ingest.DefaultCurrency)
	require.Equal(t, 9, cfg.Jobs.Workers)
	require.Equal(t, 64, cfg.Jobs.BufferSize)
	require.Equal(t, 7, cfg.Jobs.MaxRetries)
}
