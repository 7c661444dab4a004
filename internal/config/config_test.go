package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Market.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.Market.ReconnectWait)
	assert.Contains(t, cfg.Market.Symbols, "BTCUSDT")
	assert.Equal(t, []string{"1m", "15m", "1h"}, cfg.Market.Intervals)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9100\nmarket:\n  history_limit: 50\n  symbols: [\"SOLUSDT\"]\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("HISTORY_LIMIT", "75")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	// Environment wins over the file.
	assert.Equal(t, 75, cfg.Market.HistoryLimit)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Market.Symbols)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Market.HistoryLimit = -1
	assert.Error(t, cfg.Validate())
}
