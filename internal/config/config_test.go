package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9999\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, "2s", cfg.Worker.PollInterval)
	assert.Equal(t, "30m", cfg.Worker.StaleAfter)
	assert.Equal(t, "15s", cfg.Bridge.PollInterval)
	assert.Equal(t, 20, cfg.Bridge.BatchSize)
	assert.Equal(t, "1m", cfg.Scheduler.Interval)
	assert.Equal(t, 250, cfg.Jobs.MaxItemsPerJob)
	assert.Equal(t, int64(15), cfg.Jobs.ItemCosts["blog_post"])
	assert.Equal(t, 30, cfg.Billing.CycleDays)
}

func TestLoadConfigExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	path := writeConfigFile(t, "database:\n  password: ${TEST_DB_PASSWORD}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Jobs.MaxItemsPerJob = 10
	cfg.Jobs.ItemCosts = map[string]int64{"text_optimize": 3}
	cfg.Billing.CycleDays = 7

	ApplyDefaults(cfg)

	assert.Equal(t, 10, cfg.Jobs.MaxItemsPerJob)
	assert.Equal(t, int64(3), cfg.Jobs.ItemCosts["text_optimize"])
	assert.Equal(t, 7, cfg.Billing.CycleDays)
}
