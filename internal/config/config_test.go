// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 15*time.Minute, cfg.CooldownWindow)
	assert.Equal(t, 10.0, cfg.EscalationMarginPct)
	assert.Equal(t, 5, cfg.MaxAlertsPerBatch)
	assert.Equal(t, 16, cfg.WorkerShards)
	assert.Equal(t, 7*24*time.Hour, cfg.SalesWindowShort)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("COOLDOWN_WINDOW", "30m")
	t.Setenv("WORKER_SHARDS", "4")
	t.Setenv("ESCALATION_MARGIN_PCT", "7.5")

	cfg, err := LoadConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StorageBackend)
	assert.Equal(t, 30*time.Minute, cfg.CooldownWindow)
	assert.Equal(t, 4, cfg.WorkerShards)
	assert.Equal(t, 7.5, cfg.EscalationMarginPct)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig("nonexistent.env")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.StorageBackend = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.WorkerShards = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.CooldownWindow = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxAlertsPerBatch = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_NormalizesHttpPort(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.env")
	require.NoError(t, err)

	cfg.HttpPort = "9090"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":9090", cfg.HttpPort)
}
