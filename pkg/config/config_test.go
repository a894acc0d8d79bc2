package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  mode: debug
redis:
  addr: redis:6379
  key_prefix: "rp:"
pools:
  accounts:
    enabled: true
    daily_limit: 300
  proxies:
    enabled: true
    health_gate: false
    acquire_timeout: 2s
    probe:
      enabled: true
      timeout: 3s
jobs:
  usage_rollover_interval: 1m
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "rp:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 20, cfg.Redis.PoolSize)

	assert.Equal(t, 300, cfg.Pools.Accounts.DailyLimit)
	assert.Nil(t, cfg.Pools.Accounts.HealthGate)
	assert.Equal(t, 0.7, cfg.Pools.Accounts.HealthThreshold)

	require.NotNil(t, cfg.Pools.Proxies.HealthGate)
	assert.False(t, *cfg.Pools.Proxies.HealthGate)
	assert.Equal(t, 2*time.Second, cfg.Pools.Proxies.AcquireTimeout)
	assert.True(t, cfg.Pools.Proxies.Probe.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Pools.Proxies.Probe.Timeout)
	assert.Equal(t, "https://httpbin.org/ip", cfg.Pools.Proxies.Probe.TargetURL)

	assert.Equal(t, time.Minute, cfg.Jobs.UsageRolloverInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Jobs.EventRetention)
}

func TestParse_ReportsAdjustments(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: -1\npools:\n  proxies:\n    daily_limit: -5\n"))
	require.NoError(t, err)

	assert.Len(t, Adjustments(), 3, "port, redis addr and daily limit")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	assert.Error(t, err)
}

func TestInit_FromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))
	t.Setenv("CONFIG_PATH", path)

	require.NoError(t, Init())
	require.NotNil(t, GlobalConfig)
	assert.Equal(t, "redis:6379", GlobalConfig.Redis.Addr)
}

func TestParse_ShippedConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Empty(t, Adjustments(), "shipped config needs no defaults")
	assert.True(t, cfg.Pools.Accounts.Enabled)
	assert.True(t, cfg.Pools.Proxies.Probe.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Jobs.EventRetention)
	assert.False(t, cfg.MySQL.Enabled)
}
