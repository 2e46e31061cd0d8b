package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "default", cfg.Server.InstanceID)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2*time.Second, cfg.Redis.OpTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TranslationTTL)
	assert.Equal(t, time.Hour, cfg.Cache.DetectionTTL)
	assert.Equal(t, 50, cfg.Cache.HistoryMax)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 1500*time.Millisecond, cfg.Oracle.Timeout)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("INSTANCE_ID", "node-7")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6379")
	t.Setenv("ORACLE_BASE_URL", "http://oracle.internal:9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "node-7", cfg.Server.InstanceID)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Address)
	assert.Equal(t, "http://oracle.internal:9090", cfg.Oracle.BaseURL)
}
