package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "https://services.swpc.noaa.gov", cfg.SWPC.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.SWPC.Timeout)
	assert.Equal(t, 3, cfg.SWPC.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.SWPC.GridCacheTTL)
	assert.True(t, cfg.FCM.DryRun)
	assert.Equal(t, "data/aurora.sqlite3", cfg.Store.Path)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "per_user", cfg.Fanout.Strategy)
	assert.Equal(t, 50.0, cfg.Fanout.FreeTierThreshold)
	assert.Equal(t, time.Hour, cfg.Jobs.FanoutInterval)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ThrottleResetInterval)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.RunTimeout)
	assert.Equal(t, 0.5, cfg.Blend.Kp)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AURORA_ENV", "prod")
	t.Setenv("AURORA_HTTP_ADDR", ":9090")
	t.Setenv("AURORA_LOGGING_LEVEL", "debug")
	t.Setenv("AURORA_LOGGING_FORMAT", "text")
	t.Setenv("AURORA_SWPC_TIMEOUT", "30s")
	t.Setenv("AURORA_FANOUT_STRATEGY", "topic")
	t.Setenv("AURORA_FANOUT_FREE_TIER_THRESHOLD", "60")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.SWPC.Timeout)
	assert.Equal(t, "topic", cfg.Fanout.Strategy)
	assert.Equal(t, 60.0, cfg.Fanout.FreeTierThreshold)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("live fcm requires project and credentials", func(t *testing.T) {
		cfg := valid(t)
		cfg.FCM.DryRun = false
		require.Error(t, cfg.Validate())

		cfg.FCM.ProjectID = "aurora-prod"
		require.Error(t, cfg.Validate())

		cfg.FCM.CredentialsFile = "/etc/fcm/key.json"
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown strategy rejected", func(t *testing.T) {
		cfg := valid(t)
		cfg.Fanout.Strategy = "carrier-pigeon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("threshold range", func(t *testing.T) {
		cfg := valid(t)
		cfg.Fanout.FreeTierThreshold = 101
		assert.Error(t, cfg.Validate())
	})

	t.Run("kafka brokers require topic", func(t *testing.T) {
		cfg := valid(t)
		cfg.Kafka.Brokers = []string{"localhost:9092"}
		cfg.Kafka.AuditTopic = ""
		assert.Error(t, cfg.Validate())

		cfg.Kafka.AuditTopic = "aurora-alert-audit"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid(t)
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero run timeout", func(t *testing.T) {
		cfg := valid(t)
		cfg.Jobs.RunTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}
