package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.Server.BodyLimit)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/planner.db", cfg.Database.Path)
	assert.Equal(t, 8192, cfg.Planner.CacheSize)
	assert.Equal(t, 2.0, cfg.Planner.DefaultSLOP95)
	assert.Equal(t, 0.70, cfg.Planner.DefaultUtilizationCap)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_WithEnvVars(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PLANNER_CACHE_SIZE", "128")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 128, cfg.Planner.CacheSize)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	content := `
server:
  port: 7070
planner:
  cache_size: 64
  default_slo_p95: 1.5
rate_limit:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Planner.CacheSize)
	assert.Equal(t, 1.5, cfg.Planner.DefaultSLOP95)
	assert.Equal(t, 0.70, cfg.Planner.DefaultUtilizationCap, "unset keys keep defaults")
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero body limit", func(c *Config) { c.Server.BodyLimit = 0 }, "server.body_limit"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero cache", func(c *Config) { c.Planner.CacheSize = 0 }, "planner.cache_size"},
		{"negative slo", func(c *Config) { c.Planner.DefaultSLOP95 = -1 }, "default_slo_p95"},
		{"cap above one", func(c *Config) { c.Planner.DefaultUtilizationCap = 1.2 }, "default_utilization_cap"},
		{"cap zero", func(c *Config) { c.Planner.DefaultUtilizationCap = 0 }, "default_utilization_cap"},
		{"negative workers", func(c *Config) { c.Planner.OptimizerWorkers = -1 }, "optimizer_workers"},
		{"zero rps", func(c *Config) { c.RateLimit.RPS = 0 }, "rate_limit.rps"},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_RateLimitDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig(t)
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.RPS = 0
	assert.NoError(t, cfg.Validate())
}
