package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 5, cfg.Assistant.MaxArticles)
	assert.Equal(t, 5, cfg.Assistant.MaxInsights)
	assert.Equal(t, 10, cfg.Assistant.MaxWorkflowRuns)
	assert.Equal(t, 10, cfg.Assistant.MaxHistoryTurns)
	assert.InDelta(t, 0.7, cfg.Assistant.InsightThreshold, 0.0001)
	assert.InDelta(t, 0.8, cfg.Assistant.DefaultConfidence, 0.0001)
	assert.Equal(t, float32(0.7), cfg.AI.Temperature)
	assert.Equal(t, 2000, cfg.AI.MaxTokens)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
database:
  driver: postgres
  postgres:
    dsn: postgres://localhost/assistant
ai:
  model: openai/gpt-4o
assistant:
  insight_threshold: 0.6
cache:
  context_ttl: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/assistant", cfg.DatabaseDSN())
	assert.Equal(t, "openai/gpt-4o", cfg.AI.Model)
	assert.InDelta(t, 0.6, cfg.Assistant.InsightThreshold, 0.0001)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ContextTTL)
	// Untouched sections keep defaults.
	assert.Equal(t, 2000, cfg.AI.MaxTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "env-key")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://db.internal/ops?sslmode=require")
	t.Setenv("REDIS_URL", "redis://cache.internal:6379")
	t.Setenv("AI_GATEWAY_URL", "https://gateway.internal/v1")
	t.Setenv("AI_MODEL", "openai/gpt-4o-mini")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("API_AUTH_TOKEN", "shared-token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://db.internal/ops?sslmode=require", cfg.Database.Postgres.DSN)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache.internal:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "https://gateway.internal/v1", cfg.AI.BaseURL)
	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "shared-token", cfg.Server.AuthToken)
}

func TestLoad_SQLiteURL(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "k")
	t.Setenv("DATABASE_URL", "sqlite:/var/lib/assistant.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/assistant.db", cfg.DatabaseDSN())
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_GATEWAY_API_KEY")
}

func TestLoadWithoutGateway_AllowsMissingKey(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "")

	cfg, err := LoadWithoutGateway("")
	require.NoError(t, err)
	assert.Empty(t, cfg.AI.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.AI.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad db driver", func(c *Config) { c.Database.Driver = "oracle" }, "database driver"},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "cache driver"},
		{"zero max tokens", func(c *Config) { c.AI.MaxTokens = 0 }, "max_tokens"},
		{"threshold out of range", func(c *Config) { c.Assistant.InsightThreshold = 1.5 }, "insight_threshold"},
		{"confidence out of range", func(c *Config) { c.Assistant.DefaultConfidence = -0.1 }, "default_confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
