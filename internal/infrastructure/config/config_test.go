package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: dietgen\n"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 3, cfg.AI.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.AI.RetryDelay)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.TTL)
	assert.Equal(t, 15, cfg.Pipeline.MinFoods)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.Lease)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
pipeline:
  min_foods: 20
  lever_food_ids: [oleo-soja, azeite-oliva]
ai:
  gemini:
    model: gemini-pro
`)
	t.Setenv("DIETGEN_SERVER_PORT", "9100")
	t.Setenv("DIETGEN_AI_GEMINI_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Pipeline.MinFoods)
	assert.Equal(t, []string{"oleo-soja", "azeite-oliva"}, cfg.Pipeline.LeverFoodIDs)
	assert.Equal(t, "gemini-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, "secret", cfg.AI.Gemini.APIKey)
}

func TestValidateRejectsImpossibleValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port", "server:\n  port: 70000\n"},
		{"driver", "database:\n  driver: mongo\n"},
		{"queue", "queue:\n  driver: kafka\n"},
		{"retries", "ai:\n  retry_attempts: 0\n"},
		{"exporter", "monitoring:\n  trace_exporter: zipkin\n"},
		{"production secret", "app:\n  environment: production\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
