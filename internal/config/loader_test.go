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

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
rules:
  source: file
  file: rules.yaml
alerts:
  store: memory
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Engine.RuleCacheTTL)
	assert.Equal(t, 1000, cfg.Engine.BatchSize)
	assert.Equal(t, 3, cfg.Engine.MaxDepth)
	assert.Equal(t, 10, cfg.Engine.MaxConditions)
	assert.Equal(t, 100, cfg.Engine.InSetThreshold)
	assert.Equal(t, []string{"entity_id", "id", "order_id"}, cfg.Engine.EntityIDFields)
	assert.Equal(t, []string{"active", "acknowledged", "new"}, cfg.Alerts.OpenStatuses)
	assert.Equal(t, "none", cfg.Alerts.TriggerCounter)
	assert.False(t, cfg.Broker.Kafka.Enabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rules:
  source: file
  file: rules.yaml
alerts:
  store: memory
`)

	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_RULE_CACHE_TTL", "45s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Engine.RuleCacheTTL)
}

func TestLoadConfig_EnrichmentModules(t *testing.T) {
	path := writeConfig(t, `
rules:
  source: file
  file: rules.yaml
alerts:
  store: memory
enrichment:
  modules:
    kitchen:
      - name: weighted_load
        expression: "data.active_orders * 1.5"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Enrichment.Modules["kitchen"], 1)
	assert.Equal(t, "weighted_load", cfg.Enrichment.Modules["kitchen"][0].Name)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "postgres source without database",
			body: "alerts:\n  store: memory\n",
		},
		{
			name: "unknown alert store",
			body: "rules:\n  source: file\n  file: r.yaml\nalerts:\n  store: cassandra\n",
		},
		{
			name: "redis counter without redis",
			body: "rules:\n  source: file\n  file: r.yaml\nalerts:\n  store: memory\n  trigger_counter: redis\n",
		},
		{
			name: "negative depth",
			body: "rules:\n  source: file\n  file: r.yaml\nalerts:\n  store: memory\nengine:\n  max_depth: -1\n",
		},
		{
			name: "computed field without expression",
			body: "rules:\n  source: file\n  file: r.yaml\nalerts:\n  store: memory\nenrichment:\n  modules:\n    kitchen:\n      - name: x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
