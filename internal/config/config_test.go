package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"ADDR", "API_KEYS", "DB_URL", "OUTPUT_FILE", "HYDRATE_FROM",
	"EXACT_WINDOW", "EXACT_REFRESH", "REPOST_WINDOW", "REPOST_REFRESH", "REPOST_HASH_MODE",
	"ID_WINDOW", "SWEEP_INTERVAL", "UNKNOWN_AUTHOR_NAME",
	"MQTT_BROKER", "MQTT_TOPIC", "MQTT_CLIENT_ID", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "messages.jsonl", cfg.OutputFile)
	assert.Equal(t, "file", cfg.HydrateFrom)
	assert.Equal(t, 120*time.Second, cfg.ExactWindow)
	assert.True(t, cfg.ExactRefresh)
	assert.Equal(t, 90*24*time.Hour, cfg.RepostWindow)
	assert.False(t, cfg.RepostRefresh)
	assert.Equal(t, "normalized", cfg.RepostHashMode)
	assert.Equal(t, 90*24*time.Hour, cfg.IDWindow)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "Unknown", cfg.UnknownAuthorName)
	assert.Equal(t, "collector/+/messages", cfg.MQTTTopic)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, map[string]string{"bridge-key-123": "bridge"}, cfg.APIKeys)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEYS", "bridge:k1, wpp : k2")
	t.Setenv("EXACT_WINDOW", "0")
	t.Setenv("REPOST_WINDOW", "720h")
	t.Setenv("SWEEP_INTERVAL", "500ms")
	t.Setenv("REPOST_REFRESH", "true")
	t.Setenv("REPOST_HASH_MODE", "COMPACT")
	t.Setenv("UNKNOWN_AUTHOR_NAME", "Desconhecido")
	t.Setenv("DB_URL", "postgres://localhost/collector")
	t.Setenv("HYDRATE_FROM", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"k1": "bridge", "k2": "wpp"}, cfg.APIKeys)
	assert.Zero(t, cfg.ExactWindow)
	assert.Equal(t, 720*time.Hour, cfg.RepostWindow)
	assert.True(t, cfg.RepostRefresh)
	assert.Equal(t, 500*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, "compact", cfg.RepostHashMode)
	assert.Equal(t, "Desconhecido", cfg.UnknownAuthorName)
	assert.Equal(t, "postgres", cfg.HydrateFrom)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "EXACT_WINDOW", "two minutes"},
		{"negative duration", "REPOST_WINDOW", "-1h"},
		{"sub-second exact window", "EXACT_WINDOW", "500ms"},
		{"sub-second id window", "ID_WINDOW", "999ms"},
		{"bad bool", "EXACT_REFRESH", "sometimes"},
		{"bad hash mode", "REPOST_HASH_MODE", "fuzzy"},
		{"bad api keys", "API_KEYS", "justakey"},
		{"empty api key part", "API_KEYS", "bridge:"},
		{"bad hydrate source", "HYDRATE_FROM", "redis"},
		{"postgres hydrate without db", "HYDRATE_FROM", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
