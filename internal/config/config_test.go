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

	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "dnd_campaign.json", cfg.File)
	assert.Equal(t, ClientOllama, cfg.AIClientType)
	assert.Equal(t, "gemma3:1b", cfg.AIModel)
	assert.Equal(t, 2*time.Minute, cfg.AITimeout)
	assert.Equal(t, 3*time.Second, cfg.RoundDelay)
	assert.Equal(t, 500, cfg.LogRetention)
	assert.Equal(t, 20, cfg.SnapshotRetention)
	assert.Equal(t, 0, cfg.MaxRounds)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAMPAIGN_STORE", "sqlite")
	t.Setenv("AI_CLIENT_TYPE", "openai")
	t.Setenv("AI_MODEL", "meta-llama/llama-3-8b-instruct")
	t.Setenv("AI_NARRATOR_MODEL", "anthropic/claude-3-haiku")
	t.Setenv("ROUND_DELAY", "250ms")
	t.Setenv("LOG_RETENTION", "50")
	t.Setenv("MAX_ROUNDS", "4")
	t.Setenv("SNAPSHOT_RETENTION", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 250*time.Millisecond, cfg.RoundDelay)
	assert.Equal(t, 50, cfg.LogRetention)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.Equal(t, 5, cfg.SnapshotRetention)
	assert.Equal(t, "anthropic/claude-3-haiku", cfg.ModelFor(true))
	assert.Equal(t, "meta-llama/llama-3-8b-instruct", cfg.ModelFor(false))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"store", "CAMPAIGN_STORE", "redis"},
		{"client", "AI_CLIENT_TYPE", "grpc"},
		{"retention", "LOG_RETENTION", "0"},
		{"rounds", "MAX_ROUNDS", "-1"},
		{"snapshots", "SNAPSHOT_RETENTION", "-3"},
		{"duration", "ROUND_DELAY", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSummaryHidesSecrets(t *testing.T) {
	cfg := &Config{AIModel: "m", AIAPIKey: "sk-secret", APIJWTSecret: "jwt-secret"}
	summary := cfg.Summary()

	assert.Equal(t, true, summary["ai_api_key_set"])
	assert.Equal(t, true, summary["api_auth"])
	for _, v := range summary {
		assert.NotEqual(t, "sk-secret", v)
		assert.NotEqual(t, "jwt-secret", v)
	}
}
