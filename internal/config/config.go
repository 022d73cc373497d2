package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"

	ClientOllama = "ollama"
	ClientOpenAI = "openai"
)

// Config holds the simulation settings, read from the environment
type Config struct {
	// Campaign storage
	Store      string `envconfig:"CAMPAIGN_STORE" default:"file"`
	File       string `envconfig:"CAMPAIGN_FILE" default:"dnd_campaign.json"`
	DBPath     string `envconfig:"CAMPAIGN_DB" default:"campaign.db"`
	CampaignID string `envconfig:"CAMPAIGN_ID" default:"default"`
	RosterFile string `envconfig:"ROSTER_FILE"`

	// SQLite snapshots kept per campaign, 0 keeps every snapshot
	SnapshotRetention int `envconfig:"SNAPSHOT_RETENTION" default:"20"`

	// Generation backend
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"ollama"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"http://localhost:11434"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gemma3:1b"`
	NarratorModel string        `envconfig:"AI_NARRATOR_MODEL"`
	PlayerModel   string        `envconfig:"AI_PLAYER_MODEL"`
	AIAPIKey      string        `envconfig:"AI_API_KEY"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"2m"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"512"`
	AIAppReferer  string        `envconfig:"AI_APP_REFERER"`
	AIAppTitle    string        `envconfig:"AI_APP_TITLE" default:"D&D Campaign Simulator"`

	// Turn engine
	RoundDelay       time.Duration `envconfig:"ROUND_DELAY" default:"3s"`
	LogRetention     int           `envconfig:"LOG_RETENTION" default:"500"`
	MaxParallelTurns int           `envconfig:"MAX_PARALLEL_TURNS" default:"0"`
	MaxRounds        int           `envconfig:"MAX_ROUNDS" default:"0"`

	// Analysis API
	HTTPPort     string  `envconfig:"HTTP_PORT" default:"8080"`
	APIRateLimit float64 `envconfig:"API_RATE_LIMIT" default:"20"`
	APIJWTSecret string  `envconfig:"API_JWT_SECRET"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`
	LogOutput   string `envconfig:"LOG_OUTPUT"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and limits
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store) {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unknown campaign store %q", c.Store)
	}

	switch strings.ToLower(c.AIClientType) {
	case ClientOllama, ClientOpenAI:
	default:
		return fmt.Errorf("unknown AI client type %q", c.AIClientType)
	}

	if c.AIModel == "" {
		return fmt.Errorf("AI_MODEL must not be empty")
	}
	if c.LogRetention < 1 {
		return fmt.Errorf("LOG_RETENTION must be positive, got %d", c.LogRetention)
	}
	if c.MaxParallelTurns < 0 || c.MaxRounds < 0 {
		return fmt.Errorf("MAX_PARALLEL_TURNS and MAX_ROUNDS must not be negative")
	}
	if c.SnapshotRetention < 0 {
		return fmt.Errorf("SNAPSHOT_RETENTION must not be negative, got %d", c.SnapshotRetention)
	}
	if c.RoundDelay < 0 || c.AITimeout < 0 {
		return fmt.Errorf("ROUND_DELAY and AI_TIMEOUT must not be negative")
	}
	return nil
}

// ModelFor returns the model used for the narrator or for players
func (c *Config) ModelFor(narrator bool) string {
	if narrator && c.NarratorModel != "" {
		return c.NarratorModel
	}
	if !narrator && c.PlayerModel != "" {
		return c.PlayerModel
	}
	return c.AIModel
}

// Summary lists the loaded settings without secrets
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"store":              c.Store,
		"campaign_file":      c.File,
		"campaign_db":        c.DBPath,
		"campaign_id":        c.CampaignID,
		"roster_file":        c.RosterFile,
		"snapshot_retention": c.SnapshotRetention,
		"ai_client":          c.AIClientType,
		"ai_base_url":        c.AIBaseURL,
		"narrator_model":     c.ModelFor(true),
		"player_model":       c.ModelFor(false),
		"ai_timeout":         c.AITimeout.String(),
		"ai_api_key_set":     c.AIAPIKey != "",
		"round_delay":        c.RoundDelay.String(),
		"log_retention":      c.LogRetention,
		"max_parallel_turns": c.MaxParallelTurns,
		"max_rounds":         c.MaxRounds,
		"http_port":          c.HTTPPort,
		"api_auth":           c.APIJWTSecret != "",
	}
}
