package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/config"
)

// ErrGenerationFailed wraps every backend failure: transport errors,
// non-success responses, timeouts and empty content.
var ErrGenerationFailed = errors.New("text generation failed")

// Generator turns a prompt into narration for an actor of the given role.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, role campaign.Role, prompt string) (string, error)
}

// roleModels maps actor roles to backend model identifiers
type roleModels struct {
	narrator string
	player   string
}

func (m roleModels) forRole(role campaign.Role) string {
	if role == campaign.RoleNarrator {
		return m.narrator
	}
	return m.player
}

func modelsFromConfig(cfg *config.Config) roleModels {
	return roleModels{narrator: cfg.ModelFor(true), player: cfg.ModelFor(false)}
}

// NewGenerator creates the backend selected by AI_CLIENT_TYPE
func NewGenerator(cfg *config.Config, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case config.ClientOpenAI:
		logger.Info("Using OpenAI-compatible generation backend")
		return newOpenAIGenerator(cfg, logger), nil
	case config.ClientOllama:
		logger.Info("Using Ollama generation backend")
		return newOllamaGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.AIClientType)
	}
}

// withTimeout bounds a single generation call; zero disables the bound
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
