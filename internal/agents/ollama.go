package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/config"
)

// OllamaGenerator talks to a local Ollama server through its chat endpoint
type OllamaGenerator struct {
	client      *api.Client
	models      roleModels
	timeout     time.Duration
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

func newOllamaGenerator(cfg *config.Config, logger *zap.Logger) (*OllamaGenerator, error) {
	// api.NewClient expects the bare server URL
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL '%s': %w", baseURL, err)
	}

	g := &OllamaGenerator{
		client:      api.NewClient(parsedURL, &http.Client{}),
		models:      modelsFromConfig(cfg),
		timeout:     cfg.AITimeout,
		temperature: cfg.AITemperature,
		maxTokens:   cfg.AIMaxTokens,
		logger:      logger.Named("ollama"),
	}
	g.logger.Info("Ollama client created",
		zap.String("base_url", baseURL),
		zap.String("narrator_model", g.models.narrator),
		zap.String("player_model", g.models.player),
		zap.Duration("timeout", g.timeout))
	return g, nil
}

// Generate sends the prompt as a single user message and waits for the full reply
func (g *OllamaGenerator) Generate(ctx context.Context, role campaign.Role, prompt string) (string, error) {
	model := g.models.forRole(role)
	stream := false

	options := map[string]interface{}{}
	if g.temperature > 0 {
		options["temperature"] = g.temperature
	}
	if g.maxTokens > 0 {
		options["num_predict"] = g.maxTokens
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  options,
	}

	callCtx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := g.client.Chat(callCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("Ollama call timed out", zap.String("model", model), zap.Duration("timeout", g.timeout))
		} else {
			g.logger.Warn("Ollama call failed", zap.String("model", model), zap.Error(err))
		}
		observeCall("ollama", model, string(role), "error", duration.Seconds())
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		observeCall("ollama", model, string(role), "error_empty_response", duration.Seconds())
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	observeCall("ollama", model, string(role), "success", duration.Seconds())
	observeTokens("ollama", model, resp.PromptEvalCount, resp.EvalCount)
	g.logger.Debug("Ollama response received",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("length", len(resp.Message.Content)))

	return resp.Message.Content, nil
}
