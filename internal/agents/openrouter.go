package agents

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/config"
)

// OpenAIGenerator calls any OpenAI-compatible chat completions API,
// OpenRouter included
type OpenAIGenerator struct {
	client      *openai.Client
	models      roleModels
	timeout     time.Duration
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// appHeaders adds the attribution headers OpenRouter reads
type appHeaders struct {
	referer string
	title   string
	next    http.RoundTripper
}

func (h *appHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if h.referer != "" {
		req.Header.Set("HTTP-Referer", h.referer)
	}
	if h.title != "" {
		req.Header.Set("X-Title", h.title)
	}
	return h.next.RoundTrip(req)
}

func newOpenAIGenerator(cfg *config.Config, logger *zap.Logger) *OpenAIGenerator {
	openaiConfig := openai.DefaultConfig(cfg.AIAPIKey)
	openaiConfig.BaseURL = strings.TrimSuffix(cfg.AIBaseURL, "/")
	openaiConfig.HTTPClient = &http.Client{
		Transport: &appHeaders{
			referer: cfg.AIAppReferer,
			title:   cfg.AIAppTitle,
			next:    http.DefaultTransport,
		},
	}

	g := &OpenAIGenerator{
		client:      openai.NewClientWithConfig(openaiConfig),
		models:      modelsFromConfig(cfg),
		timeout:     cfg.AITimeout,
		temperature: float32(cfg.AITemperature),
		maxTokens:   cfg.AIMaxTokens,
		logger:      logger.Named("openai"),
	}
	g.logger.Info("OpenAI client created",
		zap.String("base_url", openaiConfig.BaseURL),
		zap.String("narrator_model", g.models.narrator),
		zap.String("player_model", g.models.player),
		zap.Duration("timeout", g.timeout))
	return g
}

// Generate runs a single-message chat completion
func (g *OpenAIGenerator) Generate(ctx context.Context, role campaign.Role, prompt string) (string, error) {
	model := g.models.forRole(role)

	callCtx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	duration := time.Since(start)

	if err != nil {
		g.logger.Warn("Chat completion failed", zap.String("model", model), zap.Error(err))
		observeCall("openai", model, string(role), "error", duration.Seconds())
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		observeCall("openai", model, string(role), "error_empty_response", duration.Seconds())
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	observeCall("openai", model, string(role), "success", duration.Seconds())
	observeTokens("openai", model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	g.logger.Debug("Chat completion received",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}
