// Package generator talks to an OpenAI-compatible chat completion backend.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/mimic-bot/internal/prompt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
	// MaxResponseLength caps the cleaned reply, in runes.
	MaxResponseLength int
	// RetryBackoff is the wait before the single retry after a rate limit.
	RetryBackoff time.Duration
}

type OpenAIGenerator struct {
	client  *openai.Client
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewOpenAIGenerator(cfg Config, logger *zap.Logger) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Generate returns the cleaned reply text, or "" when the backend produced
// nothing usable. Errors are tagged with ErrRateLimited, ErrContentFiltered,
// ErrInvalidArgument or ErrAuth when the kind is known.
func (g *OpenAIGenerator) Generate(ctx context.Context, payload prompt.Payload) (string, error) {
	text, err := g.complete(ctx, payload)
	if errors.Is(err, ErrRateLimited) && g.config.RetryBackoff > 0 {
		g.logger.Warn("Rate limited by backend, retrying once",
			zap.Duration("backoff", g.config.RetryBackoff))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.config.RetryBackoff):
		}
		text, err = g.complete(ctx, payload)
	}
	if err != nil {
		return "", err
	}
	return CleanResponse(text, g.config.MaxResponseLength), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, payload prompt.Payload) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: payload.System,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: payload.User,
				},
			},
			MaxTokens:   g.config.MaxTokens,
			Temperature: float32(g.config.Temperature),
			Stop:        []string{"Human:", "Assistant:"},
		},
	)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		g.logger.Warn("Backend returned no choices")
		return "", nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", ErrContentFiltered
	}
	return strings.TrimSpace(choice.Message.Content), nil
}
