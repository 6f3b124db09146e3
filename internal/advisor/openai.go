// Package advisor produces maintenance recommendations with an
// OpenAI-compatible chat completion API.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/services"
)

// ErrNotConfigured is returned by New when no API key is set.
var ErrNotConfigured = errors.New("advisor: OPENAI_API_KEY not set")

// chatClient is the part of *openai.Client the advisor calls.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Advisor implements services.RecommendationProvider.
type Advisor struct {
	client    chatClient
	model     string
	maxTokens int
	timeout   time.Duration
}

var _ services.RecommendationProvider = (*Advisor)(nil)

// New builds an Advisor from cfg.
func New(cfg config.AdvisorConfig) (*Advisor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Advisor{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

// Compute asks the model for recommendations. On failure the returned
// Computation still carries the prompt so the attempt can be audited.
func (a *Advisor) Compute(ctx context.Context, v domain.Vehicle, history []domain.MaintenanceRecord) (services.Computation, error) {
	prompt, err := BuildPrompt(v, history)
	if err != nil {
		return services.Computation{}, err
	}
	system, err := SystemPrompt()
	if err != nil {
		return services.Computation{}, err
	}
	comp := services.Computation{Prompt: prompt, Model: a.model}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return comp, fmt.Errorf("openai chat completion: %w", err)
	}

	if raw, merr := json.Marshal(resp); merr == nil {
		comp.RawResponse = string(raw)
	}
	if resp.Model != "" {
		comp.Model = resp.Model
	}
	if resp.Usage.TotalTokens > 0 {
		n := resp.Usage.TotalTokens
		comp.TokensUsed = &n
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return comp, errors.New("openai: empty completion")
	}
	comp.Text = strings.TrimSpace(resp.Choices[0].Message.Content)
	return comp, nil
}
