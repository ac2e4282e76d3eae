// Package executor provides concrete scheduler.Executor implementations
// against real conversational-agent backends. Each adapter is thin: build
// one completion request from the job's prompt, send it, map the result to
// {ok, error}. Neither adapter retries — the scheduler owns retry/backoff.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"schedulerd/internal/scheduler"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicConfig configures the Anthropic Messages-API adapter.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Anthropic builds a scheduler.Executor backed by the Anthropic Messages
// API: job.Prompt becomes the sole user message of a single-turn request.
func Anthropic(cfg AnthropicConfig) (scheduler.Executor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic executor: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("anthropic executor: model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, anthropicoption.WithBaseURL(base))
	}
	client := anthropic.NewClient(opts...)

	return func(ctx context.Context, rc scheduler.RunContext) (bool, error) {
		prompt := strings.TrimSpace(rc.Job.Prompt)
		if prompt == "" {
			return false, errors.New("job prompt is empty")
		}

		resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return false, fmt.Errorf("anthropic run %s: %w", rc.RunID, err)
		}
		if resp == nil || len(resp.Content) == 0 {
			return false, fmt.Errorf("anthropic run %s: empty response", rc.RunID)
		}
		return true, nil
	}, nil
}
