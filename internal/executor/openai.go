package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"

	"schedulerd/internal/scheduler"
)

// OpenAIConfig configures the OpenAI-compatible chat-completions adapter.
// BaseURL lets this point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI builds a scheduler.Executor backed by an OpenAI-compatible
// chat-completions endpoint: job.Prompt becomes the sole user message of a
// single-turn request.
func OpenAI(cfg OpenAIConfig) (scheduler.Executor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai executor: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai executor: model is required")
	}

	opts := []openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, openaioption.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)

	return func(ctx context.Context, rc scheduler.RunContext) (bool, error) {
		prompt := strings.TrimSpace(rc.Job.Prompt)
		if prompt == "" {
			return false, errors.New("job prompt is empty")
		}

		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			return false, fmt.Errorf("openai run %s: %w", rc.RunID, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return false, fmt.Errorf("openai run %s: empty response", rc.RunID)
		}
		return true, nil
	}, nil
}
