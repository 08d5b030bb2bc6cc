package llm

import (
	"context"

	"github.com/aktagon/llmkit/anthropic/agents"
	"go.uber.org/zap"
)

const (
	anthropicMaxTokens   = 4096
	anthropicTemperature = 0.7
)

// AnthropicClient generates text through an llmkit chat agent
type AnthropicClient struct {
	apiKey string
	logger *zap.Logger
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey string, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{apiKey: apiKey, logger: logger.Named("anthropic")}
}

type chatResult struct {
	text string
	err  error
}

// Generate implements TextGenerator. The agent call is not context aware,
// so the caller is released when ctx ends and the result is discarded.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	agent, err := agents.New(c.apiKey)
	if err != nil {
		return "", err
	}

	done := make(chan chatResult, 1)
	go func() {
		resp, err := agent.Chat(prompt, &agents.ChatOptions{
			MaxTokens:   anthropicMaxTokens,
			Temperature: anthropicTemperature,
		})
		if err != nil {
			done <- chatResult{err: err}
			return
		}
		done <- chatResult{text: resp.Text}
	}()

	select {
	case <-ctx.Done():
		c.logger.Warn("Chat abandoned", zap.Error(ctx.Err()))
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.text == "" {
			return "", ErrEmptyResponse
		}
		return r.text, nil
	}
}
