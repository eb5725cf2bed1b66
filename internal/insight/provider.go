package insight

import (
	"context"

	"github.com/ConfabulousDev/confab-insights/internal/anthropic"
)

// Provider performs the single qualitative analysis call
type Provider interface {
	Analyze(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f ProviderFunc) Analyze(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// AnthropicProvider sends prompts to the Messages API
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider wraps client for model
func NewAnthropicProvider(client *anthropic.Client, model string, maxTokens int) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: model, maxTokens: maxTokens}
}

func (p *AnthropicProvider) Analyze(ctx context.Context, prompt Prompt) (string, error) {
	temperature := 0.0
	resp, err := p.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: &temperature,
		System:      prompt.System,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt.User}},
	})
	if err != nil {
		return "", err
	}
	return resp.GetTextContent(), nil
}
