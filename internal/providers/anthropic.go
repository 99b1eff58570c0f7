// Package providers implements synthesis.Client against the supported
// language-model services.
package providers

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed synthesis client.
func NewAnthropicClient(apiKey, modelName string) *AnthropicClient {
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}
}

// Complete sends a single user prompt and returns the concatenated text
// content of the response.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic response contained no text content")
	}
	return text, nil
}
