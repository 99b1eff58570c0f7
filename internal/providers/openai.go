package providers

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient calls the OpenAI chat completions API, or any
// OpenAI-compatible endpoint via a base URL override.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed synthesis client. baseURL may be
// empty for the default endpoint.
func NewOpenAIClient(apiKey, modelName, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}
}

// Complete sends a single user prompt and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
