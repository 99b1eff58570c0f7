package providers

import (
	"fmt"
	"os"

	"github.com/teamlens/teamlens/internal/synthesis"
)

// FromEnv creates a synthesis client based on environment variables.
// LLM_PROVIDER selects the provider; Anthropic is the default since the
// synthesis prompts were tuned against Claude.
func FromEnv() (synthesis.Client, string, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "anthropic"
	}

	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := os.Getenv("ANTHROPIC_MODEL")
		if modelName == "" {
			modelName = defaultAnthropicModel
		}
		return NewAnthropicClient(apiKey, modelName), modelName, nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		modelName := os.Getenv("OPENAI_MODEL")
		if modelName == "" {
			modelName = defaultOpenAIModel
		}
		baseURL := os.Getenv("OPENAI_BASE_URL") // For OpenAI-compatible APIs
		return NewOpenAIClient(apiKey, modelName, baseURL), modelName, nil

	case "ollama":
		// Local server, OpenAI-compatible. The key is ignored by Ollama but
		// must be non-empty for the SDK.
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		modelName := os.Getenv("OLLAMA_MODEL")
		if modelName == "" {
			modelName = "llama3.1"
		}
		return NewOpenAIClient("ollama", modelName, baseURL), modelName, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: anthropic, openai, ollama)", provider)
	}
}
