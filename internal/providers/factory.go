package providers

import (
	"fmt"
	"os"

	"github.com/nbouchiba/allure/internal/llm"
)

// NewClientFromEnv creates an llm.Client based on environment variables.
// LLM_PROVIDER selects the backend (default "openai").
func NewClientFromEnv() (llm.Client, string, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}

		modelName := os.Getenv("OPENAI_MODEL")
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}

		baseURL := os.Getenv("OPENAI_BASE_URL") // for OpenAI-compatible APIs

		return NewOpenAIClient(apiKey, modelName, baseURL), modelName, nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}

		modelName := os.Getenv("ANTHROPIC_MODEL")
		if modelName == "" {
			modelName = "claude-3-5-sonnet-20241022"
		}

		return NewAnthropicClient(apiKey, modelName), modelName, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
