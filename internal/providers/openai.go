package providers

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/nbouchiba/allure/internal/llm"
)

// OpenAIClient implements llm.Client via the OpenAI chat completions API.
// A custom base URL allows pointing it at any OpenAI-compatible service.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI-backed chat client.
// baseURL may be empty to use the default endpoint.
func NewOpenAIClient(apiKey, modelName, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}
}

// Chat sends the conversation and returns the assistant's text reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	if err := llm.ValidateMessages(messages); err != nil {
		return "", err
	}

	openaiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleUser:
			role = openai.ChatMessageRoleUser
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			continue
		}
		openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	temperature := float32(0.7)
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    openaiMsgs,
		Temperature: &temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", llm.ClassifyError(fmt.Errorf("openai chat failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
