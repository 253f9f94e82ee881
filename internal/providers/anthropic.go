package providers

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/nbouchiba/allure/internal/llm"
)

// AnthropicClient implements llm.Client by calling the Anthropic SDK directly.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic-backed chat client.
func NewAnthropicClient(apiKey, modelName string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}
}

// Chat sends the conversation and returns the assistant's text reply.
func (c *AnthropicClient) Chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	if err := llm.ValidateMessages(messages); err != nil {
		return "", err
	}

	var systemParts []anthropic.MessageSystemPart
	var anthropicMsgs []anthropic.Message

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case llm.RoleUser:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		case llm.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	temperature := float32(0.7)
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    anthropicMsgs,
		MaxTokens:   4096,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return "", llm.ClassifyError(fmt.Errorf("anthropic chat failed: %w", err))
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	return text, nil
}
