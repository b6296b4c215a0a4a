package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragchat/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatModel implements ai.ChatModel over an OpenAI-compatible chat completion endpoint.
type ChatModel struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return newChatModelWithClient(client, config.Temperature), nil
}

func newChatModelWithClient(client llms.Model, temperature float64) *ChatModel {
	return &ChatModel{
		client:      client,
		temperature: temperature,
		logger:      slog.Default().With("component", "openai-chat"),
	}
}

// NewChatModel creates a chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Invoke sends messages to the model and returns the first choice.
func (c *ChatModel) Invoke(ctx context.Context, messages []ai.Message) (*ai.Response, error) {
	content, err := toMessageContent(messages)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("invoking chat model", "messages", len(messages))
	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(c.temperature))
	if err != nil {
		c.logger.Error("chat completion failed", "err", err)
		return nil, err
	}

	if len(response.Choices) < 1 {
		c.logger.Warn("chat model returned no choices")
		return &ai.Response{}, nil
	}

	return &ai.Response{Content: response.Choices[0].Content}, nil
}

func toMessageContent(messages []ai.Message) ([]llms.MessageContent, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role, err := toChatMessageType(m.Role)
		if err != nil {
			return nil, err
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content, nil
}

func toChatMessageType(role ai.Role) (llms.ChatMessageType, error) {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem, nil
	case ai.RoleHuman:
		return llms.ChatMessageTypeHuman, nil
	case ai.RoleAI:
		return llms.ChatMessageTypeAI, nil
	default:
		return "", fmt.Errorf("unsupported message role %q", role)
	}
}
