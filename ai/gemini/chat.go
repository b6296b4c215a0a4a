package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragchat/ai"
	"google.golang.org/genai"
)

// generator is the part of *genai.Models the chat model needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ChatModel implements ai.ChatModel over the Gemini API.
type ChatModel struct {
	models      generator
	model       string
	temperature float32
	logger      *slog.Logger
}

func newChatModel(models generator, model string, temperature float64) *ChatModel {
	return &ChatModel{
		models:      models,
		model:       model,
		temperature: float32(temperature),
		logger:      slog.Default().With("component", "gemini-chat"),
	}
}

// Invoke sends messages to Gemini and returns the concatenated text of the first candidate.
func (c *ChatModel) Invoke(ctx context.Context, messages []ai.Message) (*ai.Response, error) {
	system, contents, err := toContents(messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: system,
	}

	c.logger.Debug("invoking gemini", "model", c.model, "messages", len(messages))
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.logger.Error("gemini generation failed", "err", err)
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		c.logger.Warn("gemini returned no candidates")
		return &ai.Response{}, nil
	}

	return &ai.Response{Content: resp.Text()}, nil
}

// toContents splits system messages from the conversation turns.
// Multiple system messages are joined into a single instruction.
func toContents(messages []ai.Message) (*genai.Content, []*genai.Content, error) {
	var (
		system   []string
		contents = make([]*genai.Content, 0, len(messages))
	)
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			system = append(system, m.Content)
		case ai.RoleHuman:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case ai.RoleAI:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	var instruction *genai.Content
	if len(system) > 0 {
		instruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	return instruction, contents, nil
}
