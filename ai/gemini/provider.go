package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/ai/openai"
	"google.golang.org/genai"
)

// Provider implements ai.AIProvider with a Gemini chat model and an
// OpenAI-compatible embedder.
type Provider struct {
	chat     *ChatModel
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewProvider creates a Gemini-backed provider.
// config.APIKey authenticates against the Gemini API.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	embedder, err := openai.NewEmbedder(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		chat:     newChatModel(client.Models, config.ChatModel, config.Temperature),
		embedder: embedder,
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// ChatModel returns the Gemini chat model.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close is a no-op; the genai client holds no resources that need release.
func (p *Provider) Close() error {
	p.logger.Debug("closing gemini provider")
	return nil
}
