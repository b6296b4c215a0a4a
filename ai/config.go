// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
)

// Supported chat providers.
const (
	// ProviderOpenAI talks to any OpenAI-compatible API (OpenAI, Ollama, LocalAI, vLLM).
	ProviderOpenAI = "openai"
	// ProviderGemini talks to the Google Gemini API.
	ProviderGemini = "gemini"
)

// Config holds configuration for AI service providers.
type Config struct {
	// ChatProvider selects the chat model backend: "openai" or "gemini".
	ChatProvider string

	// ChatHost is the base URL for the chat completion API.
	// Ignored by the gemini provider.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ChatHost string

	// ChatModel is the model identifier used for routing and answer generation.
	// Example: "qwen2.5:3b", "gpt-4o-mini", "gemini-2.0-flash"
	ChatModel string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// APIKey authenticates against hosted APIs.
	// Local OpenAI-compatible servers accept any token; "none" is sent when empty.
	APIKey string

	// EmbeddingAPIKey authenticates against the embedding host.
	// When empty, APIKey is reused only if the chat model is served by the
	// same OpenAI-compatible host; otherwise "none" is sent.
	EmbeddingAPIKey string

	// Temperature controls sampling randomness. Default: 0
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithChatProvider sets the chat model backend.
func WithChatProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.ChatProvider = provider
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithHost sets both chat and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
		c.EmbeddingHost = host
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key for hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingAPIKey sets the API key for the embedding host.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both chat and embedding use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		ChatProvider:   ProviderOpenAI,
		ChatHost:       defaultHost,
		ChatModel:      "qwen2.5:3b",
		EmbeddingHost:  defaultHost,
		EmbeddingModel: "embeddinggemma",
		Temperature:    0,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//   cfg := NewConfig(
//       WithHost("http://localhost:11434/v1"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
//
// Example with Gemini for chat and a local embedding server:
//   cfg := NewConfig(
//       WithChatProvider(ProviderGemini),
//       WithChatModel("gemini-2.0-flash"),
//       WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lower-cases the provider name and adds the /v1 suffix to hosts if missing,
// which is required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.ChatProvider = strings.ToLower(strings.TrimSpace(c.ChatProvider))
	c.ChatHost = normalizeHost(c.ChatHost)
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	// Remove trailing slash if present before adding /v1
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	switch c.ChatProvider {
	case ProviderOpenAI:
		if c.ChatHost == "" {
			return errors.New("ai config: ChatHost is required")
		}
	case ProviderGemini:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for the gemini provider")
		}
	default:
		return errors.New("ai config: ChatProvider must be one of openai, gemini")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}

// Token returns the bearer token to send to the OpenAI-compatible chat host.
func (c *Config) Token() string {
	if c.APIKey == "" {
		return "none"
	}
	return c.APIKey
}

// EmbeddingToken returns the bearer token to send to the embedding host.
// The chat key never leaves for a host other than the one it was issued for.
func (c *Config) EmbeddingToken() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	if c.ChatProvider == ProviderOpenAI && c.APIKey != "" &&
		normalizeHost(c.ChatHost) == normalizeHost(c.EmbeddingHost) {
		return c.APIKey
	}
	return "none"
}
