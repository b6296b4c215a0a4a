package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ChatProvider:   ProviderOpenAI,
		ChatHost:       "http://localhost:11434",
		ChatModel:      "qwen2.5:3b",
		EmbeddingHost:  "http://localhost:11434",
		EmbeddingModel: "embeddinggemma",
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.ChatProvider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Zero(t, cfg.Temperature)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
	})

	t.Run("with gemini chat", func(t *testing.T) {
		cfg := NewConfig(
			WithChatProvider(ProviderGemini),
			WithChatModel("gemini-2.0-flash"),
			WithAPIKey("secret"),
			WithTemperature(0.2),
		)

		assert.Equal(t, ProviderGemini, cfg.ChatProvider)
		assert.Equal(t, "gemini-2.0-flash", cfg.ChatModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name              string
		provider          string
		chatHost          string
		embeddingHost     string
		expectedProvider  string
		expectedChat      string
		expectedEmbedding string
	}{
		{
			name:              "already has /v1",
			provider:          "openai",
			chatHost:          "http://localhost:11434/v1",
			embeddingHost:     "http://localhost:11434/v1",
			expectedProvider:  "openai",
			expectedChat:      "http://localhost:11434/v1",
			expectedEmbedding: "http://localhost:11434/v1",
		},
		{
			name:              "missing /v1",
			provider:          "openai",
			chatHost:          "http://localhost:11434",
			embeddingHost:     "http://localhost:11434",
			expectedProvider:  "openai",
			expectedChat:      "http://localhost:11434/v1",
			expectedEmbedding: "http://localhost:11434/v1",
		},
		{
			name:              "has trailing slash",
			provider:          "openai",
			chatHost:          "http://localhost:11434/",
			embeddingHost:     "http://localhost:11434/",
			expectedProvider:  "openai",
			expectedChat:      "http://localhost:11434/v1",
			expectedEmbedding: "http://localhost:11434/v1",
		},
		{
			name:              "empty hosts",
			provider:          "",
			expectedProvider:  "",
			expectedChat:      "",
			expectedEmbedding: "",
		},
		{
			name:              "provider case and spacing",
			provider:          " Gemini ",
			embeddingHost:     "http://embed:8080",
			expectedProvider:  "gemini",
			expectedEmbedding: "http://embed:8080/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				ChatProvider:  tt.provider,
				ChatHost:      tt.chatHost,
				EmbeddingHost: tt.embeddingHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedProvider, cfg.ChatProvider)
			assert.Equal(t, tt.expectedChat, cfg.ChatHost)
			assert.Equal(t, tt.expectedEmbedding, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChatProvider = "qdrant"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ChatProvider")
	})

	t.Run("missing chat host", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChatHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ChatHost")
	})

	t.Run("gemini needs no chat host but an api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChatProvider = ProviderGemini
		cfg.ChatHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey")

		cfg.APIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing chat model", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChatModel = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ChatModel")
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingModel = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Temperature = -0.1
		assert.ErrorContains(t, cfg.Validate(), "Temperature")

		cfg.Temperature = 2.5
		assert.ErrorContains(t, cfg.Validate(), "Temperature")

		cfg.Temperature = 2
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigToken(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "none", cfg.Token())

	cfg.APIKey = "sk-test"
	assert.Equal(t, "sk-test", cfg.Token())
}

func TestConfigEmbeddingToken(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no keys", func(c *Config) {}, "none"},
		{"explicit embedding key", func(c *Config) {
			c.APIKey = "sk-chat"
			c.EmbeddingAPIKey = "sk-embed"
		}, "sk-embed"},
		{"chat key reused on the same host", func(c *Config) {
			c.APIKey = "sk-chat"
			c.EmbeddingHost = "http://localhost:11434/v1"
		}, "sk-chat"},
		{"chat key withheld from another host", func(c *Config) {
			c.APIKey = "sk-chat"
			c.EmbeddingHost = "http://embeddings:11434"
		}, "none"},
		{"gemini key withheld from the embedding host", func(c *Config) {
			c.ChatProvider = ProviderGemini
			c.APIKey = "gemini-secret"
		}, "none"},
		{"gemini with embedding key", func(c *Config) {
			c.ChatProvider = ProviderGemini
			c.APIKey = "gemini-secret"
			c.EmbeddingAPIKey = "sk-embed"
		}, "sk-embed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Equal(t, tt.want, cfg.EmbeddingToken())
		})
	}

	cfg := NewConfig(WithEmbeddingAPIKey("sk-embed"))
	assert.Equal(t, "sk-embed", cfg.EmbeddingAPIKey)
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "rules"}, SystemMessage("rules"))
	assert.Equal(t, Message{Role: RoleHuman, Content: "hi"}, HumanMessage("hi"))
}
