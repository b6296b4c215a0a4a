package ai

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem carries instructions that frame the conversation.
	RoleSystem Role = "system"
	// RoleHuman carries user input.
	RoleHuman Role = "human"
	// RoleAI carries a previous model reply.
	RoleAI Role = "ai"
)

// Message is a single entry in a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// HumanMessage creates a human message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// Response is the text produced by a chat model.
type Response struct {
	Content string
}

// ChatModel is the language-model collaborator used for classification and generation.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Invoke sends the message sequence to the model and returns its reply.
	// An empty reply is not an error; transport and API failures are.
	Invoke(ctx context.Context, messages []Message) (*Response, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages ChatModel and Embedder instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// ChatModel returns the chat completion service.
	// The returned ChatModel is safe for concurrent use.
	ChatModel() ChatModel

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
