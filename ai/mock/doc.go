// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.ChatModel, ai.Embedder,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Scripted chat replies
//	chat := mock.NewMockChatModel().WithReplies("retrieve", "The answer.")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder().
//	    WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return []float32{0.1, 0.2, 0.3}, nil
//	    })
//
//	// Inspect what the model saw
//	calls := chat.Calls()
//
// # Default Behavior
//
//   - MockChatModel: replies "direct"
//   - MockEmbedder: returns deterministic vectors based on text hash
//   - MockProvider: aggregates a mock chat model and embedder
package mock
