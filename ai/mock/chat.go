package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/poiesic/ragchat/ai"
)

// DefaultReply is what MockChatModel answers when nothing else is configured.
const DefaultReply = "direct"

// MockChatModel is a test double for ai.ChatModel.
// It records every message sequence it receives and is safe for concurrent use.
type MockChatModel struct {
	// InvokeFunc is called by Invoke if set.
	InvokeFunc func(ctx context.Context, messages []ai.Message) (*ai.Response, error)

	mu      sync.Mutex
	replies []string
	calls   [][]ai.Message
}

// NewMockChatModel creates a mock chat model with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

// WithInvokeFunc sets custom behavior for Invoke.
func (m *MockChatModel) WithInvokeFunc(fn func(ctx context.Context, messages []ai.Message) (*ai.Response, error)) *MockChatModel {
	m.InvokeFunc = fn
	return m
}

// WithReplies queues replies returned in order by successive Invoke calls.
// Once the queue is drained the last reply repeats.
func (m *MockChatModel) WithReplies(replies ...string) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
	return m
}

// Invoke records the messages and returns the next scripted reply.
func (m *MockChatModel) Invoke(ctx context.Context, messages []ai.Message) (*ai.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, slices.Clone(messages))
	fn := m.InvokeFunc
	var reply string
	switch len(m.replies) {
	case 0:
		reply = DefaultReply
	case 1:
		reply = m.replies[0]
	default:
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ai.Response{Content: reply}, nil
}

// CallCount returns the number of times Invoke was called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of every message sequence received, in call order.
func (m *MockChatModel) Calls() [][]ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// LastCall returns the most recent message sequence, or nil if Invoke was never called.
func (m *MockChatModel) LastCall() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Reset clears recorded calls, queued replies, and custom behavior.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.replies = nil
	m.InvokeFunc = nil
}
