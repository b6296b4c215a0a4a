package rag

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/core"
)

// Generator produces the final answer.
type Generator struct {
	model  ai.ChatModel
	logger *slog.Logger
}

// NewGenerator creates a generator backed by model.
// Recognized options: WithLogger.
func NewGenerator(model ai.ChatModel, opts ...Option) (*Generator, error) {
	if model == nil {
		return nil, ErrChatModelRequired
	}
	o := defaultOptions("generator")
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	return &Generator{model: model, logger: o.logger}, nil
}

// Generate sets Answer.
//
// With retrieved passages the model gets the QA template: instructions and
// newline-joined context as a system message, the question as a human message.
// Without passages it gets the bare question as a single human message.
func (g *Generator) Generate(ctx context.Context, state core.ConversationState) (core.StateUpdate, error) {
	var messages []ai.Message
	if state.HasContext() {
		var err error
		messages, err = formatPrompt(answerPrompt, map[string]any{
			"context":  joinContext(state.Context),
			"question": state.Question,
		})
		if err != nil {
			return core.StateUpdate{}, err
		}
	} else {
		messages = []ai.Message{ai.HumanMessage(state.Question)}
	}
	g.logger.Debug("generating answer", "grounded", state.HasContext(), "passages", len(state.Context))

	resp, err := g.model.Invoke(ctx, messages)
	if err != nil {
		return core.StateUpdate{}, err
	}
	return core.StateUpdate{Answer: core.String(resp.Content)}, nil
}
