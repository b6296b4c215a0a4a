package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/core"
)

// Router classifies a question as needing the document index or not.
type Router struct {
	model   ai.ChatModel
	subject string
	logger  *slog.Logger
}

// NewRouter creates a router backed by model.
// Recognized options: WithSubject, WithLogger.
func NewRouter(model ai.ChatModel, opts ...Option) (*Router, error) {
	if model == nil {
		return nil, ErrChatModelRequired
	}
	o := defaultOptions("router")
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	return &Router{
		model:   model,
		subject: o.subject,
		logger:  o.logger,
	}, nil
}

// Route asks the model for a decision and sets NeedsRetrieval.
// Only a reply of "retrieve" (case and surrounding space ignored) selects
// retrieval. Anything else answers directly. Model errors are returned as is.
func (r *Router) Route(ctx context.Context, state core.ConversationState) (core.StateUpdate, error) {
	messages, err := formatPrompt(routePrompt, map[string]any{
		"subject":  r.subject,
		"question": state.Question,
	})
	if err != nil {
		return core.StateUpdate{}, err
	}

	resp, err := r.model.Invoke(ctx, messages)
	if err != nil {
		return core.StateUpdate{}, err
	}

	decision := strings.ToLower(strings.TrimSpace(resp.Content))
	switch decision {
	case decisionRetrieve, decisionDirect:
		r.logger.Debug("routed question", "decision", decision)
	default:
		r.logger.Warn("unrecognized routing decision, answering directly", "reply", resp.Content)
	}
	return core.StateUpdate{NeedsRetrieval: core.Bool(decision == decisionRetrieve)}, nil
}
