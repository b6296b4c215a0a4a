package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

// IndexStatus records whether the passage index has been populated.
// The zero value is not ready. Safe for concurrent use.
type IndexStatus struct {
	ready atomic.Bool
}

// MarkReady flags the index as queryable.
func (s *IndexStatus) MarkReady() {
	s.ready.Store(true)
}

// Ready reports whether MarkReady has been called.
func (s *IndexStatus) Ready() bool {
	return s.ready.Load()
}

// Retriever looks up the passages closest to a question.
type Retriever struct {
	embedder      ai.Embedder
	passages      storage.PassageRepository
	status        *IndexStatus
	topK          int
	minSimilarity float32
	logger        *slog.Logger
}

// NewRetriever creates a retriever over the passage index.
// Recognized options: WithTopK, WithMinSimilarity, WithLogger.
func NewRetriever(embedder ai.Embedder, passages storage.PassageRepository, status *IndexStatus, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if passages == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if status == nil {
		return nil, ErrIndexStatusRequired
	}
	o := defaultOptions("retriever")
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	return &Retriever{
		embedder:      embedder,
		passages:      passages,
		status:        status,
		topK:          o.topK,
		minSimilarity: o.minSimilarity,
		logger:        o.logger,
	}, nil
}

// Retrieve sets Context to the best matching passages, most similar first.
// An empty result is a non-nil empty Context.
func (r *Retriever) Retrieve(ctx context.Context, state core.ConversationState) (core.StateUpdate, error) {
	if !r.status.Ready() {
		return core.StateUpdate{}, core.ErrIndexUnavailable
	}

	embedding, err := r.embedder.EmbedText(ctx, state.Question)
	if err != nil {
		r.logger.Error("error generating embedding for question", "err", err)
		return core.StateUpdate{}, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := r.passages.FindSimilar(ctx, ai.Normalize(embedding), r.minSimilarity, r.topK)
	if err != nil {
		r.logger.Error("error querying for similar passages", "err", err)
		return core.StateUpdate{}, fmt.Errorf("searching passages: %w", err)
	}

	found := make([]core.Passage, 0, len(hits))
	for _, hit := range hits {
		found = append(found, hit.Passage.Clone())
	}
	r.logger.Debug("retrieved passages", "count", len(found))
	return core.StateUpdate{Context: found}, nil
}
