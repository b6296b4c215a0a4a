package storage

import (
	"context"

	"github.com/poiesic/ragchat/core"
)

// CheckpointRepository persists conversation state per thread.
// Implementations must be thread-safe. Saves for one thread are serialized;
// saves for distinct threads may proceed concurrently.
type CheckpointRepository interface {
	// SaveCheckpoint stores state as the latest checkpoint of threadID and
	// appends it to the thread's history. node names the graph node whose
	// execution produced the state. Returns the new sequence number, which
	// starts at 1 and increases by one on every save for the same thread.
	SaveCheckpoint(ctx context.Context, threadID, node string, state *core.ConversationState) (uint64, error)

	// LoadCheckpoint returns the latest checkpoint of threadID.
	// Returns ErrNotFound if nothing was ever saved for the thread.
	LoadCheckpoint(ctx context.Context, threadID string) (*core.ThreadCheckpoint, error)

	// History returns up to limit of the most recent checkpoints of threadID,
	// oldest first. A limit of 0 returns the whole history.
	// An unknown thread yields an empty slice, not an error.
	History(ctx context.Context, threadID string, limit int) ([]*core.ThreadCheckpoint, error)

	// Close releases resources held by the repository.
	Close() error
}

// PassageRepository is the vector index holding ingested passages.
// Implementations must be thread-safe and support concurrent access.
type PassageRepository interface {
	// AddPassages stores passages with their embeddings.
	// Passages are keyed by ID; re-adding an ID replaces the stored passage.
	AddPassages(ctx context.Context, passages ...*core.IndexedPassage) error

	// FindSimilar finds passages similar to the given normalized vector.
	// Returns passages with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}
