package rag

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/ai/mock"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
	"github.com/poiesic/ragchat/storage/badger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var vocabulary = []string{"skill", "go", "typescript", "nepal", "weather"}

// keywordEmbedding maps text onto one dimension per vocabulary word.
func keywordEmbedding(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		if strings.Contains(lower, word) {
			v[i] = 1
		}
	}
	return v
}

func keywordEmbedder() *mock.MockEmbedder {
	return mock.NewMockEmbedder().WithEmbedTextFunc(func(_ context.Context, text string) ([]float32, error) {
		return keywordEmbedding(text), nil
	})
}

func newPassages(t *testing.T) (*badger.CheckpointRepository, *badger.PassageRepository) {
	t.Helper()
	checkpoints, passages, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return checkpoints, passages
}

func seed(t *testing.T, repo storage.PassageRepository, contents ...string) {
	t.Helper()
	indexed := make([]*core.IndexedPassage, 0, len(contents))
	for _, content := range contents {
		indexed = append(indexed, &core.IndexedPassage{
			Passage: core.Passage{Id: core.IDFromContent(content), Content: content},
			Vector:  ai.Normalize(keywordEmbedding(content)),
		})
	}
	require.NoError(t, repo.AddPassages(context.Background(), indexed...))
}

// recordingPassages captures FindSimilar arguments and returns canned hits.
type recordingPassages struct {
	mu            sync.Mutex
	vector        []float32
	minSimilarity float32
	limit         int
	hits          []*core.ScoredPassage
	err           error
}

var _ storage.PassageRepository = (*recordingPassages)(nil)

func (r *recordingPassages) AddPassages(context.Context, ...*core.IndexedPassage) error {
	return nil
}

func (r *recordingPassages) FindSimilar(_ context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vector = vector
	r.minSimilarity = minSimilarity
	r.limit = limit
	return r.hits, r.err
}

func (r *recordingPassages) Count(context.Context) (int, error) {
	return len(r.hits), nil
}

func (r *recordingPassages) Close() error {
	return nil
}

func readyStatus() *IndexStatus {
	s := &IndexStatus{}
	s.MarkReady()
	return s
}
