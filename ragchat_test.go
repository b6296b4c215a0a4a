package ragchat

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/ai/mock"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/graph"
	"github.com/poiesic/ragchat/metrics"
	"github.com/poiesic/ragchat/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// routingModel answers the routing prompt with decision and echoes whether
// the answer prompt was grounded.
func routingModel(decision string) *mock.MockChatModel {
	return mock.NewMockChatModel().WithInvokeFunc(func(_ context.Context, messages []ai.Message) (*ai.Response, error) {
		switch {
		case len(messages) == 3:
			return &ai.Response{Content: decision}, nil
		case messages[0].Role == ai.RoleSystem:
			return &ai.Response{Content: "grounded: " + messages[0].Content}, nil
		default:
			return &ai.Response{Content: "direct: " + messages[0].Content}, nil
		}
	})
}

func testConfig(t *testing.T, sources ...string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.Sources = sources
	return cfg
}

func newService(t *testing.T, cfg *Config, chat *mock.MockChatModel, opts ...Option) (*Service, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProviderWithServices(chat, mock.NewMockEmbedder())
	opts = append([]Option{WithProvider(provider), WithLogger(discardLogger())}, opts...)
	svc, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, provider
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "about.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no AI config", func(c *Config) { c.AI = nil }},
		{"unknown index", func(c *Config) { c.Index = "qdrant" }},
		{"pgvector without url", func(c *Config) { c.Index = IndexPgvector }},
		{"unknown checkpoints", func(c *Config) { c.Checkpoints = "memory" }},
		{"redis without addr", func(c *Config) { c.Checkpoints = CheckpointsRedis; c.Redis.Addr = "" }},
		{"badger without path", func(c *Config) { c.DataPath = "" }},
		{"zero top-k", func(c *Config) { c.TopK = 0 }},
		{"zero timeout", func(c *Config) { c.NodeTimeout = 0 }},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"bad AI config", func(c *Config) { c.AI.ChatModel = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("remote stores need no data path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataPath = ""
		cfg.Index = IndexPgvector
		cfg.DatabaseURL = "postgres://localhost/ragchat"
		cfg.Checkpoints = CheckpointsRedis
		assert.NoError(t, cfg.Validate())
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.TopK = -1
	svc, err := New(cfg, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, svc)
}

func TestNew_BadDataPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	cfg := DefaultConfig()
	cfg.DataPath = file
	provider := mock.NewMockProviderWithServices(mock.NewMockChatModel(), mock.NewMockEmbedder())
	_, err := New(cfg, WithProvider(provider), WithLogger(discardLogger()))
	assert.Error(t, err)
	assert.True(t, provider.Closed(), "partially built service is torn down")
}

func TestService_DirectScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testConfig(t, writeSource(t, "Skills: Go")), routingModel("direct"))
	require.NoError(t, svc.Initialize(ctx))

	answer, err := svc.Query(ctx, "thread-1", "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "direct: What is 2+2?", answer)

	latest, err := svc.Checkpoint(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "generate", latest.Node)
	assert.False(t, latest.State.RetrievalRequested())
	assert.Nil(t, latest.State.Context)
}

func TestService_GroundedScenario(t *testing.T) {
	ctx := context.Background()
	source := writeSource(t, "Prakash is a fullstack developer from Nepal. His skills include Go.")
	cfg := testConfig(t, source)
	cfg.MinSimilarity = -1 // hash embeddings carry no meaning; keep every hit
	svc, provider := newService(t, cfg, routingModel("retrieve"))

	require.NoError(t, svc.Initialize(ctx))
	assert.True(t, svc.Ready())

	result, err := svc.Run(ctx, "thread-1", "What are his skills?")
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "retrieve", "generate"}, result.Path)
	require.Len(t, result.State.Context, 1)
	assert.True(t, strings.HasPrefix(*result.State.Answer, "grounded: "))
	assert.Contains(t, *result.State.Answer, "His skills include Go.")

	history, err := svc.History(ctx, "thread-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Positive(t, provider.GetMockEmbedder().CallCount())
}

func TestService_QueryBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testConfig(t), routingModel("retrieve"))

	_, err := svc.Query(ctx, "thread-1", "What are his skills?")
	require.ErrorIs(t, err, core.ErrIndexUnavailable)

	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "retrieve", nodeErr.Node)
}

func TestService_IngestionFailureLeavesIndexUnavailable(t *testing.T) {
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing.txt")
	svc, _ := newService(t, testConfig(t, missing), routingModel("retrieve"))

	err := svc.Initialize(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, svc.Ready())

	_, err = svc.Query(ctx, "thread-1", "What are his skills?")
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestService_SkipIngest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.txt"))
	cfg.SkipIngest = true
	svc, _ := newService(t, cfg, routingModel("retrieve"))

	require.NoError(t, svc.Initialize(ctx))
	answer, err := svc.Query(ctx, "thread-1", "What are his skills?")
	require.NoError(t, err)
	assert.Equal(t, "direct: What are his skills?", answer, "empty index answers like the direct path")
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SkipIngest = true
	svc, _ := newService(t, cfg, routingModel("direct"))
	require.NoError(t, svc.Initialize(ctx))

	report, err := svc.Ingest(ctx, writeSource(t, "one passage"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
}

func TestService_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	svc, _ := newService(t, testConfig(t), routingModel("direct"), WithRecorder(recorder))
	require.NoError(t, svc.Initialize(ctx))
	_, err = svc.Query(ctx, "thread-1", "hello")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "ragchat_node_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "route and generate")
}

func TestService_Close(t *testing.T) {
	ctx := context.Background()
	svc, provider := newService(t, testConfig(t), routingModel("direct"))

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close(), "idempotent")
	assert.True(t, provider.Closed())

	_, err := svc.Query(ctx, "thread-1", "hello")
	assert.ErrorIs(t, err, ErrServiceClosed)
	_, err = svc.Checkpoint(ctx, "thread-1")
	assert.ErrorIs(t, err, ErrServiceClosed)
	_, err = svc.History(ctx, "thread-1", 0)
	assert.ErrorIs(t, err, ErrServiceClosed)
	_, err = svc.Ingest(ctx, "x")
	assert.ErrorIs(t, err, ErrServiceClosed)
	assert.ErrorIs(t, svc.Initialize(ctx), ErrServiceClosed)
}

func TestService_CheckpointNotFound(t *testing.T) {
	svc, _ := newService(t, testConfig(t), routingModel("direct"))
	_, err := svc.Checkpoint(context.Background(), "never-used")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
