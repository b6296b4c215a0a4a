// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ragchat answers questions either directly from a chat model or
// grounded in passages retrieved from a document index, keeping per-thread
// conversation checkpoints.
//
// A Service has a two-phase lifecycle: New wires every component without
// doing I/O against remote stores, Initialize connects them and ingests the
// configured sources, and Close tears everything down.
package ragchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/ai/gemini"
	"github.com/poiesic/ragchat/ai/openai"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/graph"
	"github.com/poiesic/ragchat/ingestion"
	"github.com/poiesic/ragchat/metrics"
	"github.com/poiesic/ragchat/rag"
	"github.com/poiesic/ragchat/storage"
	"github.com/poiesic/ragchat/storage/badger"
	"github.com/poiesic/ragchat/storage/pgvector"
	redisstore "github.com/poiesic/ragchat/storage/redis"
)

var (
	// ErrServiceClosed is returned by every operation after Close.
	ErrServiceClosed = errors.New("service closed")

	// ErrNoAnswer is returned when a traversal ends without an answer.
	ErrNoAnswer = graph.ErrNoAnswer
)

// Service is the conversation entry point.
type Service struct {
	cfg         *Config
	provider    ai.AIProvider
	backend     *badger.Backend
	passages    storage.PassageRepository
	checkpoints storage.CheckpointRepository
	status      *rag.IndexStatus
	engine      *graph.Engine
	progress    io.Writer
	logger      *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type serviceOptions struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	provider ai.AIProvider
	progress io.Writer
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder observing every traversal.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(o *serviceOptions) {
		o.recorder = recorder
	}
}

// WithProvider uses provider instead of building one from Config.AI.
// The service takes ownership and closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithProgress reports ingestion progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *serviceOptions) {
		o.progress = w
	}
}

// New validates cfg and wires the service. Remote stores are not contacted
// until Initialize.
func New(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	options := serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		provider: options.provider,
		status:   &rag.IndexStatus{},
		progress: options.progress,
		logger:   options.logger,
	}
	if err := s.build(options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(options serviceOptions) error {
	cfg := s.cfg

	if s.provider == nil {
		provider, err := newProvider(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
		s.provider = provider
	}

	if cfg.usesBadger() {
		backend, err := badger.OpenBackend(cfg.DataPath, cfg.InMemory)
		if err != nil {
			return fmt.Errorf("opening badger at %s: %w", cfg.DataPath, err)
		}
		s.backend = backend
	}

	switch cfg.Index {
	case IndexPgvector:
		passages, err := pgvector.New(context.Background(), pgvector.Options{
			DatabaseURL: cfg.DatabaseURL,
			Table:       cfg.PassageTable,
		})
		if err != nil {
			return err
		}
		s.passages = passages
	default:
		s.passages = badger.NewPassageRepository(s.backend)
	}

	switch cfg.Checkpoints {
	case CheckpointsRedis:
		s.checkpoints = redisstore.New(cfg.Redis)
	default:
		s.checkpoints = badger.NewCheckpointRepository(s.backend)
	}

	nodeOpts := []rag.Option{
		rag.WithLogger(s.logger),
		rag.WithTopK(cfg.TopK),
		rag.WithMinSimilarity(cfg.MinSimilarity),
	}
	if cfg.Subject != "" {
		nodeOpts = append(nodeOpts, rag.WithSubject(cfg.Subject))
	}

	router, err := rag.NewRouter(s.provider.ChatModel(), nodeOpts...)
	if err != nil {
		return err
	}
	retriever, err := rag.NewRetriever(s.provider.Embedder(), s.passages, s.status, nodeOpts...)
	if err != nil {
		return err
	}
	generator, err := rag.NewGenerator(s.provider.ChatModel(), nodeOpts...)
	if err != nil {
		return err
	}
	def, err := rag.NewConversationGraph(router, retriever, generator)
	if err != nil {
		return err
	}

	s.engine, err = graph.NewEngine(def, s.checkpoints,
		graph.WithNodeTimeout(cfg.NodeTimeout),
		graph.WithLogger(s.logger),
		graph.WithRecorder(options.recorder),
	)
	return err
}

func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.ChatProvider {
	case ai.ProviderGemini:
		return gemini.NewProvider(context.Background(), cfg)
	default:
		return openai.NewProvider(cfg)
	}
}

// Initialize connects the stores and ingests the configured sources.
// The index is marked ready only when everything succeeded; until then the
// retrieval path fails with core.ErrIndexUnavailable.
func (s *Service) Initialize(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServiceClosed
	}

	if p, ok := s.checkpoints.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	if e, ok := s.passages.(interface{ EnsureSchema(context.Context) error }); ok {
		if err := e.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if s.cfg.SkipIngest || len(s.cfg.Sources) == 0 {
		count, err := s.passages.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting passages: %w", err)
		}
		s.logger.Info("skipping ingestion", "passages", count)
	} else if _, err := s.Ingest(ctx, s.cfg.Sources...); err != nil {
		return fmt.Errorf("ingesting sources: %w", err)
	}

	s.status.MarkReady()
	return nil
}

// Ingest loads sources into the passage index.
func (s *Service) Ingest(ctx context.Context, sources ...string) (*ingestion.Report, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	pipeline, err := ingestion.NewPipeline(s.passages, s.provider.Embedder(),
		ingestion.WithChunking(s.cfg.ChunkSize, s.cfg.ChunkOverlap),
		ingestion.WithBatchSize(s.cfg.BatchSize),
		ingestion.WithSelector(s.cfg.HTMLSelector),
		ingestion.WithProgress(s.progress),
		ingestion.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()
	return pipeline.Ingest(ctx, sources...)
}

// Ready reports whether Initialize completed.
func (s *Service) Ready() bool {
	return s.status.Ready()
}

// Run answers question on threadID and returns the full traversal result.
func (s *Service) Run(ctx context.Context, threadID, question string) (*graph.Result, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	return s.engine.Run(ctx, threadID, question)
}

// Query answers question on threadID.
func (s *Service) Query(ctx context.Context, threadID, question string) (string, error) {
	result, err := s.Run(ctx, threadID, question)
	if err != nil {
		return "", err
	}
	return *result.State.Answer, nil
}

// Checkpoint returns the latest checkpoint of threadID or storage.ErrNotFound.
func (s *Service) Checkpoint(ctx context.Context, threadID string) (*core.ThreadCheckpoint, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	return s.checkpoints.LoadCheckpoint(ctx, threadID)
}

// History returns up to limit checkpoints of threadID, oldest first. 0 means all.
func (s *Service) History(ctx context.Context, threadID string, limit int) ([]*core.ThreadCheckpoint, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	return s.checkpoints.History(ctx, threadID, limit)
}

// Close releases the provider and the stores. Safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if s.provider != nil {
			if err := s.provider.Close(); err != nil {
				s.logger.Error("error closing AI provider", "err", err)
				errs = append(errs, err)
			}
		}
		if s.checkpoints != nil {
			if err := s.checkpoints.Close(); err != nil {
				s.logger.Error("error closing checkpoint store", "err", err)
				errs = append(errs, err)
			}
		}
		if s.passages != nil {
			if err := s.passages.Close(); err != nil {
				s.logger.Error("error closing passage index", "err", err)
				errs = append(errs, err)
			}
		}
		if s.backend != nil {
			if err := s.backend.Close(); err != nil {
				s.logger.Error("error closing backend storage", "err", err)
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
