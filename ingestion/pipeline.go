package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 200
	// DefaultBatchSize is the number of chunks per embedding request.
	DefaultBatchSize = 32
	// MetadataChunk is the passage metadata key holding the chunk position within its source.
	MetadataChunk = "chunk"
)

// Report summarizes one Ingest call.
type Report struct {
	Sources   int           // Sources requested
	Documents int           // Documents produced by the loaders
	Chunks    int           // Distinct non-empty chunks after splitting
	Stored    int           // Chunks embedded and written to the index
	Duration  time.Duration // Wall time of the whole call
}

// Pipeline loads, splits, embeds and stores documents.
type Pipeline struct {
	passages     storage.PassageRepository
	embedder     ai.Embedder
	pool         *ants.Pool
	splitter     textsplitter.TextSplitter
	chunkSize    int
	chunkOverlap int
	batchSize    int
	retry        RetryPolicy
	loader       loader
	progress     io.Writer
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent embedding workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks go into one embedding request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOption, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: chunk size %d with overlap %d", ErrInvalidOption, size, overlap)
		}
		p.chunkSize = size
		p.chunkOverlap = overlap
		return nil
	}
}

// WithRetryPolicy sets the retry policy for embedding requests.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithHTTPClient sets the client used to fetch remote sources.
// Default is a client with a 30 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) error {
		if client != nil {
			p.loader.client = client
		}
		return nil
	}
}

// WithSelector sets the CSS selector whose text is taken from HTML sources.
// Default is DefaultSelector; an empty selector indexes all page text.
func WithSelector(selector string) Option {
	return func(p *Pipeline) error {
		if selector != "" {
			if _, err := cascadia.Compile(selector); err != nil {
				return fmt.Errorf("%w: selector %q: %w", ErrInvalidOption, selector, err)
			}
		}
		p.loader.selector = selector
		return nil
	}
}

// WithProgress writes a progress line to w while embedding. Default is no output.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing to passages.
// Call Release when done.
func NewPipeline(passages storage.PassageRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if passages == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		passages:     passages,
		embedder:     embedder,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		batchSize:    DefaultBatchSize,
		retry:        DefaultRetryPolicy,
		loader: loader{
			client:    &http.Client{Timeout: 30 * time.Second},
			userAgent: "ragchat-ingest",
			selector:  DefaultSelector,
		},
		logger: slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}

	p.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
	)
	return p, nil
}

// Ingest loads every source, splits it into passages and indexes them.
//
// Loading is sequential and fails on the first bad source. Embedding runs on
// the worker pool; the first failing batch cancels the rest. The report is
// returned even on error and tells how far the run got.
func (p *Pipeline) Ingest(ctx context.Context, sources ...string) (*Report, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	start := time.Now()
	report := &Report{Sources: len(sources)}
	defer func() { report.Duration = time.Since(start) }()

	var passages []core.Passage
	seen := make(map[core.ID]struct{})
	for _, source := range sources {
		docs, err := p.loader.load(ctx, source)
		if err != nil {
			p.logger.Error("error loading source", "source", source, "err", err)
			return report, err
		}
		report.Documents += len(docs)

		chunks, err := textsplitter.SplitDocuments(p.splitter, docs)
		if err != nil {
			return report, fmt.Errorf("splitting %s: %w", source, err)
		}

		added := 0
		for i, chunk := range chunks {
			content := strings.TrimSpace(chunk.PageContent)
			if content == "" {
				continue
			}
			id := core.IDFromContent(content)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			passages = append(passages, core.Passage{
				Id:       id,
				Content:  content,
				Metadata: chunkMetadata(chunk, i),
			})
			added++
		}
		p.logger.Info("loaded source", "source", source, "documents", len(docs), "chunks", added)
	}

	report.Chunks = len(passages)
	if len(passages) == 0 {
		return report, ErrNoContent
	}

	stored, err := p.store(ctx, passages)
	report.Stored = stored
	if err != nil {
		return report, err
	}
	p.logger.Info("ingestion complete", "sources", len(sources), "passages", stored)
	return report, nil
}

// store embeds and writes passages in batches on the pool.
func (p *Pipeline) store(ctx context.Context, passages []core.Passage) (int, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tracker := NewProgressTracker(p.progress, "Embedding", len(passages), p.batchSize)
	tracker.Start()
	defer tracker.Finish()

	var (
		wg     sync.WaitGroup
		stored atomic.Int64
	)
	for batch := range slices.Chunk(passages, p.batchSize) {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.embedBatch(ctx, batch); err != nil {
				p.logger.Error("error embedding batch", "passages", len(batch), "err", err)
				cancel(err)
				return
			}
			stored.Add(int64(len(batch)))
			tracker.Increment(len(batch))
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submitting batch: %w", err))
			break
		}
	}
	wg.Wait()

	return int(stored.Load()), context.Cause(ctx)
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []core.Passage) error {
	texts := make([]string, len(batch))
	for i, passage := range batch {
		texts[i] = passage.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, p.retry, p.logger, func(ctx context.Context) error {
		var err error
		embeddings, err = p.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(batch), len(embeddings))
	}

	indexed := make([]*core.IndexedPassage, len(batch))
	for i := range batch {
		indexed[i] = &core.IndexedPassage{
			Passage: batch[i],
			Vector:  ai.Normalize(embeddings[i]),
		}
	}
	if err := p.passages.AddPassages(ctx, indexed...); err != nil {
		return fmt.Errorf("storing passages: %w", err)
	}
	return nil
}

// Release stops the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func chunkMetadata(chunk schema.Document, position int) map[string]string {
	meta := make(map[string]string, len(chunk.Metadata)+1)
	for key, value := range chunk.Metadata {
		meta[key] = fmt.Sprint(value)
	}
	meta[MetadataChunk] = strconv.Itoa(position)
	return meta
}
