package ragchat

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/ragchat/ai"
	"github.com/poiesic/ragchat/graph"
	"github.com/poiesic/ragchat/ingestion"
	"github.com/poiesic/ragchat/rag"
	"github.com/poiesic/ragchat/storage/pgvector"
	redisstore "github.com/poiesic/ragchat/storage/redis"
)

// Passage index backends.
const (
	IndexBadger   = "badger"
	IndexPgvector = "pgvector"
)

// Checkpoint store backends.
const (
	CheckpointsBadger = "badger"
	CheckpointsRedis  = "redis"
)

// DefaultDataPath is where the badger backend lives unless configured otherwise.
const DefaultDataPath = "./ragchat.db"

// Config aggregates everything a Service needs.
type Config struct {
	AI *ai.Config

	// DataPath is the badger directory. Ignored when InMemory is set or when
	// neither the index nor the checkpoints use badger.
	DataPath string
	InMemory bool

	Index        string // IndexBadger or IndexPgvector
	DatabaseURL  string // PostgreSQL connection string for IndexPgvector
	PassageTable string

	Checkpoints string // CheckpointsBadger or CheckpointsRedis
	Redis       redisstore.Options

	Sources      []string // Documents ingested by Initialize
	SkipIngest   bool
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	HTMLSelector string // CSS selector for HTML text; empty indexes the whole page

	Subject       string // What the indexed documents are about, for the router
	TopK          int
	MinSimilarity float32
	NodeTimeout   time.Duration
}

// DefaultConfig returns a local, badger-backed configuration.
func DefaultConfig() *Config {
	return &Config{
		AI:           ai.DefaultConfig(),
		DataPath:     DefaultDataPath,
		Index:        IndexBadger,
		PassageTable: pgvector.DefaultTable,
		Checkpoints:  CheckpointsBadger,
		Redis: redisstore.Options{
			Addr:      "localhost:6379",
			KeyPrefix: redisstore.DefaultKeyPrefix,
		},
		ChunkSize:    ingestion.DefaultChunkSize,
		ChunkOverlap: ingestion.DefaultChunkOverlap,
		BatchSize:    ingestion.DefaultBatchSize,
		HTMLSelector: ingestion.DefaultSelector,
		Subject:      rag.DefaultSubject,
		TopK:         rag.DefaultTopK,
		NodeTimeout:  graph.DefaultNodeTimeout,
	}
}

// Validate checks the configuration. It normalizes the AI configuration as a side effect.
func (c *Config) Validate() error {
	if c.AI == nil {
		return errors.New("config: AI configuration is required")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	if !slices.Contains([]string{IndexBadger, IndexPgvector}, c.Index) {
		return fmt.Errorf("config: index must be one of %s, %s; got %q", IndexBadger, IndexPgvector, c.Index)
	}
	if c.Index == IndexPgvector && c.DatabaseURL == "" {
		return errors.New("config: DatabaseURL is required for the pgvector index")
	}
	if !slices.Contains([]string{CheckpointsBadger, CheckpointsRedis}, c.Checkpoints) {
		return fmt.Errorf("config: checkpoints must be one of %s, %s; got %q", CheckpointsBadger, CheckpointsRedis, c.Checkpoints)
	}
	if c.Checkpoints == CheckpointsRedis && c.Redis.Addr == "" {
		return errors.New("config: Redis.Addr is required for redis checkpoints")
	}
	if c.usesBadger() && !c.InMemory && c.DataPath == "" {
		return errors.New("config: DataPath is required for badger storage")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("config: TopK must be positive, got %d", c.TopK)
	}
	if c.NodeTimeout <= 0 {
		return fmt.Errorf("config: NodeTimeout must be positive, got %s", c.NodeTimeout)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: invalid chunking %d/%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: BatchSize must be positive, got %d", c.BatchSize)
	}
	return nil
}

func (c *Config) usesBadger() bool {
	return c.Index == IndexBadger || c.Checkpoints == CheckpointsBadger
}
