// Package config decodes the optional HCL configuration file.
//
// Every block and attribute is optional; unset values keep the defaults of
// ragchat.DefaultConfig. Attribute expressions may call env("NAME") to read
// an environment variable, which keeps secrets out of the file:
//
//	chat {
//	  provider = "gemini"
//	  model    = "gemini-2.0-flash"
//	  api_key  = env("GOOGLE_API_KEY")
//	}
//
//	index {
//	  backend      = "pgvector"
//	  database_url = env("DATABASE_URL")
//	}
//
//	ingest {
//	  sources = ["https://www.prakashbanjade.com/"]
//	}
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/poiesic/ragchat"
	"github.com/poiesic/ragchat/ai"
)

// File is the decoded configuration file.
type File struct {
	LogLevel    *string           `hcl:"log_level,optional"`
	Chat        *ChatBlock        `hcl:"chat,block"`
	Embedding   *EmbeddingBlock   `hcl:"embedding,block"`
	Storage     *StorageBlock     `hcl:"storage,block"`
	Index       *IndexBlock       `hcl:"index,block"`
	Checkpoints *CheckpointsBlock `hcl:"checkpoints,block"`
	Ingest      *IngestBlock      `hcl:"ingest,block"`
	Retrieval   *RetrievalBlock   `hcl:"retrieval,block"`
	Graph       *GraphBlock       `hcl:"graph,block"`
	Metrics     *MetricsBlock     `hcl:"metrics,block"`
}

// ChatBlock configures the chat model.
type ChatBlock struct {
	Provider    *string  `hcl:"provider,optional"`
	Host        *string  `hcl:"host,optional"`
	Model       *string  `hcl:"model,optional"`
	APIKey      *string  `hcl:"api_key,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
}

// EmbeddingBlock configures the embedding model.
type EmbeddingBlock struct {
	Host   *string `hcl:"host,optional"`
	Model  *string `hcl:"model,optional"`
	APIKey *string `hcl:"api_key,optional"`
}

// StorageBlock configures the local badger directory.
type StorageBlock struct {
	Path     *string `hcl:"path,optional"`
	InMemory *bool   `hcl:"in_memory,optional"`
}

// IndexBlock configures the passage index.
type IndexBlock struct {
	Backend     *string `hcl:"backend,optional"`
	DatabaseURL *string `hcl:"database_url,optional"`
	Table       *string `hcl:"table,optional"`
}

// CheckpointsBlock configures the checkpoint store.
type CheckpointsBlock struct {
	Backend   *string `hcl:"backend,optional"`
	RedisAddr *string `hcl:"redis_addr,optional"`
	Password  *string `hcl:"redis_password,optional"`
	DB        *int    `hcl:"redis_db,optional"`
	KeyPrefix *string `hcl:"key_prefix,optional"`
}

// IngestBlock configures ingestion.
type IngestBlock struct {
	Sources      []string `hcl:"sources,optional"`
	Skip         *bool    `hcl:"skip,optional"`
	ChunkSize    *int     `hcl:"chunk_size,optional"`
	ChunkOverlap *int     `hcl:"chunk_overlap,optional"`
	BatchSize    *int     `hcl:"batch_size,optional"`
	Selector     *string  `hcl:"selector,optional"`
}

// RetrievalBlock configures routing and retrieval.
type RetrievalBlock struct {
	Subject       *string  `hcl:"subject,optional"`
	TopK          *int     `hcl:"top_k,optional"`
	MinSimilarity *float64 `hcl:"min_similarity,optional"`
}

// GraphBlock configures the graph engine.
type GraphBlock struct {
	NodeTimeout *string `hcl:"node_timeout,optional"`
}

// MetricsBlock configures the metrics endpoint.
type MetricsBlock struct {
	Addr *string `hcl:"addr,optional"`
}

// envFunc implements env("NAME"). Unset variables yield "".
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "name", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{"env": envFunc},
	}
}

// Load parses and decodes the file at path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(path, file)
}

// Parse decodes src as if it were read from filename.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(filename, file)
}

func decode(name string, file *hcl.File) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", name, diags)
	}
	return &f, nil
}

// MetricsAddr returns the configured metrics address, or "".
func (f *File) MetricsAddr() string {
	if f.Metrics == nil {
		return ""
	}
	return deref(f.Metrics.Addr)
}

// Level returns the configured log level, or "".
func (f *File) Level() string {
	return deref(f.LogLevel)
}

// ApplyTo copies every value set in the file onto cfg.
func (f *File) ApplyTo(cfg *ragchat.Config) error {
	if cfg.AI == nil {
		cfg.AI = ai.DefaultConfig()
	}
	if c := f.Chat; c != nil {
		set(&cfg.AI.ChatProvider, c.Provider)
		set(&cfg.AI.ChatHost, c.Host)
		set(&cfg.AI.ChatModel, c.Model)
		set(&cfg.AI.APIKey, c.APIKey)
		set(&cfg.AI.Temperature, c.Temperature)
	}
	if e := f.Embedding; e != nil {
		set(&cfg.AI.EmbeddingHost, e.Host)
		set(&cfg.AI.EmbeddingModel, e.Model)
		set(&cfg.AI.EmbeddingAPIKey, e.APIKey)
	}
	if s := f.Storage; s != nil {
		set(&cfg.DataPath, s.Path)
		set(&cfg.InMemory, s.InMemory)
	}
	if i := f.Index; i != nil {
		set(&cfg.Index, i.Backend)
		set(&cfg.DatabaseURL, i.DatabaseURL)
		set(&cfg.PassageTable, i.Table)
	}
	if c := f.Checkpoints; c != nil {
		set(&cfg.Checkpoints, c.Backend)
		set(&cfg.Redis.Addr, c.RedisAddr)
		set(&cfg.Redis.Password, c.Password)
		set(&cfg.Redis.DB, c.DB)
		set(&cfg.Redis.KeyPrefix, c.KeyPrefix)
	}
	if i := f.Ingest; i != nil {
		if i.Sources != nil {
			cfg.Sources = append([]string(nil), i.Sources...)
		}
		set(&cfg.SkipIngest, i.Skip)
		set(&cfg.ChunkSize, i.ChunkSize)
		set(&cfg.ChunkOverlap, i.ChunkOverlap)
		set(&cfg.BatchSize, i.BatchSize)
		set(&cfg.HTMLSelector, i.Selector)
	}
	if r := f.Retrieval; r != nil {
		set(&cfg.Subject, r.Subject)
		set(&cfg.TopK, r.TopK)
		if r.MinSimilarity != nil {
			cfg.MinSimilarity = float32(*r.MinSimilarity)
		}
	}
	if g := f.Graph; g != nil && g.NodeTimeout != nil {
		d, err := time.ParseDuration(*g.NodeTimeout)
		if err != nil {
			return fmt.Errorf("config: graph.node_timeout: %w", err)
		}
		cfg.NodeTimeout = d
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
