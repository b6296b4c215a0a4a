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


package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragchat"
	"github.com/poiesic/ragchat/config"
	"github.com/poiesic/ragchat/metrics"
	"github.com/poiesic/ragchat/storage"
)

const (
	byeCommand   = "/bye"
	userPrompt   = "You: "
	answerPrefix = "AI: "

	configMetadataKey = "config"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "ragchat",
		Usage:     "Answer questions directly or grounded in your documents",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an HCL configuration file; flags override its values",
				EnvVars: []string{"RAGCHAT_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Ingest the configured sources and start an interactive session",
				Action: chatCommand,
				Flags: concat(aiFlags(), storageFlags(), ingestFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "thread",
						Aliases: []string{"t"},
						Usage:   "Conversation thread identifier (default: a new random one)",
					},
					&cli.StringFlag{
						Name:  "subject",
						Usage: "What the indexed documents are about, used to route questions",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of passages retrieved per question",
						Value: ragchat.DefaultConfig().TopK,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Drop retrieved passages scoring below this value",
					},
					&cli.DurationFlag{
						Name:  "node-timeout",
						Usage: "Maximum duration of a single graph step",
						Value: ragchat.DefaultConfig().NodeTimeout,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address (e.g. :9464)",
					},
				}),
			},
			{
				Name:   "ingest",
				Usage:  "Ingest sources into the passage index and exit",
				Action: ingestCommand,
				Flags:  concat(aiFlags(), storageFlags(), ingestFlags()),
			},
			{
				Name:   "thread",
				Usage:  "Show the latest checkpoint of a conversation thread",
				Action: threadCommand,
				Flags: concat(storageFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "thread",
						Aliases:  []string{"t"},
						Usage:    "Conversation thread identifier",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "history",
						Usage: "Also list the last N checkpoints (0 lists none, -1 lists all)",
					},
				}),
			},
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func aiFlags() []cli.Flag {
	defaults := ragchat.DefaultConfig().AI
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Chat model provider (openai, gemini)",
			Value: defaults.ChatProvider,
		},
		&cli.StringFlag{
			Name:  "chat-host",
			Usage: "OpenAI-compatible chat service host URL",
			Value: defaults.ChatHost,
		},
		&cli.StringFlag{
			Name:  "chat-model",
			Usage: "Chat model name",
			Value: defaults.ChatModel,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "OpenAI-compatible embedding service host URL",
			Value: defaults.EmbeddingHost,
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: defaults.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for hosted model services",
			EnvVars: []string{"RAGCHAT_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "embedding-api-key",
			Usage:   "API key for the embedding host (the chat key is only reused for the same OpenAI-compatible host)",
			EnvVars: []string{"RAGCHAT_EMBEDDING_API_KEY"},
		},
		&cli.Float64Flag{
			Name:  "temperature",
			Usage: "Sampling temperature",
			Value: defaults.Temperature,
		},
	}
}

func storageFlags() []cli.Flag {
	defaults := ragchat.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   defaults.DataPath,
		},
		&cli.StringFlag{
			Name:  "index",
			Usage: "Passage index backend (badger, pgvector)",
			Value: defaults.Index,
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "PostgreSQL connection string for the pgvector index",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:  "checkpoints",
			Usage: "Checkpoint store backend (badger, redis)",
			Value: defaults.Checkpoints,
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address for the redis checkpoint store",
			Value:   defaults.Redis.Addr,
			EnvVars: []string{"REDIS_ADDR"},
		},
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "URL or file to ingest (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "skip-ingest",
			Usage: "Use the existing index without ingesting sources",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of chunks per embedding request",
			Value: ragchat.DefaultConfig().BatchSize,
		},
		&cli.StringFlag{
			Name:  "selector",
			Usage: "CSS selector whose text is taken from HTML sources (empty for the whole page)",
			Value: ragchat.DefaultConfig().HTMLSelector,
		},
	}
}

// loadConfigFile reads --config once and caches it on the app.
func loadConfigFile(c *cli.Context) (*config.File, error) {
	if f, ok := c.App.Metadata[configMetadataKey].(*config.File); ok {
		return f, nil
	}
	path := c.String("config")
	if path == "" {
		return &config.File{}, nil
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configMetadataKey] = f
	return f, nil
}

// buildConfig layers defaults, the config file and explicitly set flags.
func buildConfig(c *cli.Context) (*ragchat.Config, error) {
	cfg := ragchat.DefaultConfig()
	file, err := loadConfigFile(c)
	if err != nil {
		return nil, err
	}
	if err := file.ApplyTo(cfg); err != nil {
		return nil, err
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	setString("provider", &cfg.AI.ChatProvider)
	setString("chat-host", &cfg.AI.ChatHost)
	setString("chat-model", &cfg.AI.ChatModel)
	setString("embedding-host", &cfg.AI.EmbeddingHost)
	setString("embedding-model", &cfg.AI.EmbeddingModel)
	setString("api-key", &cfg.AI.APIKey)
	setString("embedding-api-key", &cfg.AI.EmbeddingAPIKey)
	if c.IsSet("temperature") {
		cfg.AI.Temperature = c.Float64("temperature")
	}

	setString("db", &cfg.DataPath)
	setString("index", &cfg.Index)
	setString("database-url", &cfg.DatabaseURL)
	setString("checkpoints", &cfg.Checkpoints)
	setString("redis-addr", &cfg.Redis.Addr)

	if c.IsSet("source") {
		cfg.Sources = c.StringSlice("source")
	}
	if c.IsSet("skip-ingest") {
		cfg.SkipIngest = c.Bool("skip-ingest")
	}
	setInt("batch-size", &cfg.BatchSize)
	setString("selector", &cfg.HTMLSelector)

	setString("subject", &cfg.Subject)
	setInt("top-k", &cfg.TopK)
	if c.IsSet("min-similarity") {
		cfg.MinSimilarity = float32(c.Float64("min-similarity"))
	}
	if c.IsSet("node-timeout") {
		cfg.NodeTimeout = c.Duration("node-timeout")
	}

	return cfg, cfg.Validate()
}

func chatCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	file, err := loadConfigFile(c)
	if err != nil {
		return err
	}

	opts := []ragchat.Option{ragchat.WithProgress(c.App.ErrWriter)}

	metricsAddr := file.MetricsAddr()
	if c.IsSet("metrics-addr") {
		metricsAddr = c.String("metrics-addr")
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder, err := metrics.NewPrometheus(reg)
		if err != nil {
			return err
		}
		opts = append(opts, ragchat.WithRecorder(recorder))
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, slog.Default()); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	svc, err := ragchat.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	threadID := c.String("thread")
	if threadID == "" {
		threadID = uuid.NewString()
	}
	fmt.Fprintf(c.App.ErrWriter, "Thread: %s (type %s to exit)\n", threadID, byeCommand)

	return repl(ctx, svc, threadID, c.App.Reader, c.App.Writer)
}

type querier interface {
	Query(ctx context.Context, threadID, question string) (string, error)
}

// repl reads one question per line until /bye, end of input or cancellation.
// A failed question is reported and the loop continues.
func repl(ctx context.Context, q querier, threadID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == byeCommand {
			return nil
		}

		answer, err := q.Query(ctx, threadID, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("error answering question", "err", err)
			fmt.Fprintf(out, "%s(error: %v)\n", answerPrefix, err)
			continue
		}
		fmt.Fprintf(out, "%s%s\n", answerPrefix, answer)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return errors.New("at least one --source is required")
	}
	sources := cfg.Sources
	cfg.SkipIngest = true

	svc, err := ragchat.New(cfg, ragchat.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	report, err := svc.Ingest(ctx, sources...)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Ingested %d sources: %d documents, %d passages stored in %s\n",
		report.Sources, report.Documents, report.Stored, report.Duration.Round(time.Millisecond))
	return nil
}

func threadCommand(c *cli.Context) error {
	ctx := c.Context
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	svc, err := ragchat.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	threadID := c.String("thread")
	latest, err := svc.Checkpoint(ctx, threadID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("thread %q has no checkpoints", threadID)
	}
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Thread:   %s\n", latest.ThreadID)
	fmt.Fprintf(out, "Sequence: %d\n", latest.Sequence)
	fmt.Fprintf(out, "Node:     %s\n", latest.Node)
	fmt.Fprintf(out, "Updated:  %s\n", latest.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Question: %s\n", latest.State.Question)
	if latest.State.NeedsRetrieval != nil {
		fmt.Fprintf(out, "Retrieve: %t\n", *latest.State.NeedsRetrieval)
	}
	if latest.State.Context != nil {
		fmt.Fprintf(out, "Passages: %d\n", len(latest.State.Context))
	}
	if latest.State.Answer != nil {
		fmt.Fprintf(out, "Answer:   %s\n", *latest.State.Answer)
	}

	limit := c.Int("history")
	if limit == 0 {
		return nil
	}
	history, err := svc.History(ctx, threadID, max(limit, 0))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "History:")
	for _, cp := range history {
		fmt.Fprintf(out, "  %d %-8s %s\n", cp.Sequence, cp.Node, cp.State.Question)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := c.String("log-level")
	if !c.IsSet("log-level") {
		file, err := loadConfigFile(c)
		if err != nil {
			return err
		}
		if level := file.Level(); level != "" {
			levelStr = level
		}
	}
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
