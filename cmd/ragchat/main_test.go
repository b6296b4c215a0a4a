package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragchat"
	"github.com/poiesic/ragchat/ai/mock"
)

type scriptedQuerier struct {
	questions []string
	threads   []string
	err       error
}

func (q *scriptedQuerier) Query(_ context.Context, threadID, question string) (string, error) {
	q.questions = append(q.questions, question)
	q.threads = append(q.threads, threadID)
	if q.err != nil {
		return "", q.err
	}
	return "answer to " + question, nil
}

func TestRepl(t *testing.T) {
	ctx := context.Background()

	t.Run("answers until bye", func(t *testing.T) {
		q := &scriptedQuerier{}
		var out bytes.Buffer
		in := strings.NewReader("What is 2+2?\n\n  \n/bye\nnever asked\n")

		require.NoError(t, repl(ctx, q, "thread-1", in, &out))
		assert.Equal(t, []string{"What is 2+2?"}, q.questions)
		assert.Equal(t, []string{"thread-1"}, q.threads)
		assert.Contains(t, out.String(), "AI: answer to What is 2+2?\n")
		assert.True(t, strings.HasPrefix(out.String(), userPrompt))
	})

	t.Run("stops at end of input", func(t *testing.T) {
		q := &scriptedQuerier{}
		var out bytes.Buffer
		require.NoError(t, repl(ctx, q, "t", strings.NewReader("one\ntwo"), &out))
		assert.Equal(t, []string{"one", "two"}, q.questions)
	})

	t.Run("reports errors and continues", func(t *testing.T) {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		q := &scriptedQuerier{err: errors.New("model offline")}
		var out bytes.Buffer
		require.NoError(t, repl(ctx, q, "t", strings.NewReader("one\ntwo\n/bye\n"), &out))
		assert.Len(t, q.questions, 2)
		assert.Equal(t, 2, strings.Count(out.String(), "AI: (error: model offline)"))
	})

	t.Run("returns on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		q := &scriptedQuerier{err: context.Canceled}
		err := repl(cctx, q, "t", strings.NewReader("one\ntwo\n"), io.Discard)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, q.questions, 1)
	})
}

func TestInvalidLogLevel(t *testing.T) {
	app := newApp(strings.NewReader(""), io.Discard, io.Discard)
	err := app.Run([]string{"ragchat", "--log-level", "verbose", "thread", "--thread", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestThreadCommandFlags(t *testing.T) {
	app := newApp(strings.NewReader(""), io.Discard, io.Discard)

	t.Run("thread is required", func(t *testing.T) {
		err := app.Run([]string{"ragchat", "thread", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thread")
	})

	t.Run("db has default value", func(t *testing.T) {
		cmd := findCommand(t, app, "thread")
		var dbFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "db" {
				dbFlag = f
				break
			}
		}
		require.NotNil(t, dbFlag)
		assert.Equal(t, ragchat.DefaultDataPath, dbFlag.Value)
	})
}

func TestIngestRequiresSources(t *testing.T) {
	app := newApp(strings.NewReader(""), io.Discard, io.Discard)
	err := app.Run([]string{"ragchat", "ingest", "--db", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source")
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
chat {
  model = "from-file"
}

retrieval {
  top_k   = 7
  subject = "file subject"
}

ingest {
  sources = ["a.txt", "b.txt"]
}
`), 0o644))

	var got *ragchat.Config
	app := newApp(strings.NewReader(""), io.Discard, io.Discard)
	chat := findCommand(t, app, "chat")
	chat.Action = func(c *cli.Context) error {
		cfg, err := buildConfig(c)
		got = cfg
		return err
	}

	err := app.Run([]string{"ragchat", "--config", path, "chat",
		"--top-k", "3", "--source", "c.txt", "--node-timeout", "5s", "--checkpoints", "badger",
		"--embedding-api-key", "sk-embed"})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "from-file", got.AI.ChatModel, "file value kept")
	assert.Equal(t, "file subject", got.Subject)
	assert.Equal(t, 3, got.TopK, "flag overrides file")
	assert.Equal(t, []string{"c.txt"}, got.Sources)
	assert.Equal(t, 5*time.Second, got.NodeTimeout)
	assert.Equal(t, "sk-embed", got.AI.EmbeddingAPIKey)
	assert.Equal(t, ragchat.DefaultConfig().AI.EmbeddingModel, got.AI.EmbeddingModel, "unset flag keeps default")
}

func TestBuildConfig_InvalidFlags(t *testing.T) {
	app := newApp(strings.NewReader(""), io.Discard, io.Discard)
	chat := findCommand(t, app, "chat")
	chat.Action = func(c *cli.Context) error {
		_, err := buildConfig(c)
		return err
	}

	err := app.Run([]string{"ragchat", "chat", "--index", "pgvector"})
	assert.Error(t, err, "pgvector needs a database url")
}

func TestThreadCommand(t *testing.T) {
	dir := t.TempDir()

	cfg := ragchat.DefaultConfig()
	cfg.DataPath = dir
	cfg.SkipIngest = true
	chat := mock.NewMockChatModel().WithReplies("direct", "Four.")
	provider := mock.NewMockProviderWithServices(chat, mock.NewMockEmbedder())
	svc, err := ragchat.New(cfg, ragchat.WithProvider(provider),
		ragchat.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	_, err = svc.Query(context.Background(), "thread-1", "What is 2+2?")
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	t.Run("prints latest checkpoint and history", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp(strings.NewReader(""), &out, io.Discard)
		err := app.Run([]string{"ragchat", "thread", "--db", dir, "--thread", "thread-1", "--history", "-1"})
		require.NoError(t, err)

		text := out.String()
		assert.Contains(t, text, "Node:     generate")
		assert.Contains(t, text, "Question: What is 2+2?")
		assert.Contains(t, text, "Retrieve: false")
		assert.Contains(t, text, "Answer:   Four.")
		assert.Contains(t, text, "History:")
		assert.Contains(t, text, "route")
	})

	t.Run("unknown thread", func(t *testing.T) {
		app := newApp(strings.NewReader(""), io.Discard, io.Discard)
		err := app.Run([]string{"ragchat", "thread", "--db", dir, "--thread", "missing"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no checkpoints")
	})
}
