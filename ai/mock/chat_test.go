package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/ragchat/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockChatModel(t *testing.T) {
	ctx := context.Background()

	t.Run("default reply", func(t *testing.T) {
		m := NewMockChatModel()
		resp, err := m.Invoke(ctx, []ai.Message{ai.HumanMessage("hi")})
		require.NoError(t, err)
		assert.Equal(t, DefaultReply, resp.Content)
		assert.Equal(t, 1, m.CallCount())
	})

	t.Run("scripted replies drain then repeat", func(t *testing.T) {
		m := NewMockChatModel().WithReplies("retrieve", "answer")

		for _, want := range []string{"retrieve", "answer", "answer"} {
			resp, err := m.Invoke(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, want, resp.Content)
		}
	})

	t.Run("records calls", func(t *testing.T) {
		m := NewMockChatModel()
		msgs := []ai.Message{ai.SystemMessage("s"), ai.HumanMessage("q")}
		_, _ = m.Invoke(ctx, msgs)
		msgs[0].Content = "mutated"

		assert.Equal(t, "s", m.LastCall()[0].Content)
		assert.Len(t, m.Calls(), 1)
	})

	t.Run("invoke func overrides replies", func(t *testing.T) {
		boom := errors.New("boom")
		m := NewMockChatModel().WithReplies("x").WithInvokeFunc(func(ctx context.Context, messages []ai.Message) (*ai.Response, error) {
			return nil, boom
		})

		_, err := m.Invoke(ctx, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, m.CallCount())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewMockChatModel().Invoke(cctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("reset", func(t *testing.T) {
		m := NewMockChatModel().WithReplies("x")
		_, _ = m.Invoke(ctx, nil)
		m.Reset()

		assert.Zero(t, m.CallCount())
		assert.Nil(t, m.LastCall())
		resp, _ := m.Invoke(ctx, nil)
		assert.Equal(t, DefaultReply, resp.Content)
	})

	t.Run("concurrent use", func(t *testing.T) {
		m := NewMockChatModel()
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.Invoke(ctx, []ai.Message{ai.HumanMessage("q")})
			}()
		}
		wg.Wait()
		assert.Equal(t, 20, m.CallCount())
	})
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		m := NewMockEmbedder()
		a, err := m.EmbedText(ctx, "hello")
		require.NoError(t, err)
		b, _ := m.EmbedText(ctx, "hello")
		c, _ := m.EmbedText(ctx, "other")

		assert.Len(t, a, DefaultDimension)
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
		assert.Equal(t, 3, m.CallCount())
	})

	t.Run("batch falls back to single func", func(t *testing.T) {
		m := NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		})

		vectors, err := m.EmbedTexts(ctx, []string{"a", "bbb"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {3}}, vectors)
	})
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithServices(NewMockChatModel(), NewMockEmbedder())
	assert.Same(t, p.GetMockChatModel(), p.ChatModel())
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
