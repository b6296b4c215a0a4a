// Package redis stores conversation checkpoints in Redis so several
// processes can serve the same threads.
//
// The latest checkpoint of a thread is a string key; its history is a list.
// Both live under one hash tag so they map to the same cluster slot and can
// be updated in a single MULTI/EXEC guarded by WATCH.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

const (
	// DefaultKeyPrefix namespaces every key written by the repository.
	DefaultKeyPrefix = "ragchat"

	defaultMaxRetries = 10
)

// Options configures a Redis-backed checkpoint repository.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// CheckpointRepository implements storage.CheckpointRepository on Redis.
type CheckpointRepository struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
	locks      storage.KeyedMutex
	now        func() time.Time
	logger     *slog.Logger
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*CheckpointRepository, error) {
	repo := New(opts)
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// New creates a repository for opts without contacting the server.
func New(opts Options) *CheckpointRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewCheckpointRepository(client, opts.KeyPrefix)
}

// Ping checks that the server is reachable.
func (r *CheckpointRepository) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

// NewCheckpointRepository wraps an existing client. The repository takes
// ownership of the client and closes it on Close.
func NewCheckpointRepository(client redis.UniversalClient, keyPrefix string) *CheckpointRepository {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &CheckpointRepository{
		client:     client,
		prefix:     keyPrefix,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
		logger:     slog.Default().With("component", "redis-checkpoints"),
	}
}

// Close closes the underlying client.
func (r *CheckpointRepository) Close() error {
	return r.client.Close()
}

func (r *CheckpointRepository) latestKey(threadID string) string {
	return fmt.Sprintf("%s:thread:{%s}:latest", r.prefix, threadID)
}

func (r *CheckpointRepository) historyKey(threadID string) string {
	return fmt.Sprintf("%s:thread:{%s}:history", r.prefix, threadID)
}

// SaveCheckpoint writes the latest checkpoint and appends it to the history
// in one transaction. A concurrent writer on the same thread causes a retry.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, threadID, node string, state *core.ConversationState) (uint64, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return 0, err
	}
	if err := core.ValidateState(state); err != nil {
		return 0, err
	}

	unlock := r.locks.Lock(threadID)
	defer unlock()

	latest := r.latestKey(threadID)
	history := r.historyKey(threadID)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		var sequence uint64
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			sequence = 1
			data, err := tx.Get(ctx, latest).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				prev, err := storage.UnmarshalThreadCheckpoint(data)
				if err != nil {
					return err
				}
				sequence = prev.Sequence + 1
			}

			value := storage.MarshalThreadCheckpoint(&core.ThreadCheckpoint{
				ThreadID:  threadID,
				Sequence:  sequence,
				Node:      node,
				State:     *state.Clone(),
				UpdatedAt: r.now().UTC().Truncate(time.Microsecond),
			})

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, latest, value, 0)
				pipe.RPush(ctx, history, value)
				return nil
			})
			return err
		}, latest)

		if err == nil {
			return sequence, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return 0, fmt.Errorf("saving checkpoint for thread %q: %w", threadID, err)
		}
		r.logger.Debug("checkpoint write raced, retrying", "thread", threadID, "attempt", attempt+1)
	}

	return 0, fmt.Errorf("%w: thread %q changed during %d attempts", storage.ErrTransactionFailed, threadID, r.maxRetries)
}

// LoadCheckpoint returns the latest checkpoint of a thread or storage.ErrNotFound.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, threadID string) (*core.ThreadCheckpoint, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.latestKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	checkpoint, err := storage.UnmarshalThreadCheckpoint(data)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateState(&checkpoint.State); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// History returns up to limit of the most recent checkpoints, oldest first.
func (r *CheckpointRepository) History(ctx context.Context, threadID string, limit int) ([]*core.ThreadCheckpoint, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", storage.ErrInvalidQuery, limit)
	}

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := r.client.LRange(ctx, r.historyKey(threadID), start, -1).Result()
	if err != nil {
		return nil, err
	}

	history := make([]*core.ThreadCheckpoint, 0, len(values))
	for _, v := range values {
		checkpoint, err := storage.UnmarshalThreadCheckpoint([]byte(v))
		if err != nil {
			return nil, err
		}
		history = append(history, checkpoint)
	}
	return history, nil
}
