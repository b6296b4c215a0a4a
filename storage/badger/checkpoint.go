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


package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend *Backend
	locks   storage.KeyedMutex
	now     func() time.Time
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
		now:     time.Now,
	}
}

// Close is a no-op; the backend is owned and closed by the caller.
func (r *CheckpointRepository) Close() error {
	return nil
}

// SaveCheckpoint persists state as the latest checkpoint of a thread and
// appends it to the thread history in one transaction.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, threadID, node string, state *core.ConversationState) (uint64, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return 0, err
	}
	if err := core.ValidateState(state); err != nil {
		return 0, err
	}

	unlock := r.locks.Lock(threadID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var sequence uint64
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		latestKey := makeThreadCheckpointKey(threadID)
		prev, err := readCheckpoint(tx, latestKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		sequence = 1
		if prev != nil {
			sequence = prev.Sequence + 1
		}

		checkpoint := &core.ThreadCheckpoint{
			ThreadID:  threadID,
			Sequence:  sequence,
			Node:      node,
			State:     *state.Clone(),
			UpdatedAt: r.now().UTC().Truncate(time.Microsecond),
		}
		value := storage.MarshalThreadCheckpoint(checkpoint)
		if err := tx.Set(latestKey, value); err != nil {
			return err
		}
		if err := tx.Set(makeThreadHistoryKey(threadID, sequence), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, fmt.Errorf("saving checkpoint for thread %q: %w", threadID, err)
	}

	return sequence, nil
}

// LoadCheckpoint retrieves the latest checkpoint of a thread.
// Returns storage.ErrNotFound if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, threadID string) (*core.ThreadCheckpoint, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return nil, err
	}

	var checkpoint *core.ThreadCheckpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		checkpoint, err = readCheckpoint(tx, makeThreadCheckpointKey(threadID))
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	if err := core.ValidateState(&checkpoint.State); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// History returns up to limit of the most recent checkpoints of a thread, oldest first.
func (r *CheckpointRepository) History(ctx context.Context, threadID string, limit int) ([]*core.ThreadCheckpoint, error) {
	if err := core.ValidateThreadID(threadID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", storage.ErrInvalidQuery, limit)
	}

	history := []*core.ThreadCheckpoint{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeThreadHistoryPrefix(threadID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Newest first, then flipped below.
		seek := makeThreadHistoryKey(threadID, ^uint64(0))
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var checkpoint *core.ThreadCheckpoint
			err := iter.Item().Value(func(val []byte) error {
				var err error
				checkpoint, err = storage.UnmarshalThreadCheckpoint(val)
				return err
			})
			if err != nil {
				return err
			}
			history = append(history, checkpoint)
			if limit > 0 && len(history) == limit {
				break
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(history)
	return history, nil
}

// readCheckpoint reads a checkpoint record, returning storage.ErrNotFound when the key is absent.
func readCheckpoint(tx *badger.Txn, key []byte) (*core.ThreadCheckpoint, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var checkpoint *core.ThreadCheckpoint
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		checkpoint, unmarshalErr = storage.UnmarshalThreadCheckpoint(val)
		return unmarshalErr
	})
	return checkpoint, err
}
