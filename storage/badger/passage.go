package badger

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

// PassageRepository implements storage.PassageRepository for BadgerDB.
// Similarity search is a brute-force scan computing the dot product of
// normalized vectors.
type PassageRepository struct {
	backend *Backend
}

var _ storage.PassageRepository = (*PassageRepository)(nil)

// NewPassageRepository creates a new PassageRepository.
func NewPassageRepository(backend *Backend) *PassageRepository {
	return &PassageRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned and closed by the caller.
func (r *PassageRepository) Close() error {
	return nil
}

// AddPassages stores passages keyed by ID, replacing any existing record with the same ID.
func (r *PassageRepository) AddPassages(ctx context.Context, passages ...*core.IndexedPassage) error {
	for _, p := range passages {
		if err := core.ValidatePassage(&p.Passage); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range passages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.Set(makePassageKey(p.Id), storage.MarshalIndexedPassage(p)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar finds passages similar to the given vector.
func (r *PassageRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	results := []*core.ScoredPassage{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(passagePrefix), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			passage, err := storage.UnmarshalIndexedPassage(val)
			if err != nil {
				return err
			}

			// Skip passages without embeddings
			if len(passage.Vector) == 0 {
				return nil
			}

			similarity := dotProduct(vector, passage.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.ScoredPassage{
					Passage: passage.Passage,
					Score:   similarity,
				})
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	// Highest score first; ties broken by ID so results are stable.
	slices.SortFunc(results, func(a, b *core.ScoredPassage) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Count returns the number of stored passages.
func (r *PassageRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(passagePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
