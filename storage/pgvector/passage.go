// Package pgvector stores the passage index in PostgreSQL using the
// pgvector extension. Similarity is cosine similarity, computed by the
// database as 1 - (embedding <=> query).
package pgvector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/ragchat/core"
	"github.com/poiesic/ragchat/storage"
)

// DefaultTable is the table used when Options.Table is empty.
const DefaultTable = "passages"

// Options configures the PostgreSQL passage repository.
type Options struct {
	DatabaseURL string
	Table       string
}

// PassageRepository implements storage.PassageRepository on PostgreSQL.
type PassageRepository struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

var _ storage.PassageRepository = (*PassageRepository)(nil)

// Open connects to PostgreSQL and creates the vector extension and table if needed.
func Open(ctx context.Context, opts Options) (*PassageRepository, error) {
	repo, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// New creates the repository without touching the database. Connections are
// made on first use; call EnsureSchema before writing.
func New(ctx context.Context, opts Options) (*PassageRepository, error) {
	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	return &PassageRepository{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: slog.Default().With("component", "pgvector"),
	}, nil
}

// EnsureSchema creates the vector extension and the passage table if missing.
func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector
		)`, r.table),
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("preparing schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (r *PassageRepository) Close() error {
	r.pool.Close()
	return nil
}

// AddPassages upserts passages in one transaction.
func (r *PassageRepository) AddPassages(ctx context.Context, passages ...*core.IndexedPassage) error {
	for _, p := range passages {
		if err := core.ValidatePassage(&p.Passage); err != nil {
			return err
		}
	}
	if len(passages) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, r.table)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range passages {
			metadata := p.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			var embedding any
			if len(p.Vector) > 0 {
				embedding = pgvector.NewVector(p.Vector)
			}
			batch.Queue(query, int64(p.Id), p.Content, metadata, embedding)
		}

		results := tx.SendBatch(ctx, batch)
		for range passages {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upserting passage: %w", err)
			}
		}
		return results.Close()
	})
}

// FindSimilar returns the passages closest to vector by cosine similarity.
func (r *PassageRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	query := fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`, r.table)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), float64(minSimilarity), limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	results := []*core.ScoredPassage{}
	for rows.Next() {
		var (
			id       int64
			content  string
			metadata map[string]string
			score    float64
		)
		if err := rows.Scan(&id, &content, &metadata, &score); err != nil {
			return nil, err
		}
		if len(metadata) == 0 {
			metadata = nil
		}
		results = append(results, &core.ScoredPassage{
			Passage: core.Passage{
				Id:       core.ID(uint64(id)),
				Content:  content,
				Metadata: metadata,
			},
			Score: float32(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("similarity search", "hits", len(results), "limit", limit)
	return results, nil
}

// Count returns the number of stored passages.
func (r *PassageRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", r.table)).Scan(&count)
	return count, err
}
