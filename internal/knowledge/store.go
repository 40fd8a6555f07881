// Package knowledge stores weather, activity, and clothing reference passages
// in PostgreSQL + pgvector and retrieves them by vector similarity with an
// in-process rerank pass.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the embedding width the passages table is declared with.
const VectorDimension int32 = 768

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 15 * time.Second

var (
	// ErrEmptyQuery indicates a search with no query text.
	ErrEmptyQuery = errors.New("knowledge: empty query")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("knowledge: empty embedding response")
)

// Passage is one retrievable unit of reference text with its citation.
type Passage struct {
	ID         string
	Title      string
	URL        string
	Content    string
	Similarity float64
}

// Store manages passages backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger.With("component", "knowledge")}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, ErrEmptyEmbedding
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Upsert inserts or replaces a passage keyed by URL + title.
func (s *Store) Upsert(ctx context.Context, title, url, content string) error {
	if content == "" {
		return fmt.Errorf("content is required")
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO passages (title, url, content, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url, md5(content)) DO UPDATE
		 SET title = EXCLUDED.title, embedding = EXCLUDED.embedding, updated_at = now()`,
		title, url, content, vec,
	)
	if err != nil {
		return fmt.Errorf("upserting passage: %w", err)
	}
	return nil
}

// Search returns the topK nearest passages by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 1 {
		topK = 1
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, url, content, 1 - (embedding <=> $1) AS similarity
		 FROM passages
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	var out []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.Title, &p.URL, &p.Content, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}

	s.logger.Debug("vector search", "query_len", len(query), "hits", len(out))
	return out, nil
}

// Count returns the number of stored passages. Used by readiness checks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&n)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
