package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

const (
	// DefaultTopK is how many chunks a clinical lookup pulls from the index.
	DefaultTopK = 5
	// DefaultMinScore is the cosine-similarity floor below which a chunk is
	// treated as noise rather than evidence.
	DefaultMinScore = 0.35
)

const searchQuery = `
SELECT chunk_id, content, page, section, 1 - (embedding <=> $1) AS score
FROM corpus_chunks
ORDER BY embedding <=> $1, chunk_id
LIMIT $2`

// PGVectorRetriever searches the discharge-guideline corpus stored as
// pgvector embeddings. Results come back best-first with ties broken by
// chunk id so the same query always yields the same evidence order.
type PGVectorRetriever struct {
	pool     *pgxpool.Pool
	embedder Embedder
	minScore float64
	log      zerolog.Logger
}

var _ contractx.Retriever = (*PGVectorRetriever)(nil)

type RetrieverOption func(*PGVectorRetriever)

// WithMinScore overrides the relevance floor.
func WithMinScore(score float64) RetrieverOption {
	return func(r *PGVectorRetriever) {
		r.minScore = score
	}
}

func NewPGVectorRetriever(pool *pgxpool.Pool, embedder Embedder, log zerolog.Logger, opts ...RetrieverOption) (*PGVectorRetriever, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pgx pool is required", contractx.ErrValidation)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}
	r := &PGVectorRetriever{
		pool:     pool,
		embedder: embedder,
		minScore: DefaultMinScore,
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *PGVectorRetriever) Search(ctx context.Context, query string, k int) ([]contractx.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, searchQuery, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus search: %v", contractx.ErrEvidenceUnavailable, err)
	}
	defer rows.Close()

	var passages []contractx.Passage
	for rows.Next() {
		var p contractx.Passage
		if err := rows.Scan(&p.ChunkID, &p.Text, &p.Page, &p.Section, &p.Score); err != nil {
			return nil, fmt.Errorf("%w: scan corpus row: %v", contractx.ErrEvidenceUnavailable, err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: corpus search: %v", contractx.ErrEvidenceUnavailable, err)
	}

	kept := FilterByScore(passages, r.minScore)
	r.log.Debug().
		Int("fetched", len(passages)).
		Int("kept", len(kept)).
		Float64("min_score", r.minScore).
		Msg("corpus search complete")
	return kept, nil
}

// FilterByScore drops passages below the relevance floor, preserving order.
func FilterByScore(passages []contractx.Passage, minScore float64) []contractx.Passage {
	kept := make([]contractx.Passage, 0, len(passages))
	for _, p := range passages {
		if p.Score >= minScore {
			kept = append(kept, p)
		}
	}
	return kept
}
