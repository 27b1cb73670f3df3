package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/domain"
)

// RunbookRepo persists RunbookChunk entities and backs the Hybrid
// Retriever's vector and keyword search paths.
type RunbookRepo struct {
	db Querier
}

// NewRunbookRepo constructs a RunbookRepo over db.
func NewRunbookRepo(db Querier) *RunbookRepo {
	return &RunbookRepo{db: db}
}

const runbookColumns = `id, source, source_document, chunk_index, title, content, embedding, doc_metadata, created_at, updated_at`

// Create inserts a chunk (ingestion is a Non-goal per spec.md, but the
// write path is needed by tests and any future ingest tooling).
func (r *RunbookRepo) Create(ctx context.Context, c *domain.RunbookChunk) error {
	metadata, err := json.Marshal(c.DocMetadata)
	if err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO runbook_chunks (source, source_document, chunk_index, title, content, embedding, doc_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		c.Source, c.SourceDocument, c.ChunkIndex, c.Title, c.Content, c.Embedding, metadata)
	return row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID loads a single chunk.
func (r *RunbookRepo) GetByID(ctx context.Context, id int64) (*domain.RunbookChunk, error) {
	row := r.db.QueryRow(ctx, `SELECT `+runbookColumns+` FROM runbook_chunks WHERE id = $1`, id)
	c, err := scanRunbookChunk(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	return c, err
}

// ListAll returns every chunk, used as the in-memory fallback pool when
// neither pgvector nor full-text search is available.
func (r *RunbookRepo) ListAll(ctx context.Context) ([]*domain.RunbookChunk, error) {
	rows, err := r.db.Query(ctx, `SELECT `+runbookColumns+` FROM runbook_chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunbookChunks(rows)
}

// ListWithNullEmbedding returns chunks awaiting embedding computation.
func (r *RunbookRepo) ListWithNullEmbedding(ctx context.Context) ([]*domain.RunbookChunk, error) {
	rows, err := r.db.Query(ctx, `SELECT `+runbookColumns+` FROM runbook_chunks WHERE embedding IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunbookChunks(rows)
}

// UpdateEmbedding persists a freshly computed chunk embedding.
func (r *RunbookRepo) UpdateEmbedding(ctx context.Context, id int64, embedding []float64) error {
	_, err := r.db.Exec(ctx, `UPDATE runbook_chunks SET embedding = $1, updated_at = now() WHERE id = $2`, embedding, id)
	return err
}

// VectorCandidate pairs a chunk with its L2 distance to a query
// embedding, as returned by SearchByEmbeddingL2.
type VectorCandidate struct {
	Chunk    *domain.RunbookChunk
	Distance float64
}

// SearchByEmbeddingL2 computes the exact L2 distance from queryEmbedding
// to every chunk with a non-null embedding, in plain SQL over the
// unnested DOUBLE PRECISION[] arrays (no index is involved), best-effort:
// callers should fall back to KeywordSearch or an in-memory Jaccard pass
// if this returns an error.
func (r *RunbookRepo) SearchByEmbeddingL2(ctx context.Context, queryEmbedding []float64, limit int) ([]VectorCandidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+runbookColumns+`,
			sqrt(sum(pow(e.elem - q.elem, 2))) AS distance
		FROM runbook_chunks,
			LATERAL unnest(embedding) WITH ORDINALITY AS e(elem, ord),
			LATERAL unnest($1::double precision[]) WITH ORDINALITY AS q(elem, ord)
		WHERE embedding IS NOT NULL AND e.ord = q.ord
		GROUP BY id
		ORDER BY distance ASC
		LIMIT $2`, queryEmbedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorCandidate
	for rows.Next() {
		c := &domain.RunbookChunk{}
		var metadataJSON []byte
		var distance float64
		if err := rows.Scan(&c.ID, &c.Source, &c.SourceDocument, &c.ChunkIndex, &c.Title, &c.Content,
			&c.Embedding, &metadataJSON, &c.CreatedAt, &c.UpdatedAt, &distance); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &c.DocMetadata)
		}
		out = append(out, VectorCandidate{Chunk: c, Distance: distance})
	}
	return out, rows.Err()
}

// KeywordCandidate pairs a chunk with its ts_rank score.
type KeywordCandidate struct {
	Chunk *domain.RunbookChunk
	Rank  float64
}

// KeywordSearch runs a full-text query against the GIN index over
// title||content (spec §4.9's keyword-search component of the hybrid
// score).
func (r *RunbookRepo) KeywordSearch(ctx context.Context, query string, limit int) ([]KeywordCandidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+runbookColumns+`,
			ts_rank(to_tsvector('english', title || ' ' || content), plainto_tsquery('english', $1)) AS rank
		FROM runbook_chunks
		WHERE to_tsvector('english', title || ' ' || content) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeywordCandidate
	for rows.Next() {
		c := &domain.RunbookChunk{}
		var metadataJSON []byte
		var rank float64
		if err := rows.Scan(&c.ID, &c.Source, &c.SourceDocument, &c.ChunkIndex, &c.Title, &c.Content,
			&c.Embedding, &metadataJSON, &c.CreatedAt, &c.UpdatedAt, &rank); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &c.DocMetadata)
		}
		out = append(out, KeywordCandidate{Chunk: c, Rank: rank})
	}
	return out, rows.Err()
}

// ListSourceDocuments returns the distinct document ids behind the
// chunked corpus, for the runbook listing endpoint.
func (r *RunbookRepo) ListSourceDocuments(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT source_document FROM runbook_chunks ORDER BY source_document`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanRunbookChunk(row pgx.Row) (*domain.RunbookChunk, error) {
	c := &domain.RunbookChunk{}
	var metadataJSON []byte
	err := row.Scan(&c.ID, &c.Source, &c.SourceDocument, &c.ChunkIndex, &c.Title, &c.Content,
		&c.Embedding, &metadataJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &c.DocMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal doc_metadata: %w", err)
		}
	}
	return c, nil
}

func scanRunbookChunks(rows pgx.Rows) ([]*domain.RunbookChunk, error) {
	var out []*domain.RunbookChunk
	for rows.Next() {
		c, err := scanRunbookChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
