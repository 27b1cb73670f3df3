package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateSupportingIndexes creates the indexes spec §6's persisted-state
// layout names that aren't expressible as plain column/unique
// constraints: full-text and trigram indexes on runbook chunk content,
// and (best-effort) an approximate-nearest-neighbor index on the vector
// columns when the pgvector extension is available. Matches the
// teacher's own practice of dropping out of its ORM to raw SQL for DDL
// its schema layer can't express.
func CreateSupportingIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []struct {
		name string
		sql  string
	}{
		{
			"runbook_chunks content GIN",
			`CREATE INDEX IF NOT EXISTS idx_runbook_chunks_content_gin
			 ON runbook_chunks USING gin(to_tsvector('english', coalesce(title,'') || ' ' || coalesce(content,'')))`,
		},
		{"pg_trgm extension", `CREATE EXTENSION IF NOT EXISTS pg_trgm`},
		{
			"runbook_chunks content trigram",
			`CREATE INDEX IF NOT EXISTS idx_runbook_chunks_content_trgm
			 ON runbook_chunks USING gin(content gin_trgm_ops)`,
		},
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create index (%s): %w", stmt.name, err)
		}
	}

	// pgvector's ivfflat index requires the extension and a populated
	// table to choose list counts sensibly; best-effort only, matching
	// spec §6's "when the database supports it" qualifier.
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err == nil {
		_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_runbook_chunks_embedding_ivfflat
			ON runbook_chunks USING ivfflat (embedding vector_l2_ops) WITH (lists = 100)`)
		_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_incidents_embedding_ivfflat
			ON incidents USING ivfflat (incident_embedding vector_l2_ops) WITH (lists = 100)`)
	}

	return nil
}
