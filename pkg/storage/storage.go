// Package storage holds OpsRelay's repositories: hand-written pgx
// queries against the tables ent/schema documents (see DESIGN.md for
// why no generated ent client is used).
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every
// repository method run either standalone or inside a caller-managed
// transaction (the Processor and Grouping Engine need the latter for
// the affected_services read-modify-write, per spec §5).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
