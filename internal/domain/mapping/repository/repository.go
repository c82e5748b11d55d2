// Package repository persists mapping history and field synonyms in PostgreSQL.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories need.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Outcome kinds recorded in applied_outcomes. One outcome is applied once per kind.
const (
	kindHistory  = "history"
	kindSynonyms = "synonyms"
)

const markAppliedQuery = `
	INSERT INTO applied_outcomes (outcome_id, kind)
	VALUES ($1, $2)
	ON CONFLICT (outcome_id, kind) DO NOTHING
`
