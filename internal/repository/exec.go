package repository

import (
	"context"
	"database/sql"
)

// execer abstracts *sql.DB and *sql.Tx so a repository statement can run
// either standalone or inside a caller's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
