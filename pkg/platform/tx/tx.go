package tx

import (
	"context"
	"database/sql"
)

type sqlTxKey struct{}

// WithTx binds the guard's SQL transaction to ctx so stores join it.
func WithTx(ctx context.Context, sqlTx *sql.Tx) context.Context {
	if sqlTx == nil {
		return ctx
	}
	return context.WithValue(ctx, sqlTxKey{}, sqlTx)
}

func From(ctx context.Context) (*sql.Tx, bool) {
	sqlTx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return sqlTx, ok
}

// Executor is what Postgres stores run statements on: the open transaction
// inside a guard, the pool outside one.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Execer(ctx context.Context, db *sql.DB) Executor {
	if sqlTx, ok := From(ctx); ok {
		return sqlTx
	}
	return db
}
