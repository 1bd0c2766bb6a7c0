// Package tx carries an optional SQL transaction through context so stores
// can join a caller's transaction without changing their signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Queryer is the subset of *sql.DB and *sql.Tx that stores issue queries
// through.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores a SQL transaction in context for downstream store usage.
// Callers that need a domain mutation and its history row to commit together
// run both inside one transaction and pass it down this way.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner returns the transaction carried in ctx, or fallback when there is
// none.
func Runner(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return fallback
}
