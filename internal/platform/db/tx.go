package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// DBTxKey carries the ambient transaction through a unit of work;
// repositories pick it up via TxFromContext and fall back to the pool
// outside a transaction.
const DBTxKey contextKey = "db_tx"

// TxFromContext retrieves the ambient transaction, or nil when the caller
// is not inside a unit of work.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithinTx runs fn as one unit of work: a transaction is opened, made
// available to repositories through the context, and committed only when fn
// returns nil. Any error from fn rolls the whole unit back and is returned
// unchanged, so sentinel checks with errors.Is keep working across the
// boundary. Nested calls join the ambient transaction instead of opening a
// second one.
func WithinTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
