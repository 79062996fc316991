package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every
// store run the same query whether or not it's inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func injectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func extractTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func hasTx(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

// Querier returns the active transaction from ctx, falling back to the
// pool. Stores in internal/outbox, internal/saga, and
// internal/idempotency call this so they transparently participate in
// whatever transaction the unit of work started.
func Querier(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return pool
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isPgError(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code
}

// IsUniqueViolation reports whether err is a unique constraint
// violation, used by saga.PostgresStore.Create to treat two dispatchers
// racing to create the same saga row as a lost optimistic-concurrency
// race rather than a hard failure.
func IsUniqueViolation(err error) bool {
	return isPgError(err, pgUniqueViolation)
}

// IsSerializationFailure reports whether err is a retryable
// serialization failure or deadlock. IsRetryableError builds on it for
// the saga machine's transition retry loop.
func IsSerializationFailure(err error) bool {
	return isPgError(err, pgSerializationFailure) || isPgError(err, pgDeadlockDetected)
}

// IsRetryableError reports whether err is a serialization failure,
// deadlock, or connection exception (SQLSTATE class 08) — the set of
// Postgres errors worth retrying rather than failing immediately. Used
// by the saga machine's transition retry loop alongside the
// application-level ErrStaleVersion race.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsSerializationFailure(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}
