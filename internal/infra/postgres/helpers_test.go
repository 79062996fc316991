package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("not a pg error")))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgSerializationFailure}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgDeadlockDetected}))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsSerializationFailure(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(&pgconn.PgError{Code: pgSerializationFailure}))
	assert.True(t, IsRetryableError(&pgconn.PgError{Code: "08006"}))
	assert.False(t, IsRetryableError(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsRetryableError(nil))
}

type fakeTx struct{ pgx.Tx }

func TestTxContext_InjectAndExtract(t *testing.T) {
	ctx := context.Background()
	assert.False(t, hasTx(ctx))
	assert.Nil(t, extractTx(ctx))

	var tx pgx.Tx = fakeTx{}
	txCtx := injectTx(ctx, tx)
	assert.True(t, hasTx(txCtx))
	assert.Equal(t, tx, extractTx(txCtx))
}

func TestQuerier_FallsBackToPoolWithoutTx(t *testing.T) {
	q := Querier(context.Background(), nil)
	assert.Nil(t, q)
}
