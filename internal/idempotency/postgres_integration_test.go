package idempotency

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupLedgerTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	migrationsPath := filepath.Join("..", "..", "migrations")
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("eventcore_test"),
		tcpostgres.WithUsername("eventcore"),
		tcpostgres.WithPassword("eventcore"),
		tcpostgres.WithInitScripts(filepath.Join(migrationsPath, "000003_create_processed_event.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))
	return pool
}

func TestPostgresLedger_Integration_RecordIsIdempotent(t *testing.T) {
	pool := setupLedgerTestDB(t)
	ledger := NewPostgresLedger(pool)
	ctx := context.Background()

	eventID := uuid.New()

	seen, err := ledger.Contains(ctx, "saga-dispatcher", eventID)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, ledger.Record(ctx, "saga-dispatcher", eventID, time.Now().UTC()))
	require.NoError(t, ledger.Record(ctx, "saga-dispatcher", eventID, time.Now().UTC()))

	seen, err = ledger.Contains(ctx, "saga-dispatcher", eventID)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestPostgresLedger_Integration_Purge(t *testing.T) {
	pool := setupLedgerTestDB(t)
	ledger := NewPostgresLedger(pool)
	ctx := context.Background()

	old := uuid.New()
	require.NoError(t, ledger.Record(ctx, "saga-dispatcher", old, time.Now().UTC().Add(-200*time.Hour)))

	fresh := uuid.New()
	require.NoError(t, ledger.Record(ctx, "saga-dispatcher", fresh, time.Now().UTC()))

	purged, err := ledger.Purge(ctx, time.Now().UTC().Add(-168*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	seenOld, _ := ledger.Contains(ctx, "saga-dispatcher", old)
	require.False(t, seenOld)
	seenFresh, _ := ledger.Contains(ctx, "saga-dispatcher", fresh)
	require.True(t, seenFresh)
}
