package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pginfra "github.com/wallethub/eventcore/internal/infra/postgres"
)

var _ Ledger = (*PostgresLedger)(nil)

// PostgresLedger implements Ledger over the processed_event table
// (spec §6.3), keyed by the (consumer_name, event_id) composite
// primary key.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a PostgresLedger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Contains(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	q := pginfra.Querier(ctx, l.pool)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_event WHERE consumer_name = $1 AND event_id = $2)
	`, consumer, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

func (l *PostgresLedger) Record(ctx context.Context, consumer string, eventID uuid.UUID, processedAt time.Time) error {
	q := pginfra.Querier(ctx, l.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO processed_event (consumer_name, event_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, event_id) DO NOTHING
	`, consumer, eventID, processedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	q := pginfra.Querier(ctx, l.pool)

	tag, err := q.Exec(ctx, `
		DELETE FROM processed_event WHERE processed_at < $1
	`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}
