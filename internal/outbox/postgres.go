package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pginfra "github.com/wallethub/eventcore/internal/infra/postgres"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store over the outbox table (spec §6.3).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, eventType string, payload []byte, correlationID uuid.UUID) (Record, error) {
	q := pginfra.Querier(ctx, s.pool)

	rec := Record{
		ID:            uuid.New(),
		EventType:     eventType,
		Payload:       payload,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}

	var correlationArg any
	if correlationID != uuid.Nil {
		correlationArg = correlationID
	}

	_, err := q.Exec(ctx, `
		INSERT INTO outbox (id, event_type, payload, correlation_id, created_at, sent, attempt_count)
		VALUES ($1, $2, $3, $4, $5, false, 0)
	`, rec.ID, rec.EventType, rec.Payload, correlationArg, rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to append outbox row: %w", err)
	}

	return rec, nil
}

func (s *PostgresStore) FetchUnsent(ctx context.Context, limit int) ([]Record, error) {
	q := pginfra.Querier(ctx, s.pool)

	rows, err := q.Query(ctx, `
		SELECT id, event_type, payload, correlation_id, created_at, attempt_count, last_error
		FROM outbox
		WHERE sent = false
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox rows: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec           Record
			correlationID *uuid.UUID
			lastError     *string
		)
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload, &correlationID, &rec.CreatedAt, &rec.AttemptCount, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		if correlationID != nil {
			rec.CorrelationID = *correlationID
		}
		if lastError != nil {
			rec.LastError = *lastError
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	q := pginfra.Querier(ctx, s.pool)

	_, err := q.Exec(ctx, `
		UPDATE outbox SET sent = true, sent_at = $2
		WHERE id = $1 AND sent = false
	`, id, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark outbox row sent: %w", err)
	}
	// A zero rows-affected result means the row was already sent —
	// MarkSent is defined as idempotent (spec §4.2), so that's success.
	return nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, id uuid.UUID, errText string) error {
	q := pginfra.Querier(ctx, s.pool)

	_, err := q.Exec(ctx, `
		UPDATE outbox SET attempt_count = attempt_count + 1, last_error = $2
		WHERE id = $1
	`, id, errText)
	if err != nil {
		return fmt.Errorf("failed to record outbox attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	q := pginfra.Querier(ctx, s.pool)

	tag, err := q.Exec(ctx, `
		DELETE FROM outbox WHERE sent = true AND sent_at < $1
	`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
