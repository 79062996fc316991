package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pginfra "github.com/wallethub/eventcore/internal/infra/postgres"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store over the saga_snapshot table (spec
// §6.3), using a version column for optimistic concurrency — grounded
// on the same UPDATE...WHERE pattern the teacher's wallet balance
// updates use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, sagaID uuid.UUID) (Snapshot, bool, error) {
	q := pginfra.Querier(ctx, s.pool)

	var (
		snap        Snapshot
		state       string
		lastEventID *uuid.UUID
	)
	row := q.QueryRow(ctx, `
		SELECT saga_id, state, version, last_event_id, last_transition_at
		FROM saga_snapshot WHERE saga_id = $1
	`, sagaID)

	err := row.Scan(&snap.SagaID, &state, &snap.Version, &lastEventID, &snap.LastTransitionAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load saga snapshot: %w", err)
	}

	snap.State = State(state)
	if lastEventID != nil {
		snap.LastEventID = *lastEventID
	}
	return snap, true, nil
}

func (s *PostgresStore) Create(ctx context.Context, sagaID uuid.UUID) (Snapshot, error) {
	q := pginfra.Querier(ctx, s.pool)

	snap := Snapshot{
		SagaID:           sagaID,
		State:            StateInitial,
		Version:          0,
		LastTransitionAt: time.Now().UTC(),
	}

	_, err := q.Exec(ctx, `
		INSERT INTO saga_snapshot (saga_id, state, version, last_transition_at)
		VALUES ($1, $2, $3, $4)
	`, snap.SagaID, string(snap.State), snap.Version, snap.LastTransitionAt)
	if err != nil {
		if pginfra.IsUniqueViolation(err) {
			// Two dispatchers raced to create the same saga row —
			// treat it the same as a lost optimistic-concurrency race
			// so Machine retries against the row that won.
			return Snapshot{}, ErrStaleVersion
		}
		return Snapshot{}, fmt.Errorf("failed to create saga snapshot: %w", err)
	}

	return snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, next Snapshot, expectedVersion int) error {
	q := pginfra.Querier(ctx, s.pool)

	tag, err := q.Exec(ctx, `
		UPDATE saga_snapshot
		SET state = $1, version = $2, last_event_id = $3, last_transition_at = $4
		WHERE saga_id = $5 AND version = $6
	`, string(next.State), next.Version, next.LastEventID, next.LastTransitionAt, next.SagaID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to save saga snapshot: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStaleVersion
	}
	return nil
}
