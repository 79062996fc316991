// Package outbox implements the transactional outbox store (spec
// §3.1, §4.2): an append-only table of domain events, written in the
// same transaction as business state, read by the publisher loop.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is a row in the outbox table.
type Record struct {
	ID            uuid.UUID
	EventType     string
	Payload       []byte
	CorrelationID uuid.UUID
	CreatedAt     time.Time
	Sent          bool
	SentAt        time.Time
	AttemptCount  int
	LastError     string
}

// Store is the outbox's persistence contract (spec §4.2). Append must
// be called with a context carrying the caller's transaction — see
// internal/infra/postgres for how that transaction is threaded
// through.
type Store interface {
	// Append inserts a new unsent record within the caller's
	// transaction. Fails only if the transaction itself fails.
	Append(ctx context.Context, eventType string, payload []byte, correlationID uuid.UUID) (Record, error)

	// FetchUnsent returns up to limit unsent rows ordered by
	// createdAt ascending, ties broken by id.
	FetchUnsent(ctx context.Context, limit int) ([]Record, error)

	// MarkSent sets sent=true, sentAt=sentAt. Idempotent.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// RecordAttempt increments attemptCount and sets lastError.
	RecordAttempt(ctx context.Context, id uuid.UUID, errText string) error

	// Purge deletes sent rows older than olderThan.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}
