// Package idempotency implements the consumer-side ledger of processed
// (consumer, event) pairs (spec §3.1 ProcessedEventKey, §4.6), consulted
// before a handler's side effects run.
package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger is the idempotency store contract.
type Ledger interface {
	// Contains reports whether (consumer, eventID) has already been
	// recorded.
	Contains(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)

	// Record inserts (consumer, eventID, now) idempotently — a second
	// call for the same pair returns without error.
	Record(ctx context.Context, consumer string, eventID uuid.UUID, processedAt time.Time) error

	// Purge deletes entries older than olderThan.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}
