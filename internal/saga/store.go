package saga

import (
	"context"

	"github.com/google/uuid"
)

// Store is the saga snapshot persistence contract. Implementations
// must enforce optimistic concurrency on Save: a write with a stale
// version must fail distinguishably so Machine can retry.
type Store interface {
	// Load returns the current snapshot for sagaID, or found=false if
	// none exists yet.
	Load(ctx context.Context, sagaID uuid.UUID) (snap Snapshot, found bool, err error)

	// Create inserts the initial INITIAL/version-0 snapshot. Returns
	// an error if one already exists for sagaID.
	Create(ctx context.Context, sagaID uuid.UUID) (Snapshot, error)

	// Save writes next at expectedVersion+1, succeeding only if the
	// row's current version still equals expectedVersion. Returns
	// ErrStaleVersion otherwise.
	Save(ctx context.Context, next Snapshot, expectedVersion int) error
}

// ErrStaleVersion is returned by Store.Save when the row's version no
// longer matches the caller's expected version — another writer won
// the race. Machine translates repeated occurrences of this into
// ErrConcurrentTransition once MaxRetries retries (MaxRetries+1
// attempts) have all lost the race.
var ErrStaleVersion = stalevErr{}

type stalevErr struct{}

func (stalevErr) Error() string { return "saga snapshot version is stale" }
