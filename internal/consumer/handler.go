package consumer

import (
	"context"

	"github.com/wallethub/eventcore/internal/envelope"
)

// Handler processes one decoded envelope's domain payload. Returning a
// recoverable error (coreerrors.Recoverable) negatively acknowledges
// for redelivery; any other error is treated as a permanent failure
// and acknowledged without retry (spec §4.5 steps 9-10).
type Handler func(ctx context.Context, env envelope.Envelope) error

// Registry maps CloudEvents "type" values to handlers for a single
// destination's dispatcher.
type Registry map[string]Handler
