package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wallethub/eventcore/internal/domain/coreerrors"
	pginfra "github.com/wallethub/eventcore/internal/infra/postgres"
	"github.com/wallethub/eventcore/internal/metrics"
	"github.com/wallethub/eventcore/internal/pkg/tracing"
)

// Machine wraps Store with the transition/guard/retry semantics of
// spec §4.4: load snapshot, check version, apply the closed transition
// table, persist with version+1; on a lost race, retry up to
// MaxRetries times before surfacing ErrConcurrentTransition.
type Machine struct {
	store      Store
	tracer     tracing.Tracer
	MaxRetries int
	RetryDelay time.Duration
}

// NewMachine builds a Machine with spec-default retry settings
// (maxTransitionRetries = 3).
func NewMachine(store Store, tracer tracing.Tracer) *Machine {
	return &Machine{
		store:      store,
		tracer:     tracer,
		MaxRetries: 3,
		RetryDelay: 20 * time.Millisecond,
	}
}

// Transition applies event to the saga identified by correlationID,
// which doubles as sagaId (spec §3.1). It is the entry point consumer
// handlers call.
func (m *Machine) Transition(ctx context.Context, correlationID uuid.UUID, event Event, eventID uuid.UUID) (err error) {
	if correlationID == uuid.Nil {
		metrics.SagaTransitionsTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: empty correlation id, routing to SAGA_FAILED", coreerrors.ErrInvalidTransition)
	}

	ctx, span := m.tracer.StartSpan(ctx, "saga.transition", tracing.SpanKindInternal)
	span.SetAttribute("correlationid", correlationID.String())
	span.SetAttribute("saga.event", string(event))
	defer func() { span.End(tracing.StatusOK) }()
	defer func() { metrics.SagaTransitionsTotal.WithLabelValues(transitionOutcome(err)).Inc() }()

	var lastErr error
	for attempt := 0; attempt <= m.MaxRetries; attempt++ {
		attemptErr := m.attempt(ctx, correlationID, event, eventID)
		if attemptErr == nil {
			return nil
		}
		if !errors.Is(attemptErr, ErrStaleVersion) && !pginfra.IsRetryableError(attemptErr) {
			span.RecordError(attemptErr)
			return attemptErr
		}
		lastErr = attemptErr
		if attempt < m.MaxRetries {
			time.Sleep(m.RetryDelay)
		}
	}

	span.RecordError(lastErr)
	return fmt.Errorf("%w: %v", coreerrors.ErrConcurrentTransition, lastErr)
}

// transitionOutcome maps a Transition result to the label
// SagaTransitionsTotal groups by.
func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, coreerrors.ErrConcurrentTransition):
		return "concurrent"
	case errors.Is(err, coreerrors.ErrUnknownSaga):
		return "unknown_saga"
	case errors.Is(err, coreerrors.ErrSagaTerminal):
		return "terminal"
	case errors.Is(err, coreerrors.ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}

func (m *Machine) attempt(ctx context.Context, sagaID uuid.UUID, event Event, eventID uuid.UUID) error {
	snap, found, err := m.store.Load(ctx, sagaID)
	if err != nil {
		return err
	}

	if !found {
		if event != EventWalletCreated {
			return coreerrors.ErrUnknownSaga
		}
		snap, err = m.store.Create(ctx, sagaID)
		if err != nil {
			return err
		}
	}

	if Terminal(snap.State) {
		// Acknowledged and ignored per spec §4.4 — not an error the
		// dispatcher should redeliver for.
		return coreerrors.ErrSagaTerminal
	}

	next, ok := apply(snap.State, event)
	if !ok {
		return coreerrors.ErrInvalidTransition
	}

	newSnap := Snapshot{
		SagaID:           sagaID,
		State:            next,
		Version:          snap.Version + 1,
		LastEventID:      eventID,
		LastTransitionAt: time.Now().UTC(),
	}

	return m.store.Save(ctx, newSnap, snap.Version)
}
