// Package consumer implements the per-destination event dispatcher
// (spec §4.5): fetch from the broker, decode the envelope, extract
// trace context, check idempotency, dispatch to a registered handler,
// and ack/nak accordingly.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wallethub/eventcore/internal/broker"
	"github.com/wallethub/eventcore/internal/domain/coreerrors"
	"github.com/wallethub/eventcore/internal/envelope"
	"github.com/wallethub/eventcore/internal/idempotency"
	"github.com/wallethub/eventcore/internal/metrics"
	"github.com/wallethub/eventcore/internal/pkg/tracing"
)

// Config holds the dispatcher's tunables.
type Config struct {
	ConsumerName   string
	Destination    string
	BatchSize      int
	HandlerTimeout time.Duration
}

// DefaultConfig returns spec-documented defaults for all fields except
// ConsumerName and Destination, which callers must set.
func DefaultConfig(consumerName, destination string) Config {
	return Config{
		ConsumerName:   consumerName,
		Destination:    destination,
		BatchSize:      10,
		HandlerTimeout: 30 * time.Second,
	}
}

// Dispatcher pulls envelopes for a single broker destination and runs
// them through decode → trace → idempotency → handler → ack/nak.
// One Dispatcher per destination; the composition root starts one per
// entry in bindings.Destinations().
type Dispatcher struct {
	sub    broker.Subscriber
	ledger idempotency.Ledger
	tracer tracing.Tracer
	log    *slog.Logger
	cfg    Config

	registry Registry
}

// New builds a Dispatcher. Register handlers with Handle before
// calling Run.
func New(sub broker.Subscriber, ledger idempotency.Ledger, tracer tracing.Tracer, log *slog.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{
		sub:      sub,
		ledger:   ledger,
		tracer:   tracer,
		log:      log.With(slog.String("destination", cfg.Destination), slog.String("consumer", cfg.ConsumerName)),
		cfg:      cfg,
		registry: make(Registry),
	}
}

// Handle registers a handler for a CloudEvents type. Call before Run;
// Dispatcher is not safe for concurrent registration and dispatch.
func (d *Dispatcher) Handle(eventType string, h Handler) {
	d.registry[eventType] = h
}

// Run blocks, fetching and dispatching batches until ctx is cancelled.
// Envelopes within a batch are processed sequentially, preserving
// broker delivery order per spec §4.5's "no concurrent handlers for
// the same partition" rule.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := d.sub.Fetch(ctx, d.cfg.Destination, d.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("fetch failed", slog.Any("error", err))
			continue
		}

		for _, msg := range msgs {
			d.dispatch(ctx, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg broker.Message) {
	env, err := envelope.Decode(msg.Data)
	if err != nil {
		d.log.Warn("malformed envelope, dropping", slog.Any("error", err))
		metrics.ConsumerPoisonTotal.WithLabelValues(d.cfg.Destination).Inc()
		_, span := d.tracer.StartSpan(ctx, "consume.malformed", tracing.SpanKindInternal)
		span.RecordError(err)
		span.End(tracing.StatusError)
		if ackErr := msg.Term(); ackErr != nil {
			d.log.Error("term failed for malformed envelope", slog.Any("error", ackErr))
		}
		return
	}

	if env.TraceparentDropped {
		d.log.Warn("malformed traceparent, starting a new trace", slog.String("type", env.Type), slog.String("id", env.ID))
	}

	spanCtx := ctx
	if env.Traceparent != "" {
		spanCtx = d.tracer.ContextFromTraceparent(ctx, env.Traceparent)
	}
	spanCtx, span := d.tracer.StartSpan(spanCtx, "consume."+env.Type, tracing.SpanKindConsumer)
	span.SetAttribute("messaging.destination", d.cfg.Destination)
	span.SetAttribute("messaging.message.id", env.ID)
	if env.CorrelationID != "" {
		span.SetAttribute("correlationid", env.CorrelationID)
	}
	// NATS JetStream has no partition concept; stream/stream-sequence
	// is its nearest equivalent to Kafka's partition/offset pair.
	if msg.Stream != "" {
		span.SetAttribute("messaging.kafka.partition", msg.Stream)
		span.SetAttribute("messaging.kafka.offset", msg.StreamSequence)
	}
	metrics.ObserveConsumerLag(d.cfg.Destination, env.SendTime())

	eventID, err := uuid.Parse(env.ID)
	if err != nil {
		d.log.Warn("envelope id is not a uuid, dropping", slog.String("id", env.ID))
		metrics.ConsumerPoisonTotal.WithLabelValues(d.cfg.Destination).Inc()
		span.RecordError(err)
		span.End(tracing.StatusError)
		_ = msg.Term()
		return
	}

	seen, err := d.ledger.Contains(spanCtx, d.cfg.ConsumerName, eventID)
	if err != nil {
		d.log.Error("idempotency check failed", slog.Any("error", err))
		span.RecordError(err)
		span.End(tracing.StatusError)
		_ = msg.Nak()
		return
	}
	if seen {
		span.SetAttribute("duplicate", true)
		span.End(tracing.StatusOK)
		metrics.ConsumerDuplicatesTotal.WithLabelValues(d.cfg.Destination).Inc()
		_ = msg.Ack()
		return
	}

	handler, ok := d.registry[env.Type]
	if !ok {
		d.log.Warn("no handler registered for event type", slog.String("type", env.Type))
		span.End(tracing.StatusOK)
		_ = msg.Ack()
		return
	}

	handlerCtx, cancel := context.WithTimeout(spanCtx, d.cfg.HandlerTimeout)
	err = handler(handlerCtx, env)
	cancel()

	switch {
	case err == nil:
		now := time.Now().UTC()
		if recErr := d.ledger.Record(spanCtx, d.cfg.ConsumerName, eventID, now); recErr != nil {
			d.log.Error("failed to record processed event", slog.Any("error", recErr))
		}
		span.End(tracing.StatusOK)
		_ = msg.Ack()

	case coreerrors.Recoverable(err):
		span.RecordError(err)
		span.End(tracing.StatusError)
		_ = msg.Nak()

	case errors.Is(err, coreerrors.ErrSagaTerminal), errors.Is(err, coreerrors.ErrUnknownSaga):
		// Acknowledged and ignored per spec §4.4/§4.5 — not every
		// non-success outcome is a redelivery candidate.
		span.End(tracing.StatusOK)
		_ = msg.Ack()

	default:
		d.log.Error("handler failed permanently", slog.String("type", env.Type), slog.Any("error", err))
		span.RecordError(err)
		span.End(tracing.StatusError)
		_ = msg.Ack()
	}
}
