// Package publisher implements the outbox publisher loop: it polls
// internal/outbox for unsent rows, resolves each row's broker
// destination via internal/bindings, wraps the payload in a CloudEvents
// envelope (internal/envelope), and publishes it through a
// internal/broker.Publisher — spec §4.3.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wallethub/eventcore/internal/bindings"
	"github.com/wallethub/eventcore/internal/broker"
	"github.com/wallethub/eventcore/internal/domain/coreerrors"
	"github.com/wallethub/eventcore/internal/envelope"
	"github.com/wallethub/eventcore/internal/metrics"
	"github.com/wallethub/eventcore/internal/outbox"
	"github.com/wallethub/eventcore/internal/pkg/tracing"
)

// Config holds the publisher's tunables, all named directly after the
// spec §6.4 knobs of the same name.
type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	PublishTimeout  time.Duration
	RetentionWindow time.Duration
	SweepInterval   time.Duration
	Source          string // CloudEvents "source" attribute, e.g. "wallet-service"
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		BatchSize:       100,
		PublishTimeout:  10 * time.Second,
		RetentionWindow: 168 * time.Hour,
		SweepInterval:   1 * time.Hour,
		Source:          "wallet-service",
	}
}

// Publisher drains the outbox and publishes each row exactly once per
// successful attempt, leaving unsent rows for the next poll on failure.
type Publisher struct {
	store  outbox.Store
	broker broker.Publisher
	tracer tracing.Tracer
	log    *slog.Logger
	cfg    Config
}

// New builds a Publisher.
func New(store outbox.Store, pub broker.Publisher, tracer tracing.Tracer, log *slog.Logger, cfg Config) *Publisher {
	return &Publisher{store: store, broker: pub, tracer: tracer, log: log, cfg: cfg}
}

// Run blocks, polling until ctx is cancelled. It also starts the
// retention sweeper on its own ticker. Callers that want leader
// election wrap Run with a Lease (see lease.go); Run itself assumes it
// is the sole active instance.
func (p *Publisher) Run(ctx context.Context) {
	go p.sweepLoop(ctx)

	delay := p.cfg.PollInterval
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		full, err := p.pollOnce(ctx)
		switch {
		case err != nil:
			p.log.Error("outbox poll encountered a failure", slog.Any("error", err))
			failures++
			delay = backoff(p.cfg.PollInterval, failures)
		case full:
			// Backlog at least filled the batch — don't wait out the
			// full interval before checking for more (spec §4.3
			// backpressure note).
			failures = 0
			delay = 0
		default:
			failures = 0
			delay = p.cfg.PollInterval
		}
	}
}

// backoff caps exponential growth at pollInterval * 2^6 per spec §4.3.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// pollOnce fetches and publishes a single batch, returning whether the
// batch was full (a signal there may be more work waiting) and the
// first publish failure encountered, if any, so Run's backoff engages
// on sustained broker outages and not just on a failed fetch.
func (p *Publisher) pollOnce(ctx context.Context) (full bool, err error) {
	rows, err := p.store.FetchUnsent(ctx, p.cfg.BatchSize)
	if err != nil {
		return false, fmt.Errorf("fetch unsent: %w", err)
	}
	metrics.OutboxUnsentRows.Set(float64(len(rows)))

	var firstErr error
	for _, row := range rows {
		if rowErr := p.publishRow(ctx, row); rowErr != nil && firstErr == nil {
			firstErr = rowErr
		}
	}

	return len(rows) == p.cfg.BatchSize, firstErr
}

func (p *Publisher) publishRow(ctx context.Context, row outbox.Record) error {
	dest, ok := bindings.Lookup(row.EventType)
	if !ok {
		p.log.Error("no broker binding for event type", slog.String("eventType", row.EventType), slog.String("outboxId", row.ID.String()))
		metrics.OutboxPublishTotal.WithLabelValues("unbound", "missing_binding").Inc()
		_ = p.store.RecordAttempt(ctx, row.ID, coreerrors.ErrMissingBinding.Error())
		return coreerrors.ErrMissingBinding
	}

	ctx, span := p.tracer.StartSpan(ctx, "outbox.publish", tracing.SpanKindProducer)
	span.SetAttribute("messaging.destination", dest)
	span.SetAttribute("messaging.kafka.topic", dest)
	if row.CorrelationID != uuid.Nil {
		span.SetAttribute("correlationid", row.CorrelationID.String())
	}

	now := time.Now().UTC()
	body, err := envelope.Encode(envelope.EncodeParams{
		ID:            row.ID,
		EventType:     row.EventType,
		Source:        p.cfg.Source,
		Payload:       rawPayload(row.Payload),
		CorrelationID: row.CorrelationID,
		Traceparent:   p.tracer.TraceparentFromContext(ctx),
		SendTimestamp: now,
	})
	if err != nil {
		span.RecordError(err)
		span.End(tracing.StatusError)
		p.log.Error("envelope encode failed", slog.String("outboxId", row.ID.String()), slog.Any("error", err))
		metrics.OutboxPublishTotal.WithLabelValues(dest, "error").Inc()
		_ = p.store.RecordAttempt(ctx, row.ID, err.Error())
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	err = p.broker.Publish(pubCtx, dest, body)
	cancel()

	if err != nil {
		span.RecordError(err)
		span.End(tracing.StatusError)
		p.log.Warn("publish attempt failed, leaving row for retry",
			slog.String("outboxId", row.ID.String()), slog.String("destination", dest), slog.Any("error", err))
		metrics.OutboxPublishTotal.WithLabelValues(dest, "error").Inc()
		_ = p.store.RecordAttempt(ctx, row.ID, err.Error())
		return err
	}

	span.End(tracing.StatusOK)
	metrics.OutboxPublishTotal.WithLabelValues(dest, "ok").Inc()
	if err := p.store.MarkSent(ctx, row.ID, now); err != nil {
		p.log.Error("mark sent failed after successful publish", slog.String("outboxId", row.ID.String()), slog.Any("error", err))
	}
	return nil
}

// rawPayload lets a []byte payload already produced by the caller pass
// through envelope.Encode's json.Marshal as a raw JSON value rather
// than being re-escaped as a base64 string.
func rawPayload(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func (p *Publisher) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-p.cfg.RetentionWindow)
			n, err := p.store.Purge(ctx, cutoff)
			if err != nil {
				p.log.Error("outbox retention sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				p.log.Info("outbox retention sweep", slog.Int64("purged", n))
				metrics.OutboxPurgedTotal.Add(float64(n))
			}
		}
	}
}
