// Package metrics defines the Prometheus collectors for the outbox
// publisher, consumer dispatcher, and saga state machine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutboxPublishTotal counts publish attempts by destination and
	// outcome (ok, error, missing_binding).
	OutboxPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventcore",
			Subsystem: "outbox",
			Name:      "publish_total",
			Help:      "Total outbox publish attempts by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	// OutboxUnsentRows gauges the number of unsent rows fetched on the
	// last poll tick, which is at most the publisher's batch size.
	OutboxUnsentRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "eventcore",
			Subsystem: "outbox",
			Name:      "unsent_rows",
			Help:      "Number of outbox rows observed unsent on the last poll",
		},
	)

	// OutboxPurgedTotal counts rows removed by the retention sweeper.
	OutboxPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eventcore",
			Subsystem: "outbox",
			Name:      "purged_total",
			Help:      "Total outbox rows removed by the retention sweeper",
		},
	)

	// ConsumerLag observes now - sendtimestamp per destination.
	ConsumerLag = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eventcore",
			Subsystem: "consumer",
			Name:      "lag_seconds",
			Help:      "Consumer lag (receive time minus envelope sendtimestamp) in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"destination"},
	)

	// ConsumerDuplicatesTotal counts envelopes dropped by the
	// idempotency check.
	ConsumerDuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventcore",
			Subsystem: "consumer",
			Name:      "duplicates_total",
			Help:      "Envelopes acknowledged without processing due to idempotency match",
		},
		[]string{"destination"},
	)

	// ConsumerPoisonTotal counts envelopes dropped for malformed
	// decoding.
	ConsumerPoisonTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventcore",
			Subsystem: "consumer",
			Name:      "poison_total",
			Help:      "Envelopes dropped without processing due to decode failure",
		},
		[]string{"destination"},
	)

	// SagaTransitionsTotal counts transition attempts by outcome (ok,
	// invalid, concurrent, unknown_saga, terminal, error).
	SagaTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventcore",
			Subsystem: "saga",
			Name:      "transitions_total",
			Help:      "Saga transition attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveConsumerLag records consumer lag for a destination given the
// envelope's sendtimestamp. A zero sendTimestamp (absent from the
// envelope) records nothing (spec §4.5 step 4).
func ObserveConsumerLag(destination string, sendTimestamp time.Time) {
	if sendTimestamp.IsZero() {
		return
	}
	lag := time.Since(sendTimestamp).Seconds()
	if lag < 0 {
		lag = 0
	}
	ConsumerLag.WithLabelValues(destination).Observe(lag)
}
