package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const fetchWait = 5 * time.Second

// NATSClient wraps a NATS connection and its JetStream context. It
// implements both Publisher and Subscriber.
type NATSClient struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *slog.Logger

	consumerName string

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NewNATSClient connects to NATS and initializes a JetStream context.
func NewNATSClient(url, consumerName string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	logger.Info("NATS JetStream connected", slog.String("url", url))
	return &NATSClient{conn: nc, js: js, log: logger, consumerName: consumerName}, nil
}

// ProvisionStream idempotently ensures a stream exists over the given
// subjects (one per broker destination bound in internal/bindings).
func (c *NATSClient) ProvisionStream(name string, subjects []string) error {
	_, err := c.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.log.Info("NATS stream provisioned", slog.String("stream", name), slog.Any("subjects", subjects))
	return nil
}

// Publish sends payload to destination and blocks for broker ack.
func (c *NATSClient) Publish(ctx context.Context, destination string, payload []byte) error {
	_, err := c.js.Publish(destination, payload, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", destination, err)
	}
	return nil
}

// Fetch pulls up to batch messages from a durable pull consumer bound
// to destination, creating the subscription on first use.
func (c *NATSClient) Fetch(ctx context.Context, destination string, batch int) ([]Message, error) {
	sub, err := c.subscriptionFor(destination)
	if err != nil {
		return nil, err
	}

	msgs, err := sub.Fetch(batch, nats.MaxWait(fetchWait), nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch from %s: %w", destination, err)
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		m := m
		msg := NewMessage(m.Data, m.Ack, m.Nak, m.Term)
		if meta, err := m.Metadata(); err == nil {
			msg = msg.WithStreamPosition(meta.Stream, meta.Sequence.Stream)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *NATSClient) subscriptionFor(destination string) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subs[destination]; ok {
		return sub, nil
	}

	sub, err := c.js.PullSubscribe(destination, c.consumerName+"-"+destination,
		nats.AckExplicit(), nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("pull subscribe %s: %w", destination, err)
	}

	if c.subs == nil {
		c.subs = make(map[string]*nats.Subscription)
	}
	c.subs[destination] = sub
	return sub, nil
}

// Close drains pending publishes/acks before closing the connection.
func (c *NATSClient) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
