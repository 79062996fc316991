// Package broker wraps the NATS JetStream client used by the outbox
// publisher (publish) and the consumer dispatcher (pull-subscribe).
package broker

import "context"

// Publisher is the narrow publish surface the outbox publisher needs.
type Publisher interface {
	// Publish blocks until the broker acknowledges delivery to
	// destination or ctx's deadline expires.
	Publish(ctx context.Context, destination string, payload []byte) error
}

// Message is one broker-delivered envelope, handed to a dispatcher.
// Stream/StreamSequence are JetStream's nearest equivalent to a Kafka
// partition/offset pair — NATS has no partition concept, so these
// identify the message's position within its stream instead.
type Message struct {
	Data           []byte
	Stream         string
	StreamSequence uint64
	ack            func() error
	nak            func() error
	term           func() error
}

// NewMessage builds a Message from its ack/nak/term callbacks. Broker
// implementations and tests use this instead of a struct literal since
// the callback fields are unexported.
func NewMessage(data []byte, ack, nak, term func() error) Message {
	return Message{Data: data, ack: ack, nak: nak, term: term}
}

// WithStreamPosition attaches JetStream stream-position metadata to an
// already-built Message.
func (m Message) WithStreamPosition(stream string, sequence uint64) Message {
	m.Stream = stream
	m.StreamSequence = sequence
	return m
}

// Ack acknowledges successful processing.
func (m Message) Ack() error { return m.ack() }

// Nak negatively acknowledges for redelivery.
func (m Message) Nak() error { return m.nak() }

// Term terminates delivery permanently (poison message — no redelivery).
func (m Message) Term() error { return m.term() }

// Subscriber is the narrow pull surface the consumer dispatcher needs.
type Subscriber interface {
	// Fetch blocks until batch messages are available, the ctx
	// deadline expires, or a broker-level timeout elapses (in which
	// case it returns an empty, non-error batch).
	Fetch(ctx context.Context, destination string, batch int) ([]Message, error)
}
