// Package envelope implements the CloudEvents v1.0 wire codec and W3C
// trace-context propagation fields used by the outbox publisher and the
// consumer dispatcher (spec §4.1, §6.1).
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wallethub/eventcore/internal/domain/coreerrors"
)

const specVersion = "1.0"
const contentType = "application/json"

var envelopeValidator = validator.New()

// Envelope is the decoded in-memory form of a CloudEvents structured
// content-mode JSON object. Never persisted in this form — the outbox
// stores the raw domain payload, and the envelope is built fresh on
// every publish attempt.
type Envelope struct {
	SpecVersion     string          `json:"specversion" validate:"required"`
	ID              string          `json:"id" validate:"required"`
	Type            string          `json:"type" validate:"required"`
	Source          string          `json:"source" validate:"required"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	Traceparent   string `json:"traceparent,omitempty"`
	Tracestate    string `json:"tracestate,omitempty"`
	CorrelationID string `json:"correlationid,omitempty"`
	SendTimestamp int64  `json:"sendtimestamp,omitempty"`

	// TraceparentDropped is set by Decode when the wire traceparent
	// failed W3C validation and was cleared. Not part of the wire
	// format — callers use it to log the warning spec §4.1 requires.
	TraceparentDropped bool `json:"-"`
}

// EncodeParams groups the inputs to Encode so callers don't have to
// remember argument order for an eight-field constructor.
type EncodeParams struct {
	ID            uuid.UUID
	EventType     string
	Source        string
	Payload       any
	CorrelationID uuid.UUID
	Traceparent   string
	Tracestate    string
	SendTimestamp time.Time
}

// Encode serializes a domain event into a CloudEvents envelope. Per
// spec §4.1, a payload that cannot be JSON-encoded falls back to its
// textual representation — Encode never returns an error for that
// reason; it only fails if the caller's ID is the zero UUID.
func Encode(p EncodeParams) ([]byte, error) {
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty id", coreerrors.ErrMalformedEnvelope)
	}

	data, err := json.Marshal(p.Payload)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", p.Payload))
	}

	env := Envelope{
		SpecVersion:     specVersion,
		ID:              p.ID.String(),
		Type:            p.EventType,
		Source:          p.Source,
		Time:            p.SendTimestamp.UTC(),
		DataContentType: contentType,
		Data:            data,
	}
	if p.Traceparent != "" {
		env.Traceparent = p.Traceparent
	}
	if p.Tracestate != "" {
		env.Tracestate = p.Tracestate
	}
	if p.CorrelationID != uuid.Nil {
		env.CorrelationID = p.CorrelationID.String()
	}
	if !p.SendTimestamp.IsZero() {
		env.SendTimestamp = p.SendTimestamp.UnixMilli()
	}

	return json.Marshal(env)
}

// Decode parses a wire-format envelope. It fails with
// ErrMalformedEnvelope when a required CloudEvents field is missing or
// the spec version doesn't match; a malformed traceparent is not fatal
// — it is dropped so the consumer starts a new root trace, and
// TraceparentDropped is set so the caller can log the warning.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", coreerrors.ErrMalformedEnvelope, err)
	}

	if err := envelopeValidator.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", coreerrors.ErrMalformedEnvelope, err)
	}
	if env.SpecVersion != specVersion {
		return Envelope{}, fmt.Errorf("%w: specversion %q", coreerrors.ErrMalformedEnvelope, env.SpecVersion)
	}

	if env.Traceparent != "" && !ValidTraceparent(env.Traceparent) {
		env.Traceparent = ""
		env.TraceparentDropped = true
	}

	return env, nil
}

// CorrelationUUID parses the correlationid extension, returning
// uuid.Nil if absent or malformed.
func (e Envelope) CorrelationUUID() uuid.UUID {
	id, err := uuid.Parse(e.CorrelationID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// SendTime converts the sendtimestamp extension (epoch millis) to a
// time.Time; the zero value means the extension was absent.
func (e Envelope) SendTime() time.Time {
	if e.SendTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.SendTimestamp).UTC()
}
