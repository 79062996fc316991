// Package tracing defines the minimal tracing facade the core calls
// directly (spec §4.7). The concrete exporter/sampler binding lives in
// this package's otel.go and is an external collaborator from the
// core's point of view.
package tracing

import "context"

// SpanKind mirrors the OpenTelemetry span kinds the core needs.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// Status is the terminal status recorded on End.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
)

const maxAttrLen = 1024

// Span is the narrow surface the core touches: set attributes, record
// an error, and end with a status.
type Span interface {
	SetAttribute(key string, value any)
	RecordError(err error)
	End(status Status)
}

// Tracer starts spans and converts between contexts and W3C traceparent
// strings.
type Tracer interface {
	StartSpan(ctx context.Context, name string, kind SpanKind) (context.Context, Span)
	TraceparentFromContext(ctx context.Context) string
	ContextFromTraceparent(ctx context.Context, traceparent string) context.Context
}

// truncate enforces the facade's 1024-byte attribute value cap.
func truncate(s string) string {
	if len(s) <= maxAttrLen {
		return s
	}
	return s[:maxAttrLen]
}
