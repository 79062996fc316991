package tracing

import (
	"encoding/hex"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// newTraceparentPropagator returns the standard W3C trace-context
// propagator; kept as its own constructor so callers don't need to
// import go.opentelemetry.io/otel/propagation directly.
func newTraceparentPropagator() propagation.TextMapPropagator {
	return propagation.TraceContext{}
}

func resourceFor(serviceName string) *resource.Resource {
	r, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return resource.Default()
	}
	return r
}

// parseTraceparent parses a W3C traceparent header value into a remote
// trace.SpanContext. Malformed input (wrong length, non-hex, unknown
// version) returns ok=false; callers fall back to starting a root
// trace, per spec §4.1 decoding rules.
func parseTraceparent(s string) (trace.SpanContext, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return trace.SpanContext{}, false
	}
	version, traceIDHex, spanIDHex, flagsHex := parts[0], parts[1], parts[2], parts[3]

	if version != "00" || len(traceIDHex) != 32 || len(spanIDHex) != 16 || len(flagsHex) != 2 {
		return trace.SpanContext{}, false
	}
	if _, err := hex.DecodeString(flagsHex); err != nil {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if flagsHex == "01" {
		flags = trace.FlagsSampled
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	if !sc.IsValid() {
		return trace.SpanContext{}, false
	}
	return sc, true
}
