package tracing

import "context"

// NewNoopTracer returns a Tracer that starts spans which discard every
// attribute and error. Used in tests and whenever OTel export isn't
// configured (spec §4.7 treats the exporter binding as external and
// optional).
func NewNoopTracer() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string, _ SpanKind) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) TraceparentFromContext(context.Context) string {
	return ""
}

func (noopTracer) ContextFromTraceparent(ctx context.Context, _ string) context.Context {
	return ctx
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End(Status)               {}
