package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer binds the facade to a real OpenTelemetry tracer. This is
// the core's only concrete tracing dependency; everywhere else talks to
// the Tracer/Span interfaces above.
type otelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer builds a Tracer backed by the OTLP/HTTP exporter. Pass
// an empty endpoint to fall back to the exporter's default
// (OTEL_EXPORTER_OTLP_ENDPOINT or localhost:4318).
func NewOTelTracer(ctx context.Context, serviceName, endpoint string) (Tracer, func(context.Context) error, error) {
	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resourceFor(serviceName)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(newTraceparentPropagator())

	return &otelTracer{tracer: provider.Tracer(serviceName)}, provider.Shutdown, nil
}

func (t *otelTracer) StartSpan(ctx context.Context, name string, kind SpanKind) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(toOtelKind(kind)))
	return ctx, &otelSpan{span: span}
}

func (t *otelTracer) TraceparentFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), sc.TraceFlags())
}

func (t *otelTracer) ContextFromTraceparent(ctx context.Context, traceparent string) context.Context {
	sc, ok := parseTraceparent(traceparent)
	if !ok {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, truncate(v)))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, truncate(fmt.Sprintf("%v", v))))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

func (s *otelSpan) End(status Status) {
	switch status {
	case StatusOK:
		s.span.SetStatus(codes.Ok, "")
	case StatusError:
		s.span.SetStatus(codes.Error, "")
	}
	s.span.End()
}

func toOtelKind(k SpanKind) trace.SpanKind {
	switch k {
	case SpanKindServer:
		return trace.SpanKindServer
	case SpanKindClient:
		return trace.SpanKindClient
	case SpanKindProducer:
		return trace.SpanKindProducer
	case SpanKindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}
