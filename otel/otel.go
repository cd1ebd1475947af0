// Package otel wires OpenTelemetry tracing to the engine's event bus: one
// span per execution, one child span per resolver batch dispatch.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/relink-dev/relink/internal/eventbus"
	"github.com/relink-dev/relink/internal/events"
	"github.com/relink-dev/relink/internal/execid"
)

// Setup configures the OTLP exporter and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("relink")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	execSpans  sync.Map // execution id -> trace.Span
	batchSpans sync.Map // batch id -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.ExecutionStart) {
		rid, _ := execid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "relink.execute")
		span.SetAttributes(attribute.Int("relink.roots", e.Roots))
		s.execSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ExecutionFinish) {
		rid, _ := execid.FromContext(ctx)
		v, ok := s.execSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("relink.error_count", e.Errors))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.BatchStart) {
		rid, _ := execid.FromContext(ctx)
		parent := ctx
		if v, ok := s.execSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "relink.batch")
		span.SetAttributes(
			attribute.String("relink.node", e.Node),
			attribute.String("relink.member", e.Member),
			attribute.String("relink.kind", e.Kind),
			attribute.Int("relink.batch_size", e.Size),
		)
		s.batchSpans.Store(e.BatchID, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.BatchFinish) {
		v, ok := s.batchSpans.LoadAndDelete(e.BatchID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
