package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Observability publishes transition-level counters and latencies through an
// OpenTelemetry meter backed by the Prometheus exporter, and traces each
// transition through a Jaeger-exported tracer when a collector is configured.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	transitionCounter  otelmetric.Int64Counter
	transitionDuration otelmetric.Float64Histogram
	tracerProvider     *sdktrace.TracerProvider
	tracer             oteltrace.Tracer
}

func New(serviceName string) *Observability {
	o := &Observability{}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	transitionCounter, _ := meter.Int64Counter(
		"transitions.processed",
		otelmetric.WithDescription("Number of transitions processed"),
	)

	transitionDuration, _ := meter.Float64Histogram(
		"transitions.duration",
		otelmetric.WithDescription("Transition processing duration"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.transitionCounter = transitionCounter
	o.transitionDuration = transitionDuration

	// Endpoint comes from OTEL_EXPORTER_JAEGER_ENDPOINT, defaulting to a
	// local collector. Export failures are batched and dropped quietly.
	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint())
	if err != nil {
		log.Printf("Failed to create Jaeger exporter, tracing disabled: %v", err)
		return o
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tracerProvider)
	o.tracerProvider = tracerProvider
	o.tracer = tracerProvider.Tracer(serviceName)

	return o
}

// StartTransition opens a span covering one transition invocation. Safe to
// call when tracing is disabled: the returned span is a no-op.
func (o *Observability) StartTransition(ctx context.Context, transition string) (context.Context, oteltrace.Span) {
	if o.tracer == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, "transition."+transition, oteltrace.WithAttributes(
		attribute.String("transition", transition),
	))
}

func (o *Observability) RecordTransition(ctx context.Context, transition, outcome string) {
	if o.transitionCounter != nil {
		o.transitionCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("transition", transition),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordTransitionDuration(ctx context.Context, transition string, d time.Duration) {
	if o.transitionDuration != nil {
		o.transitionDuration.Record(ctx, float64(d.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("transition", transition),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
