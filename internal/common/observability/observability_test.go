package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartTransitionRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	o := &Observability{tracerProvider: tp, tracer: tp.Tracer("test")}

	_, span := o.StartTransition(context.Background(), "shortlist")
	assert.True(t, span.IsRecording())
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "transition.shortlist", spans[0].Name)

	o.Shutdown()
}

func TestDisabledObservabilityIsNoOp(t *testing.T) {
	o := &Observability{}
	ctx := context.Background()

	o.RecordTransition(ctx, "shortlist", "applied")
	o.RecordTransitionDuration(ctx, "shortlist", time.Millisecond)

	spanCtx, span := o.StartTransition(ctx, "shortlist")
	assert.Equal(t, ctx, spanCtx)
	assert.False(t, span.IsRecording())
	span.End()

	o.Shutdown()
}
