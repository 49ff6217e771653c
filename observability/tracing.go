package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/intake"

// Tracer provides OpenTelemetry tracing for Intake.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Intake tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartExecutionSpan starts a new span for an execution attempt.
func (t *Tracer) StartExecutionSpan(ctx context.Context, executionID, eventID, handler string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "intake.execution",
		trace.WithAttributes(
			attribute.String("intake.execution_id", executionID),
			attribute.String("intake.event_id", eventID),
			attribute.String("intake.handler", handler),
		),
	)
}

// EndExecutionSpan ends an execution span with result attributes.
func (t *Tracer) EndExecutionSpan(span trace.Span, attempt int, err string) {
	span.SetAttributes(
		attribute.Int("intake.attempt", attempt),
	)
	if err != "" {
		span.SetAttributes(attribute.String("intake.error", err))
	}
	span.End()
}
