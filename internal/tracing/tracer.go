package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer. When it
// is never constructed, the global otel tracer stays a no-op and the
// pipeline tracer costs nothing.
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider creates an OTLP-exporting tracer provider and installs
// it globally.
func NewTracerProvider(serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("vigil-core"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// PipelineTracer traces alert pipeline stages (normalize, gate, correlate,
// dispatch, escalate).
type PipelineTracer struct {
	tracer trace.Tracer
}

func NewPipelineTracer(serviceName string) *PipelineTracer {
	return &PipelineTracer{tracer: otel.Tracer(serviceName)}
}

// StartStage opens a span for one pipeline stage of one alert.
func (pt *PipelineTracer) StartStage(ctx context.Context, stage, alertID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "alert_pipeline."+stage,
		trace.WithAttributes(
			attribute.String("alert.id", alertID),
			attribute.String("pipeline.stage", stage),
		),
	)
}

// EndStage closes a span, recording the error if the stage failed.
func EndStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
