package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for database operations
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// AddDrainAttributes records a drain cycle summary on the span
func AddDrainAttributes(span trace.Span, synced, failed, remaining int) {
	span.SetAttributes(
		attribute.Int("sync.synced", synced),
		attribute.Int("sync.failed", failed),
		attribute.Int("sync.remaining", remaining),
	)
}

// QueueMetrics holds capture queue and sync metrics
type QueueMetrics struct {
	queueDepth    metric.Int64UpDownCounter
	enqueueCount  metric.Int64Counter
	uploadCount   metric.Int64Counter
	drainCount    metric.Int64Counter
	drainDuration metric.Float64Histogram
}

// NewQueueMetrics creates queue metrics instruments
func NewQueueMetrics() (*QueueMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queueDepth, err := meter.Int64UpDownCounter(
		"booth.queue.depth",
		metric.WithDescription("Number of captures waiting for delivery"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		return nil, err
	}

	enqueueCount, err := meter.Int64Counter(
		"booth.queue.enqueues",
		metric.WithDescription("Total number of captures persisted to the queue"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		return nil, err
	}

	uploadCount, err := meter.Int64Counter(
		"booth.upload.count",
		metric.WithDescription("Total number of upload attempts"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	drainCount, err := meter.Int64Counter(
		"booth.sync.cycles",
		metric.WithDescription("Total number of drain cycles"),
		metric.WithUnit("{cycles}"),
	)
	if err != nil {
		return nil, err
	}

	drainDuration, err := meter.Float64Histogram(
		"booth.sync.cycle_duration",
		metric.WithDescription("Drain cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &QueueMetrics{
		queueDepth:    queueDepth,
		enqueueCount:  enqueueCount,
		uploadCount:   uploadCount,
		drainCount:    drainCount,
		drainDuration: drainDuration,
	}, nil
}

// RecordEnqueue records a capture entering the queue
func (m *QueueMetrics) RecordEnqueue(ctx context.Context) {
	m.enqueueCount.Add(ctx, 1)
	m.queueDepth.Add(ctx, 1)
}

// RecordUpload records an upload attempt
func (m *QueueMetrics) RecordUpload(ctx context.Context, success bool) {
	m.uploadCount.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordDrainCycle records a completed drain cycle
func (m *QueueMetrics) RecordDrainCycle(ctx context.Context, synced, failed int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int("sync.synced", synced),
		attribute.Int("sync.failed", failed),
	}
	m.drainCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.drainDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.queueDepth.Add(ctx, int64(-synced))
}
