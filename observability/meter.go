package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/varflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	RunID          string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider must be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.RunID)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// TaskMetrics holds the instruments recorded by the task executor.
type TaskMetrics struct {
	taskTotal    metric.Int64Counter
	taskDuration metric.Float64Histogram
	taskActive   metric.Int64UpDownCounter
	taskQueued   metric.Int64UpDownCounter
}

// NewTaskMetrics creates task instruments on the given meter.
func NewTaskMetrics(meter metric.Meter) (*TaskMetrics, error) {
	taskTotal, err := meter.Int64Counter("varflow.task.total",
		metric.WithDescription("Tasks that reached a terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating varflow.task.total counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("varflow.task.duration",
		metric.WithDescription("Task run time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating varflow.task.duration histogram: %w", err)
	}

	taskActive, err := meter.Int64UpDownCounter("varflow.task.active",
		metric.WithDescription("Tasks currently holding an executor slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating varflow.task.active gauge: %w", err)
	}

	taskQueued, err := meter.Int64UpDownCounter("varflow.task.queued",
		metric.WithDescription("Ready tasks waiting for an executor slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating varflow.task.queued gauge: %w", err)
	}

	return &TaskMetrics{
		taskTotal:    taskTotal,
		taskDuration: taskDuration,
		taskActive:   taskActive,
		taskQueued:   taskQueued,
	}, nil
}

// RecordQueued marks a task as waiting for a slot.
func (m *TaskMetrics) RecordQueued(ctx context.Context, process string) {
	m.taskQueued.Add(ctx, 1, metric.WithAttributes(attribute.String("process", process)))
}

// RecordStart moves a task from queued to active.
func (m *TaskMetrics) RecordStart(ctx context.Context, process string) {
	attrs := metric.WithAttributes(attribute.String("process", process))
	m.taskQueued.Add(ctx, -1, attrs)
	m.taskActive.Add(ctx, 1, attrs)
}

// RecordEnd records a finished execution and releases its active count.
func (m *TaskMetrics) RecordEnd(ctx context.Context, process, state string, duration time.Duration) {
	m.taskActive.Add(ctx, -1, metric.WithAttributes(attribute.String("process", process)))
	m.taskTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("process", process),
		attribute.String("state", state),
	))
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("process", process),
	))
}

// RecordAbandoned releases the queued count of a task that never got a slot.
func (m *TaskMetrics) RecordAbandoned(ctx context.Context, process, state string) {
	m.taskQueued.Add(ctx, -1, metric.WithAttributes(attribute.String("process", process)))
	m.taskTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("process", process),
		attribute.String("state", state),
	))
}

// RecordSkipped counts a task that never ran because an input failed.
func (m *TaskMetrics) RecordSkipped(ctx context.Context, process string) {
	m.taskTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("process", process),
		attribute.String("state", "skipped"),
	))
}
