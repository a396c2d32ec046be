package observability

import (
	"context"
	"errors"
	"time"
)

// Config enables OTLP export of traces and metrics.
type Config struct {
	ServiceName    string
	ServiceVersion string
	RunID          string
	Endpoint       string
	Insecure       bool
	SampleRate     float64
	Interval       time.Duration
}

// ShutdownFunc flushes and stops telemetry providers.
type ShutdownFunc func(context.Context) error

// Init installs tracer and meter providers when an endpoint is configured.
// Without one the global no-op providers stay in place.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, TracerConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		RunID:          cfg.RunID,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	mp, err := InitMeter(ctx, MeterConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		RunID:          cfg.RunID,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Interval:       cfg.Interval,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
