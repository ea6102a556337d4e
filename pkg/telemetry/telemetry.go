// Package telemetry exports scan metrics over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultInterval is how often metrics are pushed.
const DefaultInterval = 10 * time.Second

// Config selects the OTLP collector.
type Config struct {
	// Endpoint is host:port of an OTLP gRPC collector. Empty disables export.
	Endpoint string
	// Insecure disables TLS to the collector.
	Insecure bool
	// Interval between pushes. Zero means DefaultInterval.
	Interval time.Duration
	// Service is reported as service.name.
	Service string
	// Version is reported as service.version.
	Version string
}

// Shutdown flushes pending metrics and stops the exporter.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a global meter provider that pushes to cfg.Endpoint and
// returns its shutdown function. With no endpoint it changes nothing.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noop, nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Service == "" {
		cfg.Service = "sieve"
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.Service),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return noop, fmt.Errorf("building resource: %w", err)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit, opts...)
	if err != nil {
		return noop, fmt.Errorf("creating metrics exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", "endpoint", cfg.Endpoint, "interval", cfg.Interval)
	return mp.Shutdown, nil
}
