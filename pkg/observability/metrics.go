package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics with Prometheus export.
// It aggregates run-level simulation telemetry; per-block counters stay
// inside the kernel and are flushed here once per completed run.
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	runsTotal         metric.Int64Counter
	runDuration       metric.Float64Histogram
	liquidationsTotal metric.Int64Counter
	badDebtTotal      metric.Float64Counter
	breakerTrips      metric.Int64Counter
	haltBlocks        metric.Int64Counter
	verdictsTotal     metric.Int64Counter
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(cfg.ServiceName),
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	mp.runsTotal, err = mp.meter.Int64Counter(
		"scenario_runs_total",
		metric.WithDescription("Total number of scenario runs completed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create scenario_runs_total counter: %w", err)
	}

	mp.runDuration, err = mp.meter.Float64Histogram(
		"scenario_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of scenario runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return fmt.Errorf("failed to create scenario_run_duration histogram: %w", err)
	}

	mp.liquidationsTotal, err = mp.meter.Int64Counter(
		"liquidations_total",
		metric.WithDescription("Total vault liquidations across all runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create liquidations_total counter: %w", err)
	}

	mp.badDebtTotal, err = mp.meter.Float64Counter(
		"bad_debt_zai_total",
		metric.WithDescription("Total socialized bad debt in ZAI across all runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bad_debt_zai_total counter: %w", err)
	}

	mp.breakerTrips, err = mp.meter.Int64Counter(
		"breaker_trips_total",
		metric.WithDescription("Total circuit breaker trips across all runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create breaker_trips_total counter: %w", err)
	}

	mp.haltBlocks, err = mp.meter.Int64Counter(
		"halt_blocks_total",
		metric.WithDescription("Total blocks spent halted across all runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create halt_blocks_total counter: %w", err)
	}

	mp.verdictsTotal, err = mp.meter.Int64Counter(
		"verdicts_total",
		metric.WithDescription("Run verdicts by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create verdicts_total counter: %w", err)
	}

	return nil
}

// RecordRun flushes the aggregate telemetry of one completed scenario run.
func (mp *MetricsProvider) RecordRun(ctx context.Context, scenario, verdict string, durationSeconds float64, liquidations int64, badDebt float64, breakerTrips int64, haltBlocks int64) {
	if mp.runsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scenario", scenario),
		attribute.String("verdict", verdict),
	)
	mp.runsTotal.Add(ctx, 1, attrs)
	mp.runDuration.Record(ctx, durationSeconds, attrs)
	mp.liquidationsTotal.Add(ctx, liquidations, attrs)
	mp.badDebtTotal.Add(ctx, badDebt, attrs)
	mp.breakerTrips.Add(ctx, breakerTrips, attrs)
	mp.haltBlocks.Add(ctx, haltBlocks, attrs)
	mp.verdictsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// Handler returns the Prometheus scrape handler for the registry.
func (mp *MetricsProvider) Handler() http.Handler {
	if mp.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
