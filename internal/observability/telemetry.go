// Package observability sets up OpenTelemetry tracing and metrics. Metrics
// are exported through the Prometheus exporter and served by promhttp.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// Telemetry holds the providers and instruments of the process.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	logger         *zap.Logger

	// HTTP
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ErrorCounter    metric.Int64Counter

	// Store
	SearchCounter    metric.Int64Counter
	SearchDuration   metric.Float64Histogram
	AttemptDuration  metric.Float64Histogram
	CacheHitCounter  metric.Int64Counter
	CacheMissCounter metric.Int64Counter
	DBQueryDuration  metric.Float64Histogram
}

// Config selects the exporters. An empty OTLPEndpoint keeps spans in process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64

	// Registerer receives the Prometheus collector; the default registerer when nil.
	Registerer prometheus.Registerer
}

// InitTelemetry builds the providers, installs them globally and creates every instrument.
func InitTelemetry(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := initTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}

	meterProvider, err := initMeterProvider(cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(cfg.ServiceName),
		Meter:          meterProvider.Meter(cfg.ServiceName),
		logger:         logger,
	}

	if err := t.createInstruments(); err != nil {
		return nil, err
	}

	logger.Info("telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.Bool("otlp", cfg.OTLPEndpoint != ""))

	return t, nil
}

func (t *Telemetry) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&t.RequestCounter, "http_requests_total", "Total number of HTTP requests"},
		{&t.ErrorCounter, "errors_total", "Total number of errors"},
		{&t.SearchCounter, "weather_searches_total", "Finished weather searches by provider and outcome"},
		{&t.CacheHitCounter, "weather_cache_hits_total", "Weather cache hits"},
		{&t.CacheMissCounter, "weather_cache_misses_total", "Weather cache misses"},
	}

	for _, c := range counters {
		counter, err := t.Meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}

		*c.target = counter
	}

	histograms := []struct {
		target      *metric.Float64Histogram
		name        string
		description string
	}{
		{&t.RequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&t.SearchDuration, "weather_search_duration_seconds", "Weather search duration in seconds"},
		{&t.AttemptDuration, "weather_attempt_duration_seconds", "Single provider attempt duration in seconds"},
		{&t.DBQueryDuration, "db_query_duration_seconds", "Database query duration in seconds"},
	}

	for _, h := range histograms {
		histogram, err := t.Meter.Float64Histogram(h.name, metric.WithDescription(h.description), metric.WithUnit("s"))
		if err != nil {
			return fmt.Errorf("failed to create histogram %s: %w", h.name, err)
		}

		*h.target = histogram
	}

	return nil
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptrace.New(
			ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		options = append(options, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(options...), nil
}

func initMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var options []otelprom.Option
	if cfg.Registerer != nil {
		options = append(options, otelprom.WithRegisterer(cfg.Registerer))
	}

	exporter, err := otelprom.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}

// RecordRequest records one served HTTP request.
func (t *Telemetry) RecordRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)

	t.RequestCounter.Add(ctx, 1, attrs)
	t.RequestDuration.Record(ctx, duration.Seconds(), attrs)

	if statusCode >= 500 {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "http")))
	}
}

// RecordSearch records a finished search.
func (t *Telemetry) RecordSearch(ctx context.Context, provider domain.Provider, outcome domain.SearchOutcome, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("outcome", string(outcome)),
	)

	t.SearchCounter.Add(ctx, 1, attrs)
	t.SearchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAttempt records one provider call made by the retry loop.
func (t *Telemetry) RecordAttempt(ctx context.Context, provider domain.Provider, duration time.Duration, err error) {
	t.AttemptDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("code", attemptCode(err)),
	))

	if err != nil {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "provider"),
			attribute.String("provider", string(provider)),
		))
	}
}

// RecordCacheHit counts a cache hit for provider.
func (t *Telemetry) RecordCacheHit(ctx context.Context, provider domain.Provider) {
	t.CacheHitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", string(provider))))
}

// RecordCacheMiss counts a cache miss for provider.
func (t *Telemetry) RecordCacheMiss(ctx context.Context, provider domain.Provider) {
	t.CacheMissCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", string(provider))))
}

// RecordDBQuery records a database call.
func (t *Telemetry) RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	t.DBQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	))

	if err != nil {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "database"),
			attribute.String("operation", operation),
		))
	}
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}

func attemptCode(err error) string {
	if err == nil {
		return "OK"
	}

	return domain.ErrorCode(err)
}
