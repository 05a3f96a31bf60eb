package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/config"
	"github.com/fonsecaaso/linkdrop/go-server/internal/logger"
)

const (
	spanBatchTimeout = 5 * time.Second
	metricInterval   = 30 * time.Second
	exportTimeout    = 10 * time.Second
)

// Observability holds the process logger, the /metrics handler and the
// shutdown hooks of every exporter.
type Observability struct {
	Logger         *zap.Logger
	MetricsHandler http.Handler
	Status         Status

	shutdowns []namedShutdown
}

type Status struct {
	TracingEnabled bool
	OTLPMetrics    bool
	LokiEnabled    bool
}

type namedShutdown struct {
	name string
	fn   func(context.Context) error
}

// Shutdown flushes exporters in reverse start order. The logger goes last so
// exporter errors still reach it.
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(o.shutdowns) - 1; i >= 0; i-- {
		s := o.shutdowns[i]
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Setup installs the global logger, tracer provider and meter provider.
// Tracing and OTLP metric push are enabled only when an OTLP endpoint is
// configured; the Prometheus pull endpoint is always available.
func Setup(ctx context.Context, cfg *config.Config) (*Observability, error) {
	obs := &Observability{}

	log, loggerShutdown, err := logger.New(logger.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LokiURL:     cfg.LokiURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	zap.ReplaceGlobals(log)
	obs.Logger = log
	obs.Status.LokiEnabled = cfg.LokiURL != ""
	obs.shutdowns = append(obs.shutdowns, namedShutdown{"logger", loggerShutdown})

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.OTLPEndpoint != "" {
		tracerShutdown, err := initTracing(ctx, res, cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		obs.shutdowns = append(obs.shutdowns, namedShutdown{"tracer", tracerShutdown})
		obs.Status.TracingEnabled = true
	}

	meterShutdown, handler, err := initMetrics(ctx, res, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	obs.shutdowns = append(obs.shutdowns, namedShutdown{"meter", meterShutdown})
	obs.MetricsHandler = handler
	obs.Status.OTLPMetrics = cfg.OTLPEndpoint != ""

	log.Info("Observability initialized",
		zap.Bool("tracing", obs.Status.TracingEnabled),
		zap.Bool("otlp_metrics", obs.Status.OTLPMetrics),
		zap.Bool("loki", obs.Status.LokiEnabled),
	)
	return obs, nil
}

func initTracing(ctx context.Context, res *resource.Resource, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(stripProtocol(endpoint)),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(spanBatchTimeout),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tracerProvider)

	zap.L().Info("OTLP trace exporter initialized", zap.String("endpoint", endpoint))
	return tracerProvider.Shutdown, nil
}

// initMetrics serves OpenTelemetry and promauto metrics from one handler and
// pushes OpenTelemetry metrics over OTLP when an endpoint is set.
func initMetrics(ctx context.Context, res *resource.Resource, endpoint string) (func(context.Context) error, http.Handler, error) {
	registry := prometheus.NewRegistry()
	pull, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	opts := []metric.Option{
		metric.WithResource(res),
		metric.WithReader(pull),
	}

	if endpoint != "" {
		push, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(stripProtocol(endpoint)),
			otlpmetrichttp.WithInsecure(),
			otlpmetrichttp.WithTimeout(exportTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(push, metric.WithInterval(metricInterval))))
	}

	meterProvider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	handler := promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, registry},
		promhttp.HandlerOpts{},
	)
	return meterProvider.Shutdown, handler, nil
}

// stripProtocol reduces an endpoint to host:port. OTLP exporters append
// the signal paths themselves.
func stripProtocol(endpoint string) string {
	endpoint = strings.TrimSpace(strings.Trim(endpoint, `"`))

	if !strings.Contains(endpoint, "://") {
		host, _, _ := strings.Cut(endpoint, "/")
		return host
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		_, rest, _ := strings.Cut(endpoint, "://")
		host, _, _ := strings.Cut(rest, "/")
		return host
	}
	return parsed.Host
}
