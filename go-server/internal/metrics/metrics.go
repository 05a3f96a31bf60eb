package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Application Metrics
	LinkCreationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_creation_total",
			Help: "Total number of link creation attempts",
		},
		[]string{"kind", "status"},
	)

	LinkResolutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_resolution_total",
			Help: "Total number of short code resolutions by outcome",
		},
		[]string{"outcome"},
	)

	LinkDeactivationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_deactivation_total",
			Help: "Total number of links deactivated by the resolver",
		},
		[]string{"reason"},
	)

	ClickRecordTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_record_total",
			Help: "Total number of click recording attempts",
		},
		[]string{"status"},
	)

	GeoLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_lookup_total",
			Help: "Total number of geolocation lookups by source",
		},
		[]string{"source"},
	)

	FileStoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_requests_total",
			Help: "Total number of requests to the file storage service",
		},
		[]string{"operation", "status"},
	)

	// Database Metrics
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines_count",
			Help: "Number of goroutines",
		},
	)
)

// StartCollector samples pool and runtime gauges until ctx is done
func StartCollector(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(pool)
			}
		}
	}()
}

func collect(pool *pgxpool.Pool) {
	GoRoutines.Set(float64(runtime.NumGoroutine()))

	if pool == nil {
		return
	}
	stat := pool.Stat()
	DBConnectionsInUse.Set(float64(stat.AcquiredConns()))
	DBConnectionsIdle.Set(float64(stat.IdleConns()))
}

// RecordHTTPMetrics records metrics for an HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration, responseSize int64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}
