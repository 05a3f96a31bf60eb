// Package tracing instruments outbound HTTP calls to the services this
// application depends on (file storage, geolocation).
package tracing

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/fonsecaaso/linkdrop/go-server/internal/tracing"

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Api-Key":     true,
}

// loggingTransport wraps a RoundTripper with a client span and a log line per call
type loggingTransport struct {
	base    http.RoundTripper
	logger  *zap.Logger
	service string
}

// NewLoggingTransport wraps http.DefaultTransport. service names the remote
// side in logs and spans.
func NewLoggingTransport(logger *zap.Logger, service string) http.RoundTripper {
	return &loggingTransport{
		base:    http.DefaultTransport,
		logger:  logger.With(zap.String("remote", service)),
		service: service,
	}
}

// NewHTTPClient returns a client using the logging transport.
func NewHTTPClient(logger *zap.Logger, service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewLoggingTransport(logger, service),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(req.Context(), t.service+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.Redacted()),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, resp.Status)
		}
	}
	t.log(req, resp, err, time.Since(start))
	return resp, err
}

func (t *loggingTransport) log(req *http.Request, resp *http.Response, err error, duration time.Duration) {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Duration("duration", duration),
		zap.Any("headers", redact(req.Header)),
	}

	if err != nil {
		t.logger.Warn("Outbound request failed", append(fields, zap.Error(err))...)
		return
	}

	fields = append(fields, zap.Int("status_code", resp.StatusCode))
	switch {
	case resp.StatusCode >= 500:
		t.logger.Error("Outbound request returned server error", fields...)
	case resp.StatusCode >= 400:
		t.logger.Warn("Outbound request returned client error", fields...)
	default:
		t.logger.Debug("Outbound request completed", fields...)
	}
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if redactedHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
