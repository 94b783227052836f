package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/ahmed20kamel/project-management-api/internal/http"

// HTTPMetrics records per-route request metrics and the bytes moved by file
// uploads and downloads.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	transfer metric.Int64Counter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider. An
// instrument that cannot be created is replaced by a no-op and logged.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newHTTPMetrics(otel.Meter(httpInstrumentationName))
	if err != nil {
		logger.Warn("some http instruments are unavailable", zap.Error(err))
	}
	return m
}

func newHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: noop.Int64Counter{},
		duration: noop.Float64Histogram{},
		inFlight: noop.Int64UpDownCounter{},
		transfer: noop.Int64Counter{},
	}
	var errs []error

	if c, err := meter.Int64Counter("pmapi.http.requests_total",
		metric.WithDescription("HTTP requests by method, route template and status."),
		metric.WithUnit("{request}"),
	); err != nil {
		errs = append(errs, err)
	} else {
		m.requests = c
	}

	if h, err := meter.Float64Histogram("pmapi.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route template and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		errs = append(errs, err)
	} else {
		m.duration = h
	}

	if g, err := meter.Int64UpDownCounter("pmapi.http.active_requests",
		metric.WithDescription("Requests currently being served."),
		metric.WithUnit("{request}"),
	); err != nil {
		errs = append(errs, err)
	} else {
		m.inFlight = g
	}

	if c, err := meter.Int64Counter("pmapi.http.file_transfer_bytes",
		metric.WithDescription("Bytes of project files uploaded or downloaded, by direction and route template."),
		metric.WithUnit("By"),
	); err != nil {
		errs = append(errs, err)
	} else {
		m.transfer = c
	}

	return m, errors.Join(errs...)
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			err := next(c)

			route := normalizePath(c.Path())
			status := responseStatus(c, err)
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", route),
				attribute.Int("status", status),
			)
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)

			if dir, n := fileTransfer(c, route, status); n > 0 {
				m.transfer.Add(ctx, n, metric.WithAttributes(
					attribute.String("direction", dir),
					attribute.String("endpoint", route),
				))
			}
			return err
		}
	}
}

// fileTransfer reports the bytes moved by a successful download or
// attachment upload. Other requests report zero.
func fileTransfer(c echo.Context, route string, status int) (direction string, n int64) {
	switch {
	case status == http.StatusOK && strings.HasPrefix(route, filesPrefix):
		return "download", c.Response().Size
	case status == http.StatusCreated && c.Request().Method == http.MethodPost && strings.HasSuffix(route, "/attachments"):
		return "upload", c.Request().ContentLength
	}
	return "", 0
}

// normalizePath returns the label used for a route. echo reports the
// registered template (/api/v1/projects/:id), so IDs never reach the label
// set. Requests that matched no route share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
