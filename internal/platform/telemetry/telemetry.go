// Package telemetry wires OpenTelemetry tracing and metrics for the clinic
// server. Metrics are exported in Prometheus text format on /metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
)

const instrumentationName = "github.com/clinic/clinic/internal/platform/telemetry"

// TraceIDHeader carries the request's trace id back to the client.
const TraceIDHeader = "X-Trace-Id"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Provider owns the tracer and meter providers and the Prometheus registry
// they export to.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
	propagator     propagation.TextMapPropagator

	tracer        trace.Tracer
	requests      metric.Int64Counter
	duration      metric.Float64Histogram
	authFailures  metric.Int64Counter
	accessDenials metric.Int64Counter
}

func New(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "clinic-server"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	p := &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		registry:       registry,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		tracer: tp.Tracer(instrumentationName),
	}

	meter := mp.Meter(instrumentationName)
	if p.requests, err = meter.Int64Counter("clinic.http.requests",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	if p.duration, err = meter.Float64Histogram("clinic.http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if p.authFailures, err = meter.Int64Counter("clinic.auth.failures",
		metric.WithDescription("Rejected logins and unauthenticated requests")); err != nil {
		return nil, fmt.Errorf("create auth failure counter: %w", err)
	}
	if p.accessDenials, err = meter.Int64Counter("clinic.access.denials",
		metric.WithDescription("Requests for missing or foreign patients and records")); err != nil {
		return nil, fmt.Errorf("create access denial counter: %w", err)
	}

	return p, nil
}

// RegisterPoolStats exports the database pool statistics as gauges.
func (p *Provider) RegisterPoolStats(stats func() *db.PoolStats) error {
	meter := p.MeterProvider.Meter(instrumentationName)

	total, err := meter.Int64ObservableGauge("clinic.db.pool.connections",
		metric.WithDescription("Open database connections"))
	if err != nil {
		return fmt.Errorf("create pool gauge: %w", err)
	}
	acquired, err := meter.Int64ObservableGauge("clinic.db.pool.acquired",
		metric.WithDescription("Database connections in use"))
	if err != nil {
		return fmt.Errorf("create pool gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(total, int64(s.TotalConns))
		o.ObserveInt64(acquired, int64(s.AcquiredConns))
		return nil
	}, total, acquired)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}

// Handler serves the Prometheus exposition of every registered metric.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// Middleware opens a server span per request and records request metrics.
// It must run inside the logger so it sees handler errors unconverted.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			ctx := p.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := p.tracer.Start(ctx, req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				c.Response().Header().Set(TraceIDHeader, sc.TraceID().String())
			}
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			status := c.Response().Status
			if err != nil {
				status = middleware.StatusFor(err)
				span.RecordError(err)
			}
			span.SetAttributes(attribute.Int("http.status_code", status))

			attrs := metric.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", route),
				attribute.String("http.status_code", strconv.Itoa(status)),
			)
			p.requests.Add(ctx, 1, attrs)
			p.duration.Record(ctx, elapsed, attrs)

			switch {
			case errors.Is(err, apperr.ErrInvalidCredentials):
				p.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_credentials")))
			case errors.Is(err, apperr.ErrUnauthenticated):
				p.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "no_session")))
			case errors.Is(err, apperr.ErrNotFoundOrUnauthorized):
				p.accessDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("http.route", route)))
			}

			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
