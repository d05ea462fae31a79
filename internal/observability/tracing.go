// Package observability wires OpenTelemetry tracing for the service.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/okian/roofline/internal/config"
	"github.com/okian/roofline/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Option configures InitTracing.
type Option func(*options)

type options struct {
	stdout io.Writer
}

// WithStdoutWriter redirects the stdout exporter.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stdout = w
		}
	}
}

// InitTracing installs a global tracer provider for cfg. Disabled tracing
// installs a noop provider.
func InitTracing(ctx context.Context, cfg config.Tracing, log logger.Logger, opts ...Option) (ShutdownFunc, error) {
	if log == nil {
		log = logger.Noop()
	}
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.namespace", "roofline"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logger.String("exporter", cfg.Exporter),
		logger.String("service_name", cfg.ServiceName),
		logger.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg config.Tracing, o options) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(o.stdout),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout runs shutdown with a bounded timeout and logs failures.
func ShutdownWithTimeout(ctx context.Context, shutdown ShutdownFunc, log logger.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logger.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logger.Error(err))
	}
}
