package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"

	"github.com/wes-dispatch/wes-dispatch/internal/config"
)

const (
	ServiceName = "wes-dispatch"

	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

type ShutdownFunc func(ctx context.Context) error

// Providers holds what Setup installed. LoggerProvider is nil unless log export is enabled.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider otellog.LoggerProvider
	Shutdown       ShutdownFunc
}

// Setup installs the global tracer provider and propagators. With tracing disabled
// nothing is installed and the global no-op provider stays in place.
func Setup(ctx context.Context, logger *slog.Logger, tracingConfig *config.TracingConfig, version string) (*Providers, error) {
	providers := &Providers{Shutdown: func(context.Context) error { return nil }}
	if tracingConfig == nil || !tracingConfig.Enabled {
		logger.Info("Tracing is disabled")
		return providers, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)

	exporter, err := newSpanExporter(ctx, tracingConfig, version)
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	providers.TracerProvider = tracerProvider
	shutdowns := []ShutdownFunc{tracerProvider.Shutdown}

	if tracingConfig.Logs {
		logExporter, err := stdoutlog.New()
		if err != nil {
			return nil, errors.Join(err, tracerProvider.Shutdown(ctx))
		}
		loggerProvider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		providers.LoggerProvider = loggerProvider
		shutdowns = append(shutdowns, loggerProvider.Shutdown)
	}

	providers.Shutdown = func(ctx context.Context) error {
		var err error
		for _, shutdown := range shutdowns {
			err = errors.Join(err, shutdown(ctx))
		}
		return err
	}
	logger.Info("Tracing is enabled", "exporter", tracingConfig.Exporter, "endpoint", tracingConfig.Endpoint, "logs", tracingConfig.Logs)
	return providers, nil
}

func newSpanExporter(ctx context.Context, tracingConfig *config.TracingConfig, version string) (sdktrace.SpanExporter, error) {
	switch tracingConfig.Exporter {
	case "", ExporterStdout:
		return stdouttrace.New()
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if tracingConfig.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(tracingConfig.Endpoint))
		}
		if tracingConfig.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(ServiceName + "/" + version)),
		}
		if tracingConfig.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(tracingConfig.Endpoint))
		}
		if tracingConfig.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", tracingConfig.Exporter)
	}
}
