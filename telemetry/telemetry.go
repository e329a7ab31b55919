// Package telemetry provides a simple way to set up OpenTelemetry SDK.
//
// nolint: ireturn
package telemetry

import (
	"context"
	"errors"
	"os"

	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Option is a function that configures the OTEL SDK.
type Option func(*options)

type options struct {
	stdout         bool
	otlp           bool
	prometheus     bool
	serviceName    string
	serviceVersion string
	traceExporter  trace.SpanExporter
	metricExporter metric.Exporter
	metricReader   metric.Reader
}

// WithStdout sets the exporters to stdout.
func WithStdout() Option {
	return func(o *options) {
		o.stdout = true
	}
}

// WithOTLP enables the OTLP gRPC exporters. They are configured with the
// standard OTEL_EXPORTER_OTLP_* environment variables.
func WithOTLP() Option {
	return func(o *options) {
		o.otlp = true
	}
}

// WithPrometheus registers a Prometheus reader on the default registerer.
func WithPrometheus() Option {
	return func(o *options) {
		o.prometheus = true
	}
}

// WithService sets the service name and version of the resource.
func WithService(name, version string) Option {
	return func(o *options) {
		o.serviceName = name
		o.serviceVersion = version
	}
}

// WithTraceExporter sets the trace exporter.
func WithTraceExporter(exporter trace.SpanExporter) Option {
	return func(o *options) {
		o.traceExporter = exporter
	}
}

// WithMetricExporter sets the metric exporter.
func WithMetricExporter(exporter metric.Exporter) Option {
	return func(o *options) {
		o.metricExporter = exporter
	}
}

// WithMetricReader sets the metric reader.
func WithMetricReader(reader metric.Reader) Option {
	return func(o *options) {
		o.metricReader = reader
	}
}

func applyOptions(opts []Option) *options {
	opt := &options{
		serviceName: "gst-transcode",
	}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// OTLPEnabled reports whether an OTLP endpoint is configured in the environment.
func OTLPEnabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") != ""
}

// SetupOTELSDK sets up the OpenTelemetry SDK and initializes the metrics
// instruments on the new meter provider.
func SetupOTELSDK(
	ctx context.Context,
	opts ...Option,
) (
	shutdown func(context.Context) error,
	err error,
) {
	o := applyOptions(opts)
	var shutdownFuncs []func(context.Context) error

	// shutdown calls cleanup functions registered via shutdownFuncs.
	// The errors from the calls are joined.
	// Each registered cleanup will be invoked once.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	// handleErr calls shutdown for cleanup and makes sure that all errors are returned.
	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", o.serviceName),
		attribute.String("service.version", o.serviceVersion),
	)

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTraceProvider(ctx, o, res)
	if err != nil {
		handleErr(err)
		return
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	meterProvider, err := newMeterProvider(ctx, o, res)
	if err != nil {
		handleErr(err)
		return
	}
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)
	metrics.InitMetrics(meterProvider)

	return
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceProvider(
	ctx context.Context,
	o *options,
	res *resource.Resource,
) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	if o.stdout {
		traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(traceExporter))
	}
	if o.otlp {
		traceExporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(traceExporter))
	}
	if o.traceExporter != nil {
		opts = append(opts, trace.WithBatcher(o.traceExporter))
	}
	return trace.NewTracerProvider(opts...), nil
}

func newMeterProvider(
	ctx context.Context,
	o *options,
	res *resource.Resource,
) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(res)}
	if o.stdout {
		metricExporter, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	}
	if o.otlp {
		metricExporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	}
	if o.prometheus {
		reader, err := otelprometheus.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, metric.WithReader(reader))
	}
	if o.metricExporter != nil {
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(o.metricExporter)))
	}
	if o.metricReader != nil {
		opts = append(opts, metric.WithReader(o.metricReader))
	}
	return metric.NewMeterProvider(opts...), nil
}
