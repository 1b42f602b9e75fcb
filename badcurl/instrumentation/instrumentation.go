// Package instrumentation provides OpenTelemetry tracing and metrics for
// transfers. Traces are exported via OTLP and metrics via a Prometheus
// registry.
//
// Until Init is called every recorder is a no-op.
package instrumentation

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"k8s.io/klog/v2"
)

const (
	ServiceName    = "badcurl"
	ServiceVersion = "0.1.0"
)

// instruments is swapped in whole by Init so recorders never observe a
// half-initialized set.
type instruments struct {
	tracer trace.Tracer

	transferCounter    metric.Int64Counter
	transferDuration   metric.Float64Histogram
	activeTransfers    metric.Int64UpDownCounter
	callbackPanics     metric.Int64Counter
	impersonateCounter metric.Int64Counter
	errorCounter       metric.Int64Counter
}

var current atomic.Pointer[instruments]

func load() *instruments {
	if in := current.Load(); in != nil {
		return in
	}
	return &instruments{tracer: noop.NewTracerProvider().Tracer(ServiceName)}
}

// Config holds instrumentation configuration
type Config struct {
	// OTLPEndpoint is the OTLP/HTTP exporter endpoint (e.g. "localhost:4318").
	// Tracing is disabled when empty.
	OTLPEndpoint string
	// Environment is the deployment environment (e.g. "production")
	Environment string
	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
	// MetricsEnabled enables Prometheus metrics
	MetricsEnabled bool
	// Registerer receives the Prometheus collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer promclient.Registerer
}

// DefaultConfig returns default configuration based on environment
func DefaultConfig() Config {
	env := getEnvOrDefault("ENVIRONMENT", "development")

	sampleRate := 1.0
	if env == "production" || env == "prod" {
		sampleRate = 0.1
	}
	if sr := os.Getenv("OTEL_SAMPLE_RATE"); sr != "" {
		if v, err := strconv.ParseFloat(sr, 64); err == nil && v >= 0 && v <= 1 {
			sampleRate = v
		} else {
			klog.Warningf("ignoring invalid OTEL_SAMPLE_RATE %q", sr)
		}
	}

	return Config{
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Environment:    env,
		SampleRate:     sampleRate,
		MetricsEnabled: os.Getenv("METRICS_ENABLED") != "false",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Init initializes OpenTelemetry tracing and metrics and returns a shutdown
// function flushing both.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res), sdktrace.WithSampler(sampler)}
	if cfg.OTLPEndpoint != "" {
		traceExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			klog.Warningf("Failed to create OTLP trace exporter: %v, continuing without tracing", err)
			tpOpts = append(tpOpts, sdktrace.WithSampler(sdktrace.NeverSample()))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExporter))
		}
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tracerProvider)

	var meterProvider *sdkmetric.MeterProvider
	meter := otel.Meter(ServiceName)
	if cfg.MetricsEnabled {
		reg := cfg.Registerer
		if reg == nil {
			reg = promclient.DefaultRegisterer
		}
		promExporter, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			klog.Warningf("Failed to create Prometheus exporter: %v, continuing without metrics", err)
		} else {
			meterProvider = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(promExporter),
				sdkmetric.WithResource(res),
			)
			meter = meterProvider.Meter(ServiceName)
		}
	}

	in, err := newInstruments(tracerProvider.Tracer(ServiceName), meter)
	if err != nil {
		return nil, err
	}
	current.Store(in)

	klog.V(2).Infof("OpenTelemetry initialized: env=%s, sample_rate=%.2f, metrics=%v, otlp=%q",
		cfg.Environment, cfg.SampleRate, cfg.MetricsEnabled, cfg.OTLPEndpoint)

	return func(ctx context.Context) error {
		current.Store(nil)
		var errs []error
		errs = append(errs, tracerProvider.Shutdown(ctx))
		if meterProvider != nil {
			errs = append(errs, meterProvider.Shutdown(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func newInstruments(tracer trace.Tracer, meter metric.Meter) (*instruments, error) {
	in := &instruments{tracer: tracer}
	var err error

	in.transferCounter, err = meter.Int64Counter(
		"badcurl.transfers.total",
		metric.WithDescription("Total number of performed transfers"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return nil, err
	}

	in.transferDuration, err = meter.Float64Histogram(
		"badcurl.transfer.duration",
		metric.WithDescription("Duration of transfers in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	in.activeTransfers, err = meter.Int64UpDownCounter(
		"badcurl.transfers.active",
		metric.WithDescription("Number of transfers in progress"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return nil, err
	}

	in.callbackPanics, err = meter.Int64Counter(
		"badcurl.callback.panics",
		metric.WithDescription("Panics recovered from transfer callbacks"),
		metric.WithUnit("{panic}"),
	)
	if err != nil {
		return nil, err
	}

	in.impersonateCounter, err = meter.Int64Counter(
		"badcurl.impersonate.total",
		metric.WithDescription("Impersonation profiles applied to handles"),
		metric.WithUnit("{profile}"),
	)
	if err != nil {
		return nil, err
	}

	in.errorCounter, err = meter.Int64Counter(
		"badcurl.errors.total",
		metric.WithDescription("Total failed transfers by error category"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return in, nil
}

// TransferTracer traces one Perform.
type TransferTracer struct {
	in        *instruments
	ctx       context.Context
	span      trace.Span
	startTime time.Time
	profile   string
}

// StartTransfer starts tracing a transfer to url. profile is "" for handles
// without an impersonation profile.
func StartTransfer(ctx context.Context, url, profile string) *TransferTracer {
	in := load()
	ctx, span := in.tracer.Start(ctx, "badcurl.perform",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.URLFull(url),
			attribute.String("badcurl.profile", profile),
		),
	)
	if in.activeTransfers != nil {
		in.activeTransfers.Add(ctx, 1)
	}
	return &TransferTracer{in: in, ctx: ctx, span: span, startTime: time.Now(), profile: profile}
}

// End completes the transfer trace. code is the native status code and
// category its error category ("" on success).
func (tt *TransferTracer) End(statusCode, code int, category string, err error) {
	duration := time.Since(tt.startTime)

	tt.span.SetAttributes(
		semconv.HTTPResponseStatusCode(statusCode),
		attribute.Int("badcurl.code", code),
		attribute.Int64("badcurl.duration_ms", duration.Milliseconds()),
	)
	if err != nil {
		tt.span.RecordError(err)
		tt.span.SetStatus(codes.Error, err.Error())
	} else {
		tt.span.SetStatus(codes.Ok, "")
	}
	tt.span.End()

	in := tt.in
	attrs := metric.WithAttributes(
		attribute.String("profile", tt.profile),
		attribute.Int("status_code", statusCode),
		attribute.Bool("success", err == nil),
	)
	if in.transferCounter != nil {
		in.transferCounter.Add(tt.ctx, 1, attrs)
	}
	if in.transferDuration != nil {
		in.transferDuration.Record(tt.ctx, float64(duration.Microseconds())/1000, attrs)
	}
	if in.activeTransfers != nil {
		in.activeTransfers.Add(tt.ctx, -1)
	}
	if err != nil && in.errorCounter != nil {
		in.errorCounter.Add(tt.ctx, 1, metric.WithAttributes(
			attribute.String("category", category),
			attribute.Int("code", code),
		))
	}
}

// Context returns the span context
func (tt *TransferTracer) Context() context.Context {
	return tt.ctx
}

// RecordCallbackPanic records a panic recovered from a callback.
func RecordCallbackPanic(ctx context.Context, callback string) {
	in := load()
	if in.callbackPanics != nil {
		in.callbackPanics.Add(ctx, 1, metric.WithAttributes(attribute.String("callback", callback)))
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("callback_panic", trace.WithAttributes(attribute.String("callback", callback)))
	}
}

// RecordImpersonate records an impersonation attempt.
func RecordImpersonate(ctx context.Context, profile string, err error) {
	in := load()
	if in.impersonateCounter != nil {
		in.impersonateCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("profile", profile),
			attribute.Bool("success", err == nil),
		))
	}
}
