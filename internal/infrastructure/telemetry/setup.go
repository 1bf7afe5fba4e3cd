// Package telemetry wires OpenTelemetry tracing, metrics and logs plus Pyroscope profiling.
// Every signal that is switched off degrades to the global no-op implementation.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceVersion is reported on every exported span, metric and log record
var ServiceVersion = "dev"

const defaultMetricsInterval = time.Minute

// Settings selects which signals are exported and where.
// Traces, metrics and logs share one OTLP gRPC collector.
type Settings struct {
	ServiceName       string
	CollectorEndpoint string
	Insecure          bool

	Traces        bool
	SamplingRatio float64

	Metrics         bool
	MetricsInterval time.Duration

	Logs bool

	Profiling    bool
	PyroscopeURL string
}

// Telemetry owns the providers started by Setup
type Telemetry struct {
	serviceName string
	logger      *zap.Logger

	tracer   *sdktrace.TracerProvider
	meter    *sdkmetric.MeterProvider
	logs     *sdklog.LoggerProvider
	profiler *pyroscope.Profiler
}

// Setup starts the enabled signals and installs them as the otel globals.
// When profiling and tracing both run, spans are linked to CPU profiles.
// On error everything already started is shut down again.
func Setup(ctx context.Context, s Settings, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{serviceName: s.ServiceName, logger: logger}

	if err := t.start(ctx, s); err != nil {
		_ = t.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info("Telemetry configured",
		zap.String("collector_endpoint", s.CollectorEndpoint),
		zap.Bool("traces", t.TracingEnabled()),
		zap.Bool("metrics", t.MetricsEnabled()),
		zap.Bool("logs", t.logs != nil),
		zap.Bool("profiling", t.ProfilingEnabled()),
	)
	return t, nil
}

func (t *Telemetry) start(ctx context.Context, s Settings) error {
	if s.Profiling {
		if err := t.startProfiler(s); err != nil {
			return err
		}
	}
	if !s.Traces && !s.Metrics && !s.Logs {
		return nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(s.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	if s.Traces {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.CollectorEndpoint)}
		if s.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		t.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(s.SamplingRatio)),
		)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		if t.profiler != nil {
			otel.SetTracerProvider(otelpyroscope.NewTracerProvider(t.tracer))
		} else {
			otel.SetTracerProvider(t.tracer)
		}
	}

	if s.Metrics {
		interval := s.MetricsInterval
		if interval <= 0 {
			interval = defaultMetricsInterval
		}
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(s.CollectorEndpoint)}
		if s.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("metric exporter: %w", err)
		}
		t.meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(t.meter)
	}

	if s.Logs {
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(s.CollectorEndpoint)}
		if s.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		exporter, err := otlploggrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("log exporter: %w", err)
		}
		t.logs = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		)
		global.SetLoggerProvider(t.logs)
	}
	return nil
}

func (t *Telemetry) startProfiler(s Settings) error {
	if s.PyroscopeURL == "" {
		return errors.New("profiling enabled without a pyroscope server address")
	}
	if s.ServiceName == "" {
		return errors.New("profiling enabled without a service name")
	}
	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		tags["hostname"] = hostname
	}
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: s.ServiceName,
		ServerAddress:   s.PyroscopeURL,
		Logger:          pyroscopeLogger{t.logger.Named("pyroscope").Sugar()},
		Tags:            tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return fmt.Errorf("start pyroscope: %w", err)
	}
	t.profiler = p
	return nil
}

// sampler respects the parent decision and samples new roots by ratio
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func (t *Telemetry) TracingEnabled() bool   { return t.tracer != nil }
func (t *Telemetry) MetricsEnabled() bool   { return t.meter != nil }
func (t *Telemetry) ProfilingEnabled() bool { return t.profiler != nil }

// Meter returns a meter from the exporting provider, or from the global one when metrics are off
func (t *Telemetry) Meter(name string) metric.Meter {
	if t.meter == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return t.meter.Meter(name)
}

// LogCore returns a zap core forwarding entries at or above minLevel over OTLP,
// or nil when log export is off. Pass it as an extra core to logger.New.
func (t *Telemetry) LogCore(minLevel zapcore.Level) zapcore.Core {
	if t == nil || t.logs == nil {
		return nil
	}
	core := otelzap.NewCore(t.serviceName, otelzap.WithLoggerProvider(t.logs))
	return &levelFilterCore{Core: core, minLevel: minLevel}
}

// Shutdown flushes and stops every started signal, each within ten seconds
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	if t.meter != nil {
		errs = append(errs, t.meter.Shutdown(ctx))
	}
	if t.logs != nil {
		errs = append(errs, t.logs.Shutdown(ctx))
	}
	if t.profiler != nil {
		errs = append(errs, t.profiler.Stop())
	}
	t.tracer, t.meter, t.logs, t.profiler = nil, nil, nil, nil
	return errors.Join(errs...)
}

// levelFilterCore adds a minimum level to the otelzap core, which has none of its own
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}

type pyroscopeLogger struct {
	*zap.SugaredLogger
}
