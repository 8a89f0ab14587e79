package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"io"
	"sync"
	"time"

	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"

	"github.com/benz9527/xpool/lib/infra"
)

type MetricsExporterKind uint8

const (
	ConsoleMetricsExporter MetricsExporterKind = iota
	PrometheusMetricsExporter
)

const (
	defaultExportInterval = 10 * time.Second
	defaultExportTimeout  = 5 * time.Second
)

type exporterCfg struct {
	writer         io.Writer
	interval       time.Duration
	timeout        time.Duration
	runtimeMetrics bool
}

type MetricsExporterOption func(cfg *exporterCfg)

// WithConsoleWriter redirects the console exporter output, os.Stdout by default.
func WithConsoleWriter(w io.Writer) MetricsExporterOption {
	return func(cfg *exporterCfg) {
		cfg.writer = w
	}
}

func WithExportInterval(interval, timeout time.Duration) MetricsExporterOption {
	return func(cfg *exporterCfg) {
		cfg.interval = interval
		cfg.timeout = timeout
	}
}

// WithRuntimeMetrics exports the go runtime (heap, gc, goroutines) metrics
// alongside, the pool capacity is better read with the heap usage.
func WithRuntimeMetrics() MetricsExporterOption {
	return func(cfg *exporterCfg) {
		cfg.runtimeMetrics = true
	}
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(cfg *exporterCfg) (*metric.MeterProvider, error) {
	opts := make([]stdoutmetric.Option, 0, 2)
	if cfg.writer != nil {
		opts = append(opts, stdoutmetric.WithWriter(cfg.writer))
	}
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(cfg.interval),
		metric.WithTimeout(cfg.timeout),
	))), nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
func newPrometheusMetricsExporter() (*metric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(metric.WithReader(exporter)), nil
}

// InitMetricsExporter installs the global otel meter provider, which the
// list pool stats are recorded by.
// The provider is flushed and shut down once ctx is done, or by the
// returned callback, whichever comes first.
func InitMetricsExporter(
	ctx context.Context,
	kind MetricsExporterKind,
	opts ...MetricsExporterOption,
) (func(ctx context.Context) error, error) {
	cfg := &exporterCfg{
		interval: defaultExportInterval,
		timeout:  defaultExportTimeout,
	}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}

	var (
		mp  *metric.MeterProvider
		err error
	)
	switch kind {
	case ConsoleMetricsExporter:
		mp, err = newConsoleMetricsExporter(cfg)
	case PrometheusMetricsExporter:
		mp, err = newPrometheusMetricsExporter()
	default:
		return nil, infra.NewErrorStack("[observability] unknown metrics exporter")
	}
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] metrics exporter init failed")
	}
	if cfg.runtimeMetrics {
		if err = otelruntime.Start(
			otelruntime.WithMeterProvider(mp),
			otelruntime.WithMinimumReadMemStatsInterval(cfg.interval),
		); err != nil {
			return nil, infra.WrapErrorStackWithMessage(
				multierr.Append(err, mp.Shutdown(context.Background())),
				"[observability] runtime metrics init failed",
			)
		}
	}
	otel.SetMeterProvider(mp)

	var (
		once        sync.Once
		shutdownErr error
	)
	shutdown := func(ctx context.Context) error {
		once.Do(func() {
			shutdownErr = mp.Shutdown(ctx)
		})
		return shutdownErr
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			if err := shutdown(context.Background()); err != nil {
				otel.Handle(err)
			}
		}()
	}
	return shutdown, nil
}
