package observability

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability/logger"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the tracer provider and both metric
// registries: OTLP instruments (*metrics.Metrics) and the prometheus
// processing counters served on /metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.logger,
		logger.New,
		Config.tracing,
		tracing.NewProvider,
		Config.metrics,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(
		func(*sdktrace.TracerProvider) {},
		func(cfg metrics.Config) { metrics.ProcessingWithConfig(cfg) },
	),
)

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		NodeID:              c.NodeID,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		Sampling:            c.LogSampling,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Otel.Enabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Otel.Endpoint,
		ExporterProtocol: c.Otel.Protocol,
		SamplingRatio:    c.Otel.SamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Otel.Enabled,
		ExporterEndpoint: c.Otel.Endpoint,
		ExporterProtocol: c.Otel.Protocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
