package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 15 * time.Second

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the OTLP instruments of a discount run. A nil *Metrics is
// valid and records nothing, so collaborators can take it as optional.
type Metrics struct {
	occCalls         metric.Int64Counter
	grantedAmount    metric.Float64Counter
	contractOutcomes metric.Int64Counter
	runs             metric.Int64Counter
	runDuration      metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics.otlp.enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", exportInterval),
		)
	}

	return provider, nil
}

// New creates the discount instruments on a meter named after the service.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dyndisc"
	}
	meter := provider.Meter(name)

	var (
		m    Metrics
		errs []error
		err  error
	)
	m.occCalls, err = meter.Int64Counter("dyndisc.occ.calls",
		metric.WithDescription("Billing adjustment attempts by discount type and outcome."))
	errs = append(errs, err)
	m.grantedAmount, err = meter.Float64Counter("dyndisc.occ.granted_amount",
		metric.WithDescription("Sum of discount amounts posted as OCCs."))
	errs = append(errs, err)
	m.contractOutcomes, err = meter.Int64Counter("dyndisc.contract.outcomes",
		metric.WithDescription("Contracts reaching a final status, by bill cycle."))
	errs = append(errs, err)
	m.runs, err = meter.Int64Counter("dyndisc.runs",
		metric.WithDescription("Coordinator runs by mode and action."))
	errs = append(errs, err)
	m.runDuration, err = meter.Float64Histogram("dyndisc.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of a coordinator run."))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return &m, nil
}

// RecordOCC counts one billing adjustment attempt and, when created, adds
// the granted amount.
func (m *Metrics) RecordOCC(ctx context.Context, discountType, outcome string, amount float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("discount_type", discountType),
		attribute.String("outcome", outcome),
	)...)
	m.occCalls.Add(ctx, 1, attrs)
	if outcome == OutcomeCreated && amount > 0 {
		m.grantedAmount.Add(ctx, amount, attrs)
	}
}

// RecordContractOutcome counts a final contract status of billCycle.
func (m *Metrics) RecordContractOutcome(ctx context.Context, billCycle, status string) {
	if m == nil {
		return
	}
	m.contractOutcomes.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("bill_cycle", billCycle),
		attribute.String("status", status),
	)...))
}

// RecordRun counts a finished coordinator run and its duration.
func (m *Metrics) RecordRun(ctx context.Context, mode, action string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("mode", mode),
		attribute.String("action", action),
	)...)
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

const (
	OutcomeCreated = "created"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var allowedLabelKeys = map[attribute.Key]struct{}{
	"discount_type": {},
	"outcome":       {},
	"status":        {},
	"bill_cycle":    {},
	"mode":          {},
	"action":        {},
}

// FilterAttributes keeps only the allowed low-cardinality keys. Contract and
// customer ids never become metric labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
