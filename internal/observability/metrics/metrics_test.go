package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("discount_type", "offer"),
		attribute.String("co_id", "456"),
		attribute.String("outcome", "created"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "co_id" {
			t.Fatalf("expected co_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOCC(context.Background(), "offer", OutcomeCreated, 10)
	m.RecordContractOutcome(context.Background(), "05", "P")
	m.RecordRun(context.Background(), "new", "processed", time.Second)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "dyndisc"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordOCC(context.Background(), "alo", OutcomeFailed, 0)
	m.RecordContractOutcome(context.Background(), "90", "F")
	m.RecordRun(context.Background(), "resume", "error", 0)
}
