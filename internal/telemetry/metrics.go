package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope for ledger metrics.
const MeterName = "itemledger"

// Metrics holds the ledger's instruments.
type Metrics struct {
	Mutations        metric.Int64Counter
	MutationDuration metric.Float64Histogram
	AuditAnomalies   metric.Int64Counter
	ReaperTrimmed    metric.Int64Counter
	ReaperFailures   metric.Int64Counter
}

// NewMetrics creates all instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Mutations, err = meter.Int64Counter("itemledger.mutations",
		metric.WithDescription("Balance mutations by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.MutationDuration, err = meter.Float64Histogram("itemledger.mutation.duration",
		metric.WithDescription("Add/subtract duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.AuditAnomalies, err = meter.Int64Counter("itemledger.audit.anomalies",
		metric.WithDescription("History inserts that did not affect exactly one row"),
	)
	if err != nil {
		return nil, err
	}

	m.ReaperTrimmed, err = meter.Int64Counter("itemledger.reaper.trimmed",
		metric.WithDescription("History rows removed by the reaper"),
	)
	if err != nil {
		return nil, err
	}

	m.ReaperFailures, err = meter.Int64Counter("itemledger.reaper.failures",
		metric.WithDescription("Failed trim attempts"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

func (m *Metrics) RecordMutation(ctx context.Context, op, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	m.Mutations.Add(ctx, 1, attrs)
	m.MutationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Provider owns the meter provider and its shutdown.
type Provider struct {
	Meter    metric.Meter
	shutdown func(context.Context) error
}

// InitMetrics sets up a meter provider. When disabled, every instrument is a
// no-op; otherwise metrics are exported to stdout on the given interval.
func InitMetrics(enabled bool, interval time.Duration) (*Provider, error) {
	if !enabled {
		return &Provider{
			Meter:    noop.NewMeterProvider().Meter(MeterName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	if interval <= 0 {
		interval = time.Minute
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	return &Provider{
		Meter:    mp.Meter(MeterName),
		shutdown: mp.Shutdown,
	}, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}
