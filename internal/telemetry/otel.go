package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/seawatts/grid-sub000/internal/telemetry"

// Meter returns the meter from the global provider (a no-op until one is
// installed).
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// OtelMetrics implements Metrics on OpenTelemetry instruments. Add feeds one
// Int64Counter per key; Store values are reported through a single
// observable gauge labelled by key.
type OtelMetrics struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]int64
	gauge    metric.Int64ObservableGauge
}

// NewOtelMetrics registers the gauge callback on meter.
func NewOtelMetrics(meter metric.Meter) (*OtelMetrics, error) {
	if meter == nil {
		meter = Meter()
	}
	m := &OtelMetrics{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]int64),
	}

	var err error
	m.gauge, err = meter.Int64ObservableGauge(
		"gridtd.gauge",
		metric.WithDescription("Last stored value per simulation gauge"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gauge: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			for key, value := range m.gauges {
				o.ObserveInt64(m.gauge, value, metric.WithAttributes(attribute.String("key", key)))
			}
			return nil
		},
		m.gauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}
	return m, nil
}

func (m *OtelMetrics) Add(key string, delta uint64) {
	if m == nil {
		return
	}
	counter, err := m.counter(key)
	if err != nil {
		return
	}
	counter.Add(context.Background(), int64(delta))
}

func (m *OtelMetrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] = int64(value)
}

func (m *OtelMetrics) counter(key string) (metric.Int64Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[key]; ok {
		return counter, nil
	}
	counter, err := m.meter.Int64Counter(
		instrumentName(key),
		metric.WithDescription(key),
	)
	if err != nil {
		return nil, fmt.Errorf("creating counter %s: %w", key, err)
	}
	m.counters[key] = counter
	return counter, nil
}

// instrumentName turns snake_case metric keys into dotted otel names.
func instrumentName(key string) string {
	return "gridtd." + strings.ReplaceAll(key, "_", ".")
}
