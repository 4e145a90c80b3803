// Package metrics instruments contract execution with Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rwasm-go/rwasmvm/types"
)

const namespace = "rwasmvm"

// Metrics holds the VM collectors. A nil *Metrics records nothing.
type Metrics struct {
	executions    *prometheus.CounterVec
	fuelConsumed  prometheus.Counter
	fuelHistogram prometheus.Histogram
	interruptions *prometheus.CounterVec
	callDepth     prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	parked        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "executions_total",
			Help:      "Finished contract executions by exit code",
		}, []string{"exit_code"}),
		fuelConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "fuel_consumed_total",
			Help:      "Fuel consumed by all executions",
		}),
		fuelHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "fuel_per_execution",
			Help:      "Fuel consumed per execution segment",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 12),
		}),
		interruptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "interruptions_total",
			Help:      "Interruptions raised by contracts, by kind and how they were handled",
		}, []string{"kind", "handling"}),
		callDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "nested_call_depth",
			Help:      "Call depth of nested invocations",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Module cache lookups by result",
		}, []string{"result"}),
		parked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "parked_runtimes",
			Help:      "Runtimes waiting for the host to resume them",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.executions, m.fuelConsumed, m.fuelHistogram, m.interruptions, m.callDepth, m.cacheLookups, m.parked,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveExecution records a finished execution segment.
func (m *Metrics) ObserveExecution(res types.ExecutionResult) {
	if m == nil {
		return
	}
	label := "parked"
	if res.ExitCode <= 0 {
		label = res.ExitCode.String()
	}
	m.executions.WithLabelValues(label).Inc()
	m.fuelConsumed.Add(float64(res.FuelConsumed))
	m.fuelHistogram.Observe(float64(res.FuelConsumed))
}

// ObserveInterruption records an interruption. handling is "inline" or "parked".
func (m *Metrics) ObserveInterruption(kind, handling string) {
	if m == nil {
		return
	}
	m.interruptions.WithLabelValues(kind, handling).Inc()
}

func (m *Metrics) ObserveCallDepth(depth uint32) {
	if m == nil {
		return
	}
	m.callDepth.Observe(float64(depth))
}

// ObserveCacheLookup counts a module cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetParked(n int) {
	if m == nil {
		return
	}
	m.parked.Set(float64(n))
}
