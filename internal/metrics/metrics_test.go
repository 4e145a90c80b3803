package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/types"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveExecution(types.ExecutionResult{ExitCode: types.ExitCodeOk, FuelConsumed: 10})
	m.ObserveExecution(types.ExecutionResult{ExitCode: types.ExitCodeOutOfFuel, FuelConsumed: 5})
	m.ObserveExecution(types.ExecutionResult{ExitCode: 3})
	m.ObserveInterruption("exec", "inline")
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.SetParked(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues(types.ExitCodeOk.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("parked")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.fuelConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interruptions.WithLabelValues("exec", "inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.parked))

	_, err = New(reg)
	assert.Error(t, err, "collectors register once per registry")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExecution(types.ExecutionResult{})
		m.ObserveInterruption("exec", "parked")
		m.ObserveCallDepth(1)
		m.ObserveCacheLookup(true)
		m.SetParked(0)
	})
}
