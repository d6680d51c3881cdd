package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommandCountsOutcomes(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveCommand("create", nil)
	m.ObserveCommand("create", nil)
	m.ObserveCommand("create", errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commands.WithLabelValues("create", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commands.WithLabelValues("create", OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("update", nil)
	m.AddReconciled(3)
	m.AddImported("imported", 1)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
