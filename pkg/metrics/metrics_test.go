package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.QueriesTotal.WithLabelValues(OutcomeOK).Inc()
	m.QueriesTotal.WithLabelValues(OutcomeOK).Inc()
	m.DocsIndexedTotal.Add(3)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(OutcomeOK)), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.DocsIndexedTotal), 1e-9)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["query_evaluations_total"])
	assert.True(t, names["docs_indexed_total"])
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)
	assert.Panics(t, func() { NewWithRegistry(reg) })
}
