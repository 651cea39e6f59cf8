package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-cardsigner/internal/metrics"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(registry)

	m.ExchangesStarted.Inc()
	m.ExchangeFailed("Canonicalized")
	m.ExchangeFailed("Canonicalized")
	m.RecoveryAttempts.Observe(2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ExchangesStarted), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(metrics.OutcomeFailed)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("Canonicalized")), 0)

	count, err := testutil.GatherAndCount(registry, "cardsigner_recovery_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// registering twice on the same registry must fail
	assert.Panics(t, func() { metrics.NewMetricsWithRegistry(registry) })
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() { m.ExchangeFailed("Decoded") })
}

func TestWriteText(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(registry)

	m.ExchangesStarted.Inc()
	m.ExchangesTotal.WithLabelValues(metrics.OutcomeAssembled).Inc()

	var out strings.Builder
	require.NoError(t, metrics.WriteText(&out, registry))

	assert.Contains(t, out.String(), "# TYPE cardsigner_exchanges_started_total counter")
	assert.Contains(t, out.String(), "cardsigner_exchanges_started_total 1")
	assert.Contains(t, out.String(), `cardsigner_exchanges_total{outcome="assembled"} 1`)
}
