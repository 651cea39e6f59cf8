package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cardsigner"

// Outcome labels for ExchangesTotal.
const (
	OutcomeAssembled = "assembled"
	OutcomeFailed    = "failed"
)

// Metrics contains all Prometheus metrics of the signing exchange.
type Metrics struct {
	ExchangesStarted prometheus.Counter
	ExchangesTotal   *prometheus.CounterVec
	// FailuresTotal is labelled with the failing stage.
	FailuresTotal    *prometheus.CounterVec
	RecoveryFailures prometheus.Counter
	HashMismatches   prometheus.Counter
	// RecoveryAttempts observes how many candidate ids were tried before a match.
	RecoveryAttempts prometheus.Histogram
	AssembleDuration prometheus.Histogram
}

// NewMetrics registers the metrics with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers the metrics with registry, or the default one when nil.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ExchangesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_started_total",
			Help:      "The total number of signing exchanges prepared",
		}),
		ExchangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "The total number of finished signing exchanges by outcome",
		}, []string{"outcome"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_failures_total",
			Help:      "The total number of failed signing exchanges by stage",
		}, []string{"stage"}),
		RecoveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_failures_total",
			Help:      "The total number of signatures for which no recovery id matched the public key",
		}),
		HashMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_mismatches_total",
			Help:      "The total number of transactions whose recomputed hash disagreed with the claimed one",
		}),
		RecoveryAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recovery_attempts",
			Help:      "Number of recovery ids tried until the public key matched",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		AssembleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assemble_duration_seconds",
			Help:      "Time spent completing a signing exchange",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10), //nolint:mnd
		}),
	}
}

// ExchangeFailed records a failure in stage.
func (m *Metrics) ExchangeFailed(stage string) {
	if m == nil {
		return
	}

	m.ExchangesTotal.WithLabelValues(OutcomeFailed).Inc()
	m.FailuresTotal.WithLabelValues(stage).Inc()
}
