package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dealer_insights"

// Collectors are live before registration so breakers constructed in tests
// can record without a registry.
var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state per backend target: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"target", "from", "to"})
	// OutboundAttempts outcome is one of ok, retry, error or rejected.
	OutboundAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "backend",
		Name:      "attempts_total",
		Help:      "Dealer backend HTTP attempts by outcome.",
	}, []string{"target", "outcome"})
	RetryBackoff = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "backend",
		Name:      "retry_backoff_seconds",
		Help:      "Sleep before retrying a dealer backend request.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
	}, []string{"target"})
)

// RegisterMetrics registers the resilience collectors on reg. Registering
// twice on the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, OutboundAttempts, RetryBackoff} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
