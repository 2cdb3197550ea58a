package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ReportFetchTotal counts report fetch outcomes by scope.
	ReportFetchTotal *prometheus.CounterVec
	// ReportFetchLatency records report fetch latency in milliseconds.
	ReportFetchLatency *prometheus.HistogramVec
	// ReportCacheTotal counts report cache lookups by result.
	ReportCacheTotal *prometheus.CounterVec
	// ExportTotal counts export attempts by format and outcome.
	ExportTotal *prometheus.CounterVec
	// SupersededSelections counts fetches discarded because a newer selection won.
	SupersededSelections prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReportFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_fetch_total",
			Help:      "Count of performance report fetch outcomes.",
		}, []string{"scope", "result"})
		ReportFetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_fetch_duration_ms",
			Help:      "Latency of performance report fetches in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"scope"})
		ReportCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result.",
		}, []string{"scope", "result"})
		ExportTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_total",
			Help:      "Count of report exports by format and outcome.",
		}, []string{"format", "result"})
		SupersededSelections = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_selections_total",
			Help:      "Fetches discarded because a newer period selection replaced them.",
		})

		mustRegisterCollector(reg, ReportFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReportFetchTotal = v
			}
		})
		mustRegisterCollector(reg, ReportFetchLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ReportFetchLatency = v
			}
		})
		mustRegisterCollector(reg, ReportCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReportCacheTotal = v
			}
		})
		mustRegisterCollector(reg, ExportTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExportTotal = v
			}
		})
		mustRegisterCollector(reg, SupersededSelections, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SupersededSelections = v
			}
		})
	})
}
