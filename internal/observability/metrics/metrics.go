package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics exposes counters/histograms for the quote and lead flows.
type QuoteMetrics struct {
	quotesTotal      *prometheus.CounterVec
	detectionTotal   *prometheus.CounterVec
	storageOpsTotal  *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
	quoteLatency     *prometheus.HistogramVec
}

func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	m := &QuoteMetrics{
		quotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uootd",
			Subsystem: "quote",
			Name:      "generated_total",
			Help:      "Total quotes generated",
		}, []string{"category", "source"}),
		detectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uootd",
			Name:      "detection_total",
			Help:      "Product detection attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		storageOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uootd",
			Name:      "storage_ops_total",
			Help:      "Store operations by backend that served them",
		}, []string{"store", "op", "backend"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uootd",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Quote requests rejected by the rate limiter",
		}),
		quoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uootd",
			Subsystem: "quote",
			Name:      "latency_seconds",
			Help:      "Latency of quote generation including detection",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.quotesTotal, m.detectionTotal, m.storageOpsTotal, m.rateLimitedTotal, m.quoteLatency)
	return m
}

func (m *QuoteMetrics) ObserveQuote(category, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.quotesTotal.WithLabelValues(category, source).Inc()
	m.quoteLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *QuoteMetrics) ObserveDetection(provider, outcome string) {
	if m == nil {
		return
	}
	m.detectionTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *QuoteMetrics) ObserveStorageOp(store, op, backend string) {
	if m == nil {
		return
	}
	m.storageOpsTotal.WithLabelValues(store, op, backend).Inc()
}

func (m *QuoteMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}
