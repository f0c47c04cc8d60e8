package pricing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the pricing client.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	ItemsPricedTotal prometheus.Counter
	RetriesTotal     prometheus.Counter
	CacheHitsTotal   prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_requests_total",
			Help: "Total HTTP requests issued to the pricing service.",
		},
		[]string{"endpoint"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricer_request_duration_seconds",
			Help:    "Pricing service request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsPriced := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricer_items_priced_total",
			Help: "Total number of item rows priced.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricer_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricer_cache_hits_total",
			Help: "Description-cache hits that skipped a service call.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_errors_total",
			Help: "Total pricing client errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsPriced, retries, cacheHits, errorsTotal)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ItemsPricedTotal: itemsPriced,
		RetriesTotal:     retries,
		CacheHitsTotal:   cacheHits,
		ErrorsTotal:      errorsTotal,
	}
}

func (m *Metrics) IncRequest(endpoint string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsPricedTotal.Add(float64(n))
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
