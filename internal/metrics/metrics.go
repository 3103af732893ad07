package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctxhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ContextRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxhub_context_requests_total",
			Help: "Context read requests routed through the registry.",
		},
		[]string{"mode", "status"},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctxhub_aggregation_duration_seconds",
			Help:    "Wall time of successful multi-provider aggregations.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProvidersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctxhub_providers_registered",
			Help: "Number of currently registered providers.",
		},
	)

	WritebackEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctxhub_writeback_evictions_total",
			Help: "Write-back entries displaced by the storage bound.",
		},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxhub_events_published_total",
			Help: "Registry lifecycle events dispatched, by kind.",
		},
		[]string{"kind"},
	)
)

// ObserveContextRequest records one routed context read.
func ObserveContextRequest(mode string, success bool) {
	status := "error"
	if success {
		status = "ok"
	}
	ContextRequestsTotal.WithLabelValues(mode, status).Inc()
}

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ContextRequestsTotal,
		AggregationDuration,
		ProvidersRegistered,
		WritebackEvictionsTotal,
		EventsPublishedTotal,
	)
}
