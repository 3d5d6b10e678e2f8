package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexview_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lexview_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	documentFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexview_document_fetches_total",
		Help: "Raw markup document fetches by result",
	}, []string{"result"})

	documentFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lexview_document_fetch_duration_seconds",
		Help:    "Raw markup document fetch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	searches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexview_searches_total",
		Help: "Search term updates",
	})
)

// ObserveFetch records a completed document fetch. It matches the OnFetch
// hook of the viewer.
func ObserveFetch(ref string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	documentFetches.WithLabelValues(result).Inc()
	documentFetchDuration.Observe(elapsed.Seconds())
}
