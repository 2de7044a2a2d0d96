// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the persistence layer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors registered by the service.
type Metrics struct {
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	QueryTotal    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

var (
	global *Metrics
	mu     sync.Mutex
)

// New returns the process-wide metrics instance, registering the collectors
// on first use.
func New() *Metrics {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return global
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_queries_total",
			Help: "Total number of persistence operations",
		}, []string{"operation", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Persistence operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.QueryTotal)
	registerOrGet(m.QueryDuration)

	global = m
	return m
}

func registerOrGet(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}
