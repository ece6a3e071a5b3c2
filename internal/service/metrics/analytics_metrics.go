package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsvol",
			Subsystem: "collaborator",
			Name:      "fetch_seconds",
			Help:      "Latency of calls to news and market-data providers",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsvol",
			Subsystem: "collaborator",
			Name:      "errors_total",
			Help:      "Failed calls to news and market-data providers",
		},
		[]string{"source"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsvol",
			Subsystem: "collaborator",
			Name:      "cache_lookups_total",
			Help:      "Collaborator cache lookups by result",
		},
		[]string{"source", "result"},
	)

	RequestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsvol",
			Subsystem: "requests",
			Name:      "failed_attempts_total",
			Help:      "Analysis requests from Kafka whose delivery attempt failed",
		},
		[]string{"topic"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(FetchLatency, FetchErrors, CacheLookups, RequestFailures)
	})
}

// ObserveFetch records one provider call that started at start.
func ObserveFetch(source string, start time.Time, err error) {
	Register()
	FetchLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		FetchErrors.WithLabelValues(source).Inc()
	}
}

// ObserveCache records a cache hit or miss.
func ObserveCache(source string, hit bool) {
	Register()
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(source, result).Inc()
}
