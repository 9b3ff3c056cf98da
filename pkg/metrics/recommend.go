package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Latency of the recommendation serving handler
	RecommendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommend_latency_seconds",
		Help:    "Latency of recommendation serving handler",
		Buckets: prometheus.DefBuckets,
	})

	// Total number of recommendation pages served, by scene
	RecommendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_requests_total",
		Help: "Total number of recommendation requests by scene",
	}, []string{"scene"})

	// Total number of empty pages served, by scene
	RecommendEmptyPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_empty_pages_total",
		Help: "Total number of recommendation requests that returned no items",
	}, []string{"scene"})
)

func Init() {
	prometheus.MustRegister(
		RecommendLatency,
		RecommendRequests,
		RecommendEmptyPages,
	)
}
