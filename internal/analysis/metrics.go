package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_api_requests_total",
		Help: "Total number of analysis API requests",
	}, []string{"route", "status"})

	latencyHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_api_latency_seconds",
		Help:    "Latency of analysis API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	resultSizeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "analysis_api_result_size",
		Help: "Result size for analysis API responses",
	}, []string{"route"})
)
