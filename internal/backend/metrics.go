package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики запросов к backend.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "og_backend_requests_total",
		Help: "Общее количество запросов к backend (по операции и результату).",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "og_backend_request_duration_seconds",
		Help:    "Длительность запросов к backend.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})
)
