package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Solves counts solver runs by terminal status
    Solves = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solves_total", Help: "Solver runs by status."},
        []string{"status"},
    )
    // SolveDuration tracks end-to-end solve wall time in seconds
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Solve duration in seconds.", Buckets: []float64{0.05, 0.2, 0.5, 1, 2, 5, 10, 30, 60}},
        []string{"status"},
    )
    // ModelSize tracks the column count of built models
    ModelSize = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "model_columns", Help: "Decision variable count per solve.", Buckets: []float64{10, 100, 500, 1000, 5000, 10000, 50000}},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the package registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(Solves)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(ModelSize)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
