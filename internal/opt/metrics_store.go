package opt

import "sync"

// Metrics captures per-solve measurements for the admin metrics endpoint.
type Metrics struct {
    Status     string  `json:"status"`
    Columns    int     `json:"columns"`
    Integers   int     `json:"integers"`
    Rows       int     `json:"rows"`
    Objective  float64 `json:"objective"`
    TripCount  int     `json:"tripCount"`
    DurationMs int     `json:"durationMs"`
}

type metricsKey struct {
    Tenant  string
    SolveID string
}

var (
    metricsMu    sync.Mutex
    metricsStore = map[metricsKey]Metrics{}
)

func RecordMetrics(tenant, solveID string, m Metrics) {
    metricsMu.Lock()
    metricsStore[metricsKey{Tenant: tenant, SolveID: solveID}] = m
    metricsMu.Unlock()
}

func GetMetrics(tenant string) map[string]Metrics {
    metricsMu.Lock()
    defer metricsMu.Unlock()
    out := map[string]Metrics{}
    for k, v := range metricsStore {
        if k.Tenant == tenant {
            out[k.SolveID] = v
        }
    }
    return out
}
