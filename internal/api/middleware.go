package api

import (
    "bufio"
    "net"
    "net/http"
    "os"
    "strconv"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "supplyopt/internal/metrics"
)

// statusRecorder captures the status code for the metrics middleware.
type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (sr *statusRecorder) WriteHeader(code int) { sr.status = code; sr.ResponseWriter.WriteHeader(code) }

func (sr *statusRecorder) Flush() {
    if f, ok := sr.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack keeps WebSocket upgrades working through the middleware.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := sr.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, http.ErrNotSupported }
    return h.Hijack()
}

// MetricsMiddleware records request counts and durations on the package
// registry. Streaming endpoints are skipped so long-lived connections do not
// distort the duration histogram.
func MetricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: 200}
        next.ServeHTTP(rec, r)
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
    })
}

// RateLimitMiddleware applies a per-client token bucket, keyed by remote IP.
// RATE_RPS=0 (the default) disables limiting.
func RateLimitMiddleware(next http.Handler) http.Handler {
    rps, _ := strconv.ParseFloat(os.Getenv("RATE_RPS"), 64)
    if rps <= 0 {
        return next
    }
    burst, _ := strconv.Atoi(os.Getenv("RATE_BURST"))
    if burst <= 0 { burst = int(rps) }
    var mu sync.Mutex
    limiters := map[string]*rate.Limiter{}
    limiterFor := func(ip string) *rate.Limiter {
        mu.Lock()
        defer mu.Unlock()
        l, ok := limiters[ip]
        if !ok {
            l = rate.NewLimiter(rate.Limit(rps), burst)
            limiters[ip] = l
        }
        return l
    }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ip, _, err := net.SplitHostPort(r.RemoteAddr)
        if err != nil { ip = r.RemoteAddr }
        if !limiterFor(ip).Allow() {
            writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many requests", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
