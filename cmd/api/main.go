package main

import (
    "log"
    "net/http"
    "os"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "supplyopt/internal/api"
    "supplyopt/internal/metrics"
)

func main() {
    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Optimization
    mux.HandleFunc("/v1/optimize", srvDeps.OptimizeHandler)
    mux.HandleFunc("/v1/optimize-with-constraints/upload", srvDeps.OptimizeUploadHandler)
    mux.HandleFunc("/v1/solver/config", srvDeps.SolverConfigHandler)
    mux.HandleFunc("/v1/admin/solver/config", srvDeps.AdminSolverConfigHandler)

    // Dataset and generation
    mux.HandleFunc("/v1/initial-data", srvDeps.InitialDataHandler)
    mux.HandleFunc("/v1/generate-training-data", srvDeps.GenerateHandler)
    mux.HandleFunc("/v1/sources", srvDeps.SourcesHandler)
    mux.HandleFunc("/v1/destinations", srvDeps.DestinationsHandler)
    mux.HandleFunc("/v1/modes", srvDeps.ModesHandler)
    mux.HandleFunc("/v1/periods", srvDeps.PeriodsHandler)
    mux.HandleFunc("/v1/route-analysis", srvDeps.RouteAnalysisHandler)
    mux.HandleFunc("/v1/demand/import", srvDeps.DemandImportHandler)
    mux.HandleFunc("/v1/model", srvDeps.ModelHandler)

    // Scenarios
    mux.HandleFunc("/v1/scenarios", srvDeps.ScenariosHandler)
    mux.HandleFunc("/v1/scenarios/", srvDeps.ScenarioByIDHandler) // includes /load

    // Solve history and streams
    mux.HandleFunc("/v1/solves", srvDeps.SolvesHandler)
    mux.HandleFunc("/v1/solves/ws", srvDeps.SolveWSHandler)
    mux.HandleFunc("/v1/solves/", srvDeps.SolveByIDHandler) // includes /events/stream

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq/", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/solve-metrics", srvDeps.SolveMetricsHandler)

    // Docs and introspection
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)
    mux.HandleFunc("/swagger", srvDeps.SwaggerHandler)
    mux.HandleFunc("/debug/info", srvDeps.DebugJSON)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    handler := logMiddleware(api.MetricsMiddleware(api.RateLimitMiddleware(mux)))
    srv := &http.Server{
        Addr:              addr,
        Handler:           handler,
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}
