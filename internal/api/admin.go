package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "supplyopt/internal/model"
    "supplyopt/internal/opt"
)

// SolverConfigHandler returns effective solver configuration (defaults with
// tenant overrides applied). GET /v1/solver/config
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    defaults := map[string]any{
        "timeBudgetMs":  30000,
        "threads":       0,
        "seed":          1,
        "mipGap":        0.0,
        "deterministic": false,
        "strictSafetyStock": false,
    }
    p := s.getPrincipal(r)
    cfg, _ := s.Store.GetSolverConfig(r.Context(), p.Tenant)
    for k, v := range cfg { defaults[k] = v }
    writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// mergeSolverConfig fills unset request options from the tenant's stored
// solver config. Values set explicitly on the request always win. Numbers
// arrive as float64 when the config came through JSON.
func mergeSolverConfig(o *model.SolveOptions, cfg map[string]any) {
    if o.TimeBudgetMs == 0 { o.TimeBudgetMs = cfgInt(cfg, "timeBudgetMs") }
    if o.Threads == 0 { o.Threads = cfgInt(cfg, "threads") }
    if o.Seed == 0 { o.Seed = int64(cfgInt(cfg, "seed")) }
    if o.MIPGap == 0 { o.MIPGap = cfgFloat(cfg, "mipGap") }
    if !o.Deterministic { o.Deterministic = cfgBool(cfg, "deterministic") }
    if !o.StrictSafetyStock { o.StrictSafetyStock = cfgBool(cfg, "strictSafetyStock") }
}

func cfgInt(cfg map[string]any, key string) int {
    switch v := cfg[key].(type) {
    case float64:
        return int(v)
    case int:
        return v
    }
    return 0
}

func cfgFloat(cfg map[string]any, key string) float64 {
    switch v := cfg[key].(type) {
    case float64:
        return v
    case int:
        return float64(v)
    }
    return 0
}

func cfgBool(cfg map[string]any, key string) bool {
    b, _ := cfg[key].(bool)
    return b
}

// AdminSolverConfigHandler gets/sets per-tenant solver overrides.
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/solver/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        cfg, _ := s.Store.GetSolverConfig(r.Context(), p.Tenant)
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config map[string]any `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SolvesHandler handles GET /v1/solves: solve history, newest last.
func (s *Server) SolvesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solves" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListSolves(r.Context(), tenant, cursor, limit)
    if err != nil { writeProblem(w, 500, "List solves failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// SolveByIDHandler handles GET /v1/solves/{id} (stored summary plus the full
// response when still cached) and GET /v1/solves/{id}/events/stream (SSE).
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/solves/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, 404, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.solveStream(w, r, id)
        return
    }
    if len(parts) > 1 { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    sum, err := s.Store.GetSolve(r.Context(), tenant, id)
    if err != nil { writeProblem(w, 404, "Solve not found", id, r.URL.Path); return }
    out := map[string]any{"summary": sum}
    if cached := s.Solves.Get(id); cached != nil { out["response"] = cached.Response }
    writeJSON(w, 200, out)
}

// SolveMetricsHandler handles GET /v1/admin/solve-metrics
func (s *Server) SolveMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/solve-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    ms := opt.GetMetrics(p.Tenant)
    items := []map[string]any{}
    for id, m := range ms {
        items = append(items, map[string]any{
            "solveId":    id,
            "status":     m.Status,
            "columns":    m.Columns,
            "integers":   m.Integers,
            "rows":       m.Rows,
            "objective":  m.Objective,
            "tripCount":  m.TripCount,
            "durationMs": m.DurationMs,
        })
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin)
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        var req struct {
            URL    string   `json:"url"`
            Events []string `json:"events"`
            Secret string   `json:"secret"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
            writeProblem(w, 400, "Invalid url", req.URL, r.URL.Path)
            return
        }
        if len(req.Events) == 0 { req.Events = []string{"*"} }
        sub := model.Subscription{TenantID: p.Tenant, URL: req.URL, Events: req.Events, Secret: req.Secret}
        created, err := s.Store.CreateSubscription(r.Context(), sub)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, created)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// Admin: webhook DLQ list and requeue
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodGet {
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
        return
    }
    if strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-dlq/") && strings.HasSuffix(r.URL.Path, "/requeue") && r.Method == http.MethodPost {
        id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq/"), "/requeue")
        if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Requeue failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 202, map[string]int{"accepted": 1})
        return
    }
    writeProblem(w, 404, "Not Found", "", r.URL.Path)
}
