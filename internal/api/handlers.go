package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "os"
    "strconv"
    "time"

    "github.com/google/uuid"

    "supplyopt/internal/metrics"
    "supplyopt/internal/model"
    "supplyopt/internal/opt"
    "supplyopt/internal/store"
    "supplyopt/internal/webhooks"
)

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req model.SolveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    s.runSolve(w, r, p.Tenant, &req, nil, nil)
}

// runSolve is the shared build -> overlay -> solve -> interpret pipeline for
// the optimize endpoints. overlayErrs carries CSV parse failures from the
// upload form; a solver backend failure still answers 200 with status "Error".
func (s *Server) runSolve(w http.ResponseWriter, r *http.Request, tenant string, req *model.SolveRequest, rules []opt.OverlayRule, overlayErrs []string) {
    if err := req.Dataset.Validate(); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid dataset", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveOptions(req.Options); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid options", err.Error(), r.URL.Path)
        return
    }
    if req.Options == nil { req.Options = &model.SolveOptions{} }
    if cfg, err := s.Store.GetSolverConfig(r.Context(), tenant); err == nil {
        mergeSolverConfig(req.Options, cfg)
    }
    if req.Options.TimeBudgetMs == 0 {
        if v, _ := strconv.Atoi(os.Getenv("SOLVE_TIME_BUDGET_MS")); v > 0 { req.Options.TimeBudgetMs = v }
    }

    m, err := opt.Build(&req.Dataset, req.Options)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid dataset", err.Error(), r.URL.Path)
        return
    }
    if len(rules) > 0 {
        _, applyErrs := m.ApplyOverlay(rules)
        overlayErrs = append(overlayErrs, applyErrs...)
    }

    solveID := "sv_" + uuid.New().String()
    s.Pub.Emit(r.Context(), tenant, webhooks.EventSolveStarted, map[string]any{
        "solveId": solveID, "columns": len(m.Vars()), "rows": len(m.Rows()),
    })
    raw, err := opt.Solve(r.Context(), m, req.Options)
    if err != nil {
        // Backend failure: still a 200 with an explicit Error status so
        // clients can distinguish it from infeasibility.
        resp := &model.SolveResponse{SolveID: solveID, Status: model.StatusError, ScheduledTrips: []model.ScheduledTrip{}, Message: err.Error()}
        resp.Errors = overlayErrs
        metrics.Solves.WithLabelValues(model.StatusError).Inc()
        s.Pub.Emit(r.Context(), tenant, webhooks.EventSolveFailed, map[string]any{"solveId": solveID, "error": err.Error()})
        writeJSON(w, http.StatusOK, resp)
        return
    }
    resp := opt.Interpret(m, raw)
    resp.SolveID = solveID
    resp.Errors = overlayErrs

    // Remember the dataset as the tenant's working copy and record history.
    _ = s.Store.SaveDataset(r.Context(), tenant, req.Dataset)
    sum := model.SolveSummary{
        ID: solveID, TenantID: tenant, Status: resp.Status,
        TotalCost: resp.TotalCost, TripCount: len(resp.ScheduledTrips),
        DurationMs: int(raw.Duration.Milliseconds()),
    }
    _ = s.Store.SaveSolve(r.Context(), sum)
    s.Solves.Put(tenant, solveID, &opt.Solved{Model: m, Values: raw.Values, Response: resp})
    opt.RecordMetrics(tenant, solveID, opt.Metrics{
        Status: resp.Status, Columns: len(m.Vars()), Integers: countIntegers(m),
        Rows: len(m.Rows()), Objective: raw.Objective,
        TripCount: len(resp.ScheduledTrips), DurationMs: int(raw.Duration.Milliseconds()),
    })
    metrics.Solves.WithLabelValues(resp.Status).Inc()
    metrics.SolveDuration.WithLabelValues(resp.Status).Observe(raw.Duration.Seconds())
    metrics.ModelSize.Observe(float64(len(m.Vars())))

    evt := webhooks.EventSolveCompleted
    if resp.Status == model.StatusInfeasible { evt = webhooks.EventSolveInfeasible }
    s.Pub.Emit(r.Context(), tenant, evt, map[string]any{
        "solveId": solveID, "status": resp.Status, "totalCost": resp.TotalCost, "tripCount": len(resp.ScheduledTrips),
    })
    s.Broker.Publish(solveID, SSEEvent{Type: evt, Data: map[string]any{
        "solveId": solveID, "status": resp.Status, "tripCount": len(resp.ScheduledTrips),
        "ts": time.Now().UTC().Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, resp)
}

func countIntegers(m *opt.Model) int {
    n := 0
    for _, v := range m.Vars() {
        if v.Integer { n++ }
    }
    return n
}

// OptimizeUploadHandler handles POST /v1/optimize-with-constraints/upload:
// multipart form with a "payload" JSON part and a "constraints" CSV part.
func (s *Server) OptimizeUploadHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    if err := r.ParseMultipartForm(16 << 20); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid multipart form", err.Error(), r.URL.Path)
        return
    }
    var req model.SolveRequest
    if v := r.FormValue("payload"); v != "" {
        if err := json.Unmarshal([]byte(v), &req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid payload JSON", err.Error(), r.URL.Path)
            return
        }
    } else {
        writeProblem(w, http.StatusBadRequest, "Missing payload", "form field \"payload\" required", r.URL.Path)
        return
    }
    var rules []opt.OverlayRule
    var parseErrs []string
    if f, _, err := r.FormFile("constraints"); err == nil {
        defer f.Close()
        rules, parseErrs = opt.ParseOverlay(f)
    }
    s.runSolve(w, r, p.Tenant, &req, rules, parseErrs)
}

// InitialDataHandler handles GET /v1/initial-data: the tenant's working
// dataset, or a freshly generated default network on first contact.
func (s *Server) InitialDataHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    _, tenant := s.withTenant(r)
    ds, err := s.Store.GetDataset(r.Context(), tenant)
    if errors.Is(err, store.ErrNotFound) {
        gen := opt.Generate(opt.GenSpec{})
        _ = s.Store.SaveDataset(r.Context(), tenant, *gen)
        writeJSON(w, http.StatusOK, gen)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Load dataset failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, ds)
}

// GenerateHandler handles POST /v1/generate-training-data
func (s *Server) GenerateHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var spec opt.GenSpec
    if r.Body != nil {
        // body is optional; zero values fall back to defaults
        _ = json.NewDecoder(r.Body).Decode(&spec)
    }
    if spec.Producers < 0 || spec.Consumers < 0 || spec.Periods < 0 {
        writeProblem(w, http.StatusBadRequest, "Invalid generator spec", "counts must be non-negative", r.URL.Path)
        return
    }
    if spec.Producers > 50 || spec.Consumers > 200 || spec.Periods > 120 {
        writeProblem(w, http.StatusBadRequest, "Invalid generator spec", "network size out of range", r.URL.Path)
        return
    }
    ds := opt.Generate(spec)
    _, tenant := s.withTenant(r)
    _ = s.Store.SaveDataset(r.Context(), tenant, *ds)
    writeJSON(w, http.StatusOK, ds)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
