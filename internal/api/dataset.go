package api

import (
    "errors"
    "fmt"
    "net/http"
    "sort"

    "supplyopt/internal/integrations"
    "supplyopt/internal/integrations/csvdemand"
    "supplyopt/internal/model"
    "supplyopt/internal/opt"
    "supplyopt/internal/store"
)

// currentDataset resolves the tenant's working dataset for the query
// endpoints, generating a default network on first contact.
func (s *Server) currentDataset(r *http.Request) (model.Dataset, string, error) {
    _, tenant := s.withTenant(r)
    ds, err := s.Store.GetDataset(r.Context(), tenant)
    if errors.Is(err, store.ErrNotFound) {
        gen := opt.Generate(opt.GenSpec{})
        _ = s.Store.SaveDataset(r.Context(), tenant, *gen)
        return *gen, tenant, nil
    }
    return ds, tenant, err
}

// SourcesHandler handles GET /v1/sources: plants that originate any route.
func (s *Server) SourcesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    d, _, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    seen := map[string]bool{}
    out := []string{}
    for _, rt := range d.Routes {
        if !seen[rt.OriginID] { seen[rt.OriginID] = true; out = append(out, rt.OriginID) }
    }
    sort.Strings(out)
    writeJSON(w, 200, map[string]any{"sources": out})
}

// DestinationsHandler handles GET /v1/destinations?source=
func (s *Server) DestinationsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    source := r.URL.Query().Get("source")
    if source == "" { writeProblem(w, 400, "Missing source", "", r.URL.Path); return }
    d, _, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    seen := map[string]bool{}
    out := []string{}
    for _, rt := range d.Routes {
        if rt.OriginID != source { continue }
        if !seen[rt.DestinationID] { seen[rt.DestinationID] = true; out = append(out, rt.DestinationID) }
    }
    sort.Strings(out)
    writeJSON(w, 200, map[string]any{"destinations": out})
}

// ModesHandler handles GET /v1/modes?source=&destination=
func (s *Server) ModesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    source := r.URL.Query().Get("source")
    dest := r.URL.Query().Get("destination")
    if source == "" || dest == "" { writeProblem(w, 400, "Missing parameters", "source and destination required", r.URL.Path); return }
    d, _, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    out := []string{}
    for _, rt := range d.Routes {
        if rt.OriginID != source || rt.DestinationID != dest { continue }
        for _, m := range rt.Modes { out = append(out, m.Mode) }
    }
    sort.Strings(out)
    writeJSON(w, 200, map[string]any{"modes": out})
}

// PeriodsHandler handles GET /v1/periods
func (s *Server) PeriodsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    d, _, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    periods := make([]int, 0, d.T)
    for t := 0; t < d.T; t++ { periods = append(periods, t) }
    writeJSON(w, 200, map[string]any{"periods": periods})
}

// RouteAnalysisHandler handles GET /v1/route-analysis?source=&destination=&mode=&period=
// projected out of the tenant's most recent solve.
func (s *Server) RouteAnalysisHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    q := r.URL.Query()
    source, dest, mode := q.Get("source"), q.Get("destination"), q.Get("mode")
    if source == "" || dest == "" || mode == "" {
        writeProblem(w, 400, "Missing parameters", "source, destination and mode required", r.URL.Path)
        return
    }
    period := 0
    if v := q.Get("period"); v != "" {
        if _, err := fmt.Sscanf(v, "%d", &period); err != nil {
            writeProblem(w, 400, "Invalid period", v, r.URL.Path)
            return
        }
    }
    solved := s.Solves.Latest(tenant)
    if solved == nil {
        writeProblem(w, 404, "No solve available", "run POST /v1/optimize first", r.URL.Path)
        return
    }
    route := routeByEndpoints(solved.Model.Data, source, dest)
    if route == nil {
        writeProblem(w, 404, "Route not found", fmt.Sprintf("no route %s -> %s", source, dest), r.URL.Path)
        return
    }
    an, err := opt.AnalyzeRoute(solved, route.ID, mode, period)
    if err != nil {
        writeProblem(w, 404, "Route analysis failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 200, an)
}

func routeByEndpoints(d *model.Dataset, origin, dest string) *model.TransportRoute {
    for i := range d.Routes {
        if d.Routes[i].OriginID == origin && d.Routes[i].DestinationID == dest {
            return &d.Routes[i]
        }
    }
    return nil
}

// DemandImportHandler handles POST /v1/demand/import: a CSV body
// (plant_id,period,quantity) merged into the working dataset's demand.
func (s *Server) DemandImportHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    d, tenant, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    src := csvdemand.New(r.Body)
    batch, err := src.FetchDemand("")
    if err != nil { writeProblem(w, 400, "Invalid demand feed", err.Error(), r.URL.Path); return }
    if d.Demand == nil { d.Demand = map[string][]float64{} }
    known := map[string]bool{}
    for i := range d.Plants { known[d.Plants[i].ID] = true }
    applied, errs := integrations.Apply(d.Demand, d.T, known, batch)
    errs = append(batch.Errors, errs...)
    if applied > 0 {
        if err := s.Store.SaveDataset(r.Context(), tenant, d); err != nil {
            writeProblem(w, 500, "Save dataset failed", err.Error(), r.URL.Path)
            return
        }
    }
    writeJSON(w, 200, map[string]any{"source": src.Name(), "applied": applied, "errors": errs})
}

// ModelHandler handles GET /v1/model: the formulation of the last solve, or
// of a freshly built model over the working dataset when nothing solved yet.
func (s *Server) ModelHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    if solved := s.Solves.Latest(tenant); solved != nil {
        writeJSON(w, 200, solved.Model.Formulation())
        return
    }
    d, _, err := s.currentDataset(r)
    if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
    m, err := opt.Build(&d, nil)
    if err != nil { writeProblem(w, 500, "Build model failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, m.Formulation())
}
