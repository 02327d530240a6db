package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "supplyopt/internal/model"
    "supplyopt/internal/store"
    "supplyopt/internal/webhooks"
)

// ScenariosHandler handles POST/GET /v1/scenarios
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
        var req struct {
            Name    string         `json:"name"`
            Dataset *model.Dataset `json:"dataset,omitempty"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if strings.TrimSpace(req.Name) == "" { writeProblem(w, 400, "Missing name", "", r.URL.Path); return }
        ds := req.Dataset
        if ds == nil {
            // snapshot the working dataset
            cur, _, err := s.currentDataset(r)
            if err != nil { writeProblem(w, 500, "Load dataset failed", err.Error(), r.URL.Path); return }
            ds = &cur
        }
        if err := ds.Validate(); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid dataset", err.Error(), r.URL.Path)
            return
        }
        sc, err := s.Store.CreateScenario(r.Context(), p.Tenant, req.Name, *ds)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create scenario failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventScenarioCreated, map[string]any{"scenarioId": sc.ID, "name": sc.Name})
        writeJSON(w, http.StatusCreated, sc)
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListScenarios(r.Context(), tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List scenarios failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// ScenarioByIDHandler handles GET/DELETE /v1/scenarios/{id} and
// POST /v1/scenarios/{id}/load (make the scenario the working dataset).
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/scenarios/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    _, tenant := s.withTenant(r)

    if len(parts) > 1 && parts[1] == "load" {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        p := s.getPrincipal(r)
        if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
        sc, err := s.Store.GetScenario(r.Context(), tenant, id)
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", id, r.URL.Path); return }
        if err != nil { writeProblem(w, 500, "Load scenario failed", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveDataset(r.Context(), tenant, sc.Dataset); err != nil {
            writeProblem(w, 500, "Save dataset failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, 200, map[string]any{"loaded": sc.ID, "name": sc.Name})
        return
    }

    switch r.Method {
    case http.MethodGet:
        sc, err := s.Store.GetScenario(r.Context(), tenant, id)
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", id, r.URL.Path); return }
        if err != nil { writeProblem(w, 500, "Get scenario failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, sc)
    case http.MethodDelete:
        p := s.getPrincipal(r)
        if !p.CanWrite() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
        if err := s.Store.DeleteScenario(r.Context(), tenant, id); err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", id, r.URL.Path); return }
            writeProblem(w, 500, "Delete scenario failed", err.Error(), r.URL.Path)
            return
        }
        w.WriteHeader(204)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}
