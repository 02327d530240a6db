package api

import (
    "bytes"
    "encoding/json"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "supplyopt/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    t.Setenv("DATABASE_URL", "")
    t.Setenv("REDIS_URL", "")
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

// One producer, one consumer, one period: the optimum is exactly 1000.
func trivialPayload() []byte {
    return []byte(`{
        "T": 1,
        "plants": [
            {"id": "iu1", "type": "integrated_unit", "max_capacity": 1000, "max_production_per_period": 500, "production_cost": 5},
            {"id": "gu1", "type": "grinding_unit", "max_capacity": 500}
        ],
        "routes": [
            {"id": "r1", "origin_id": "iu1", "destination_id": "gu1", "modes": [
                {"mode": "road", "unit_cost": 5, "capacity_per_trip": 100}
            ]}
        ],
        "demand": {"gu1": [100]},
        "options": {"deterministic": true, "time_budget_ms": 10000}
    }`)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body []byte) *httptest.ResponseRecorder {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    h(rr, req)
    return rr
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestOptimizeTrivial(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d (%s)", rr.Code, rr.Body.String()) }
    var resp model.SolveResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil { t.Fatalf("decode: %v", err) }
    if resp.Status != model.StatusOptimal { t.Fatalf("status: %s (%s)", resp.Status, resp.Message) }
    if resp.SolveID == "" { t.Fatal("missing solve_id") }
    if resp.TotalCost == nil || *resp.TotalCost != 1000 { t.Fatalf("total cost: %v", resp.TotalCost) }
    if len(resp.ScheduledTrips) != 1 { t.Fatalf("trips: %d", len(resp.ScheduledTrips)) }
}

func TestOptimizeInfeasibleIs200(t *testing.T) {
    s := newTestServer(t)
    body := bytes.Replace(trivialPayload(), []byte(`"demand": {"gu1": [100]}`), []byte(`"demand": {"gu1": [2000]}`), 1)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", body)
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }
    var resp model.SolveResponse
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if resp.Status != model.StatusInfeasible { t.Fatalf("status: %s", resp.Status) }
    if resp.IsFeasible { t.Fatal("should not be feasible") }
    if len(resp.Issues) == 0 { t.Fatal("expected issues") }
}

func TestOptimizeRejectsBadDataset(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", []byte(`{"T":0,"plants":[],"routes":[],"demand":{}}`))
    if rr.Code != http.StatusBadRequest { t.Fatalf("got %d", rr.Code) }
    var p Problem
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode problem: %v", err) }
    if p.Status != 400 { t.Fatalf("problem status: %d", p.Status) }
}

func TestOptimizeRejectsViewer(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(trivialPayload()))
    req.Header.Set("X-Role", "viewer")
    s.OptimizeHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("got %d, want 403", rr.Code) }
}

func TestOptimizeUploadWithOverlay(t *testing.T) {
    s := newTestServer(t)
    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    _ = mw.WriteField("payload", string(trivialPayload()))
    fw, _ := mw.CreateFormFile("constraints", "constraints.csv")
    // second row is malformed and must surface in errors without aborting
    _, _ = fw.Write([]byte("origin,destination,mode,action,value,period\niu1,gu1,road,max_trips,5,\niu1,gu1,road,bogus,,\n"))
    _ = mw.Close()

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize-with-constraints/upload", &buf)
    req.Header.Set("Content-Type", mw.FormDataContentType())
    s.OptimizeUploadHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("upload: %d (%s)", rr.Code, rr.Body.String()) }
    var resp model.SolveResponse
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if resp.Status != model.StatusOptimal { t.Fatalf("status: %s", resp.Status) }
    if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0], "row 3") {
        t.Fatalf("errors: %v", resp.Errors)
    }
}

func TestInitialDataGeneratesOnFirstContact(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.InitialDataHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/initial-data", nil))
    if rr.Code != 200 { t.Fatalf("initial-data: %d", rr.Code) }
    var ds model.Dataset
    if err := json.Unmarshal(rr.Body.Bytes(), &ds); err != nil { t.Fatalf("decode: %v", err) }
    if ds.T == 0 || len(ds.Plants) == 0 || len(ds.Routes) == 0 { t.Fatalf("empty dataset: %+v", ds) }
    // second call returns the saved copy
    rr2 := httptest.NewRecorder()
    s.InitialDataHandler(rr2, httptest.NewRequest(http.MethodGet, "/v1/initial-data", nil))
    if rr2.Code != 200 { t.Fatalf("initial-data again: %d", rr2.Code) }
}

func TestGenerateTrainingData(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.GenerateHandler, "/v1/generate-training-data", []byte(`{"num_producers":2,"num_consumers":2,"num_periods":4,"seed":7}`))
    if rr.Code != 200 { t.Fatalf("generate: %d", rr.Code) }
    var ds model.Dataset
    if err := json.Unmarshal(rr.Body.Bytes(), &ds); err != nil { t.Fatalf("decode: %v", err) }
    if ds.T != 4 || len(ds.Routes) != 4 { t.Fatalf("dataset: T=%d routes=%d", ds.T, len(ds.Routes)) }
}

func TestDatasetQueryEndpoints(t *testing.T) {
    s := newTestServer(t)
    // seed the working dataset
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SourcesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), "iu1") { t.Fatalf("sources: %d %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.DestinationsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/destinations?source=iu1", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), "gu1") { t.Fatalf("destinations: %d %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.ModesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/modes?source=iu1&destination=gu1", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), "road") { t.Fatalf("modes: %d %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.PeriodsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/periods", nil))
    if rr.Code != 200 { t.Fatalf("periods: %d", rr.Code) }
}

func TestDemandImport(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }

    body := "plant_id,period,quantity\ngu1,0,120\ngu1,9,50\nghost,0,10\n"
    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/demand/import", strings.NewReader(body))
    req.Header.Set("Content-Type", "text/csv")
    s.DemandImportHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("import: %d (%s)", rr.Code, rr.Body.String()) }
    var out struct {
        Applied int      `json:"applied"`
        Errors  []string `json:"errors"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    if out.Applied != 1 { t.Fatalf("applied: %d", out.Applied) }
    if len(out.Errors) != 2 { t.Fatalf("errors: %v", out.Errors) } // period 9 outside T=1, unknown plant

    // merged value is visible on the working dataset, the unknown plant is not
    rr = httptest.NewRecorder()
    s.InitialDataHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/initial-data", nil))
    var ds model.Dataset
    _ = json.Unmarshal(rr.Body.Bytes(), &ds)
    if ds.DemandAt("gu1", 0) != 120 { t.Fatalf("demand: %v", ds.Demand["gu1"]) }
    if _, ok := ds.Demand["ghost"]; ok { t.Fatal("unknown plant saved into demand") }
    if err := ds.Validate(); err != nil { t.Fatalf("dataset no longer valid after import: %v", err) }
}

func TestRouteAnalysisAfterSolve(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.RouteAnalysisHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/route-analysis?source=iu1&destination=gu1&mode=road&period=0", nil))
    if rr.Code != 200 { t.Fatalf("route-analysis: %d (%s)", rr.Code, rr.Body.String()) }
    var an model.RouteAnalysis
    if err := json.Unmarshal(rr.Body.Bytes(), &an); err != nil { t.Fatalf("decode: %v", err) }
    if an.RouteID != "r1" || an.Mode != "road" { t.Fatalf("analysis: %+v", an) }
    if len(an.DecisionVariables) == 0 { t.Fatal("expected decision variables") }
}

func TestRouteAnalysisWithoutSolve(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.RouteAnalysisHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/route-analysis?source=iu1&destination=gu1&mode=road", nil))
    if rr.Code != 404 { t.Fatalf("got %d, want 404", rr.Code) }
}

func TestModelView(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ModelHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
    if rr.Code != 200 { t.Fatalf("model: %d", rr.Code) }
    var f model.Formulation
    if err := json.Unmarshal(rr.Body.Bytes(), &f); err != nil { t.Fatalf("decode: %v", err) }
    if f.NumVariables == 0 || f.NumConstraints == 0 { t.Fatalf("formulation: %+v", f) }
    if !strings.HasPrefix(f.Objective, "minimize ") { t.Fatalf("objective: %s", f.Objective) }
}

func TestScenarioLifecycle(t *testing.T) {
    s := newTestServer(t)
    // seed working dataset via optimize, then snapshot it
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }

    rr = postJSON(t, s.ScenariosHandler, "/v1/scenarios", []byte(`{"name":"baseline"}`))
    if rr.Code != 201 { t.Fatalf("create scenario: %d (%s)", rr.Code, rr.Body.String()) }
    var sc model.Scenario
    if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil { t.Fatalf("decode: %v", err) }
    if sc.ID == "" || sc.Name != "baseline" { t.Fatalf("scenario: %+v", sc) }

    rr = httptest.NewRecorder()
    s.ScenariosHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios?limit=10", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), sc.ID) { t.Fatalf("list: %d %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.ScenarioByIDHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+sc.ID+"/load", nil))
    if rr.Code != 200 { t.Fatalf("load: %d (%s)", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.ScenarioByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/scenarios/"+sc.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.ScenarioByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sc.ID, nil))
    if rr.Code != 404 { t.Fatalf("get deleted: %d", rr.Code) }
}

func TestSolveHistoryAndMetrics(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", trivialPayload())
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }
    var resp model.SolveResponse
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)

    rr = httptest.NewRecorder()
    s.SolvesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), resp.SolveID) { t.Fatalf("solves: %d %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.SolveByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves/"+resp.SolveID, nil))
    if rr.Code != 200 { t.Fatalf("solve by id: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SolveMetricsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/solve-metrics", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), resp.SolveID) { t.Fatalf("metrics: %d %s", rr.Code, rr.Body.String()) }
}

func TestSolverConfigMerge(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/solver/config", strings.NewReader(`{"config":{"timeBudgetMs":5000}}`))
    s.AdminSolverConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("put config: %d (%s)", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.SolverConfigHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solver/config", nil))
    if rr.Code != 200 { t.Fatalf("get config: %d", rr.Code) }
    var out struct{ Defaults map[string]any `json:"defaults"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    if v, _ := out.Defaults["timeBudgetMs"].(float64); v != 5000 { t.Fatalf("merged config: %v", out.Defaults) }
}

// Demand is coverable without the safety stock but not with it held hard:
// a stored strictSafetyStock override must flip the same payload from
// Optimal to Infeasible.
func TestStoredSolverConfigAppliedToSolves(t *testing.T) {
    s := newTestServer(t)
    payload := []byte(`{
        "T": 1,
        "plants": [
            {"id": "iu1", "type": "integrated_unit", "max_capacity": 1000, "max_production_per_period": 300, "production_cost": 5},
            {"id": "gu1", "type": "grinding_unit", "max_capacity": 500, "safety_stock": 400}
        ],
        "routes": [
            {"id": "r1", "origin_id": "iu1", "destination_id": "gu1", "modes": [
                {"mode": "road", "unit_cost": 5, "capacity_per_trip": 100}
            ]}
        ],
        "demand": {"gu1": [100]},
        "options": {"deterministic": true, "time_budget_ms": 10000}
    }`)
    rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", payload)
    if rr.Code != 200 { t.Fatalf("optimize: %d (%s)", rr.Code, rr.Body.String()) }
    var resp model.SolveResponse
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if resp.Status != model.StatusOptimal { t.Fatalf("soft solve status: %s", resp.Status) }

    rr = httptest.NewRecorder()
    s.AdminSolverConfigHandler(rr, httptest.NewRequest(http.MethodPut, "/v1/admin/solver/config", strings.NewReader(`{"config":{"strictSafetyStock":true,"timeBudgetMs":5000}}`)))
    if rr.Code != 200 { t.Fatalf("put config: %d (%s)", rr.Code, rr.Body.String()) }

    rr = postJSON(t, s.OptimizeHandler, "/v1/optimize", payload)
    if rr.Code != 200 { t.Fatalf("optimize: %d (%s)", rr.Code, rr.Body.String()) }
    resp = model.SolveResponse{}
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if resp.Status != model.StatusInfeasible { t.Fatalf("strict solve status: %s, want Infeasible", resp.Status) }
}

func TestMergeSolverConfigPrecedence(t *testing.T) {
    o := &model.SolveOptions{TimeBudgetMs: 1234}
    mergeSolverConfig(o, map[string]any{"timeBudgetMs": float64(9000), "threads": float64(2), "deterministic": true})
    if o.TimeBudgetMs != 1234 { t.Fatalf("request value overridden: %d", o.TimeBudgetMs) }
    if o.Threads != 2 || !o.Deterministic { t.Fatalf("config not merged: %+v", o) }
}

func TestSubscriptionsCRUD(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", []byte(`{"url":"https://example.com/hook","events":["solve.completed"],"secret":"sh"}`))
    if rr.Code != 201 { t.Fatalf("create sub: %d (%s)", rr.Code, rr.Body.String()) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)
    if sub.ID == "" { t.Fatal("missing id") }

    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), sub.ID) { t.Fatalf("list subs: %d %s", rr.Code, rr.Body.String()) }
    if strings.Contains(rr.Body.String(), "\"sh\"") { t.Fatal("secret must not be serialized") }

    rr = httptest.NewRecorder()
    s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete sub: %d", rr.Code) }
}

func TestValidateSolveOptions(t *testing.T) {
    if err := validateSolveOptions(nil); err != nil { t.Fatalf("nil: %v", err) }
    if err := validateSolveOptions(&model.SolveOptions{MIPGap: 1.5}); err == nil { t.Fatal("want mip_gap error") }
    if err := validateSolveOptions(&model.SolveOptions{TimeBudgetMs: -1}); err == nil { t.Fatal("want time budget error") }
    if err := validateSolveOptions(&model.SolveOptions{Threads: 4, Seed: 9}); err != nil { t.Fatalf("valid: %v", err) }
}
