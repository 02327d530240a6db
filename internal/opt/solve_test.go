package opt

import (
    "context"
    "math"
    "strings"
    "testing"

    "supplyopt/internal/model"
)

func det() *model.SolveOptions {
    return &model.SolveOptions{Deterministic: true, TimeBudgetMs: 10000}
}

func solveDataset(t *testing.T, ds *model.Dataset, opts *model.SolveOptions) (*Model, *Raw) {
    t.Helper()
    m, err := Build(ds, opts)
    if err != nil { t.Fatalf("Build: %v", err) }
    raw, err := Solve(context.Background(), m, opts)
    if err != nil { t.Fatalf("Solve: %v", err) }
    return m, raw
}

// One producer, one consumer, one period: produce 100 at cost 5 and ship 100
// at cost 5 with no holding. The optimum is exactly 1000.
func trivialDataset() *model.Dataset {
    return &model.Dataset{
        T: 1,
        Plants: []model.Plant{
            {ID: "iu1", Type: model.PlantTypeIntegrated, MaxCapacity: 1000, MaxProductionPerPeriod: f(500), ProductionCost: 5},
            {ID: "gu1", Type: model.PlantTypeGrinding, MaxCapacity: 500},
        },
        Routes: []model.TransportRoute{
            {ID: "r1", OriginID: "iu1", DestinationID: "gu1", Modes: []model.RouteMode{
                {Mode: "road", UnitCost: 5, CapacityPerTrip: 100},
            }},
        },
        Demand: map[string][]float64{"gu1": {100}},
    }
}

func TestSolveTrivialOptimal(t *testing.T) {
    m, raw := solveDataset(t, trivialDataset(), det())
    if raw.Status != model.StatusOptimal { t.Fatalf("status: %s (%s)", raw.Status, raw.Message) }
    resp := Interpret(m, raw)
    if !resp.IsFeasible { t.Fatal("expected feasible") }
    if resp.TotalCost == nil || math.Abs(*resp.TotalCost-1000) > 1e-6 {
        t.Fatalf("total cost: got %v, want 1000", resp.TotalCost)
    }
    if len(resp.ScheduledTrips) != 1 { t.Fatalf("trips: got %d, want 1", len(resp.ScheduledTrips)) }
    tr := resp.ScheduledTrips[0]
    if tr.NumTrips != 1 || math.Abs(tr.QuantityShipped-100) > 1e-6 {
        t.Fatalf("trip: %+v", tr)
    }
}

func TestSolveInfeasible(t *testing.T) {
    ds := trivialDataset()
    ds.Demand["gu1"] = []float64{2000} // beyond any production or stock
    m, raw := solveDataset(t, ds, det())
    if raw.Status != model.StatusInfeasible { t.Fatalf("status: %s", raw.Status) }
    resp := Interpret(m, raw)
    if resp.IsFeasible { t.Fatal("expected infeasible") }
    if resp.TotalCost != nil { t.Fatal("total cost must be null when infeasible") }
    if len(resp.ScheduledTrips) != 0 { t.Fatal("no trips expected") }
    if len(resp.Issues) == 0 { t.Fatal("expected human-readable issues") }
}

func TestSolveIdempotent(t *testing.T) {
    _, raw1 := solveDataset(t, Generate(GenSpec{Producers: 2, Consumers: 2, Periods: 6, Seed: 7}), det())
    _, raw2 := solveDataset(t, Generate(GenSpec{Producers: 2, Consumers: 2, Periods: 6, Seed: 7}), det())
    if raw1.Status != model.StatusOptimal || raw2.Status != model.StatusOptimal {
        t.Fatalf("status: %s / %s", raw1.Status, raw2.Status)
    }
    if math.Abs(raw1.Objective-raw2.Objective) > 1e-6 {
        t.Fatalf("objective drift: %g vs %g", raw1.Objective, raw2.Objective)
    }
}

func TestSolvePropertiesOnGenerated(t *testing.T) {
    ds := Generate(GenSpec{Producers: 2, Consumers: 3, Periods: 8, Seed: 11})
    m, raw := solveDataset(t, ds, det())
    if raw.Status != model.StatusOptimal { t.Fatalf("status: %s (%s)", raw.Status, raw.Message) }
    resp := Interpret(m, raw)

    for _, d := range resp.Diagnostics {
        if d.Class == "safety_stock" { continue } // soft by default
        if !d.Satisfied { t.Fatalf("violated %s: lhs=%g rhs=%g", d.Name, d.LHS, d.RHS) }
    }
    bd := resp.CostBreakdown
    if sum := bd.ProductionCostTotal + bd.TransportCostTotal + bd.HoldingCostTotal; sum != bd.TotalCost {
        t.Fatalf("breakdown does not sum: %g != %g", sum, bd.TotalCost)
    }
    // every shipment respects min batch and dispatched trip capacity
    for _, tr := range resp.ScheduledTrips {
        r := ds.Route(tr.RouteID)
        if r.MinBatchQty > 0 && tr.QuantityShipped < r.MinBatchQty-1e-6 {
            t.Fatalf("batch violation on %s: %g < %g", tr.RouteID, tr.QuantityShipped, r.MinBatchQty)
        }
        rm := routeMode(r, tr.Mode)
        if tr.QuantityShipped > float64(tr.NumTrips)*rm.CapacityPerTrip+1e-6 {
            t.Fatalf("capacity violation on %s: %g > %d*%g", tr.RouteID, tr.QuantityShipped, tr.NumTrips, rm.CapacityPerTrip)
        }
    }
}

func TestSolveMassBalanceHolds(t *testing.T) {
    ds := Generate(GenSpec{Producers: 1, Consumers: 2, Periods: 5, Seed: 3})
    m, raw := solveDataset(t, ds, det())
    if raw.Status != model.StatusOptimal { t.Fatalf("status: %s", raw.Status) }
    for _, r := range m.Rows() {
        if r.Kind != RowMassBalance { continue }
        if lhs := m.RowLHS(r, raw.Values); math.Abs(lhs-r.Upper) > 1e-5 {
            t.Fatalf("%s: lhs %g != rhs %g", m.RowName(r), lhs, r.Upper)
        }
    }
}

// A chain a -> b -> c where b has almost no storage: demand at c is only
// coverable by forwarding a's stock through b within the same period.
func TestSolveTransshipmentFlowThrough(t *testing.T) {
    ds := &model.Dataset{
        T: 1,
        Plants: []model.Plant{
            {ID: "a", Type: model.PlantTypeIntegrated, MaxCapacity: 500, InitialInventory: 500, MaxProductionPerPeriod: f(0)},
            {ID: "b", Type: model.PlantTypeGrinding, MaxCapacity: 10},
            {ID: "c", Type: model.PlantTypeGrinding, MaxCapacity: 500},
        },
        Routes: []model.TransportRoute{
            {ID: "r1", OriginID: "a", DestinationID: "b", Modes: []model.RouteMode{{Mode: "rail", UnitCost: 1, CapacityPerTrip: 100}}},
            {ID: "r2", OriginID: "b", DestinationID: "c", Modes: []model.RouteMode{{Mode: "rail", UnitCost: 1, CapacityPerTrip: 100}}},
        },
        Demand: map[string][]float64{"c": {500}},
    }
    m, raw := solveDataset(t, ds, det())
    if raw.Status != model.StatusOptimal { t.Fatalf("status: %s (%s)", raw.Status, raw.Message) }
    resp := Interpret(m, raw)
    if resp.TotalCost == nil || math.Abs(*resp.TotalCost-1000) > 1e-6 {
        t.Fatalf("total cost: got %v, want 1000", resp.TotalCost)
    }
    shipped := map[string]float64{}
    for _, tr := range resp.ScheduledTrips {
        shipped[tr.RouteID] += tr.QuantityShipped
    }
    if math.Abs(shipped["r1"]-500) > 1e-6 || math.Abs(shipped["r2"]-500) > 1e-6 {
        t.Fatalf("flow-through quantities: %+v", shipped)
    }
}

func TestOverlayBanReroutesToOtherMode(t *testing.T) {
    // unconstrained, rail wins on cost
    m, raw := solveDataset(t, trivialDatasetTwoModes(), det())
    if raw.Status != model.StatusOptimal { t.Fatalf("status: %s", raw.Status) }
    usedRail := false
    for _, tr := range Interpret(m, raw).ScheduledTrips {
        if tr.Mode == "rail" { usedRail = true }
    }
    if !usedRail { t.Fatal("expected the cheaper rail mode in the unconstrained solve") }

    m2, err := Build(trivialDatasetTwoModes(), det())
    if err != nil { t.Fatalf("Build: %v", err) }
    rules, perr := ParseOverlay(strings.NewReader("iu1,gu1,rail,ban,,\n"))
    if len(perr) != 0 { t.Fatalf("parse errors: %v", perr) }
    if applied, aerr := m2.ApplyOverlay(rules); applied == 0 || len(aerr) != 0 {
        t.Fatalf("apply: %d %v", applied, aerr)
    }
    raw2, err := Solve(context.Background(), m2, det())
    if err != nil { t.Fatalf("Solve: %v", err) }
    if raw2.Status != model.StatusOptimal { t.Fatalf("status: %s, want Optimal on the remaining mode", raw2.Status) }
    resp := Interpret(m2, raw2)
    total := 0.0
    for _, tr := range resp.ScheduledTrips {
        if tr.Mode == "rail" { t.Fatalf("banned mode still scheduled: %+v", tr) }
        total += tr.QuantityShipped
    }
    if math.Abs(total-100) > 1e-6 { t.Fatalf("demand not rerouted: shipped %g", total) }
}

func trivialDatasetTwoModes() *model.Dataset {
    ds := trivialDataset()
    ds.Routes[0].Modes = []model.RouteMode{
        {Mode: "rail", UnitCost: 2, CapacityPerTrip: 100},
        {Mode: "road", UnitCost: 5, CapacityPerTrip: 100},
    }
    return ds
}

func TestOverlayBanForcesInfeasible(t *testing.T) {
    ds := trivialDataset()
    m, err := Build(ds, det())
    if err != nil { t.Fatalf("Build: %v", err) }
    rules, perr := ParseOverlay(strings.NewReader("iu1,,,ban,,\n"))
    if len(perr) != 0 { t.Fatalf("parse errors: %v", perr) }
    applied, aerr := m.ApplyOverlay(rules)
    if applied != 1 || len(aerr) != 0 { t.Fatalf("apply: %d %v", applied, aerr) }
    raw, err := Solve(context.Background(), m, det())
    if err != nil { t.Fatalf("Solve: %v", err) }
    if raw.Status != model.StatusInfeasible { t.Fatalf("status: %s, want Infeasible", raw.Status) }
}

func TestSolveRouteAnalysis(t *testing.T) {
    m, raw := solveDataset(t, trivialDataset(), det())
    s := &Solved{Model: m, Values: raw.Values, Response: Interpret(m, raw)}
    ra, err := AnalyzeRoute(s, "r1", "road", 0)
    if err != nil { t.Fatalf("AnalyzeRoute: %v", err) }
    if ra.OriginID != "iu1" || ra.DestinationID != "gu1" { t.Fatalf("endpoints: %+v", ra) }
    if v := ra.DecisionVariables["qty[0,r1,road]"]; math.Abs(v-100) > 1e-6 {
        t.Fatalf("qty: got %g, want 100", v)
    }
    if v := ra.ObjectiveTerms["qty[0,r1,road]"]; math.Abs(v-500) > 1e-6 {
        t.Fatalf("objective term: got %g, want 500", v)
    }
    if len(ra.MassBalance) != 2 { t.Fatalf("mass balance rows: got %d, want 2", len(ra.MassBalance)) }
    if _, err := AnalyzeRoute(s, "r1", "air", 0); err == nil { t.Fatal("unknown mode should error") }
    if _, err := AnalyzeRoute(s, "nope", "road", 0); err == nil { t.Fatal("unknown route should error") }
}
