package opt

import (
    "math"
    "strings"
    "testing"

    "supplyopt/internal/model"
)

func f(v float64) *float64 { return &v }

func smallDataset() *model.Dataset {
    return &model.Dataset{
        T: 2,
        Plants: []model.Plant{
            {ID: "iu1", Type: model.PlantTypeIntegrated, MaxCapacity: 1000, InitialInventory: 200, MaxProductionPerPeriod: f(300), HoldingCost: 1, ProductionCost: 10},
            {ID: "gu1", Type: model.PlantTypeGrinding, MaxCapacity: 400, SafetyStock: 50, HoldingCost: 2},
        },
        Routes: []model.TransportRoute{
            {ID: "r1", OriginID: "iu1", DestinationID: "gu1", MinBatchQty: 50, Modes: []model.RouteMode{
                {Mode: "rail", UnitCost: 3, CapacityPerTrip: 100},
                {Mode: "road", UnitCost: 5, CapacityPerTrip: 40},
            }},
        },
        Demand: map[string][]float64{"gu1": {100, 150}},
    }
}

func TestBuildColumns(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    // per period: 2 modes * (trips+qty+used) = 6 arc columns, 1 production,
    // 2 inventory; times 2 periods.
    if got := len(m.Vars()); got != 18 { t.Fatalf("columns: got %d, want 18", got) }
    nInt := 0
    for _, v := range m.Vars() {
        if v.Integer { nInt++ }
    }
    if nInt != 8 { t.Fatalf("integer columns: got %d, want 8", nInt) }
    tc, ok := m.TripsCol(1, "r1", "rail")
    if !ok { t.Fatal("trips column for (1,r1,rail) missing") }
    v := m.Vars()[tc]
    // total supply = 200 opening + 300*2 production = 800; ceil(800/100) = 8
    if v.Upper != 8 { t.Fatalf("trips upper: got %g, want 8", v.Upper) }
    qc, _ := m.QtyCol(1, "r1", "rail")
    if up := m.Vars()[qc].Upper; up != 800 { t.Fatalf("qty upper: got %g, want 800", up) }
}

// Flow-through is legal: a plant may forward inbound material within the
// same period, so arc bounds must not be capped by the origin's own storage
// plus production.
func TestBuildTransshipmentBounds(t *testing.T) {
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
    m, err := Build(ds, nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    tc, _ := m.TripsCol(0, "r2", "rail")
    if up := m.Vars()[tc].Upper; up != 5 { t.Fatalf("r2 trips upper: got %g, want 5", up) }
    qc, _ := m.QtyCol(0, "r2", "rail")
    if up := m.Vars()[qc].Upper; up != 500 { t.Fatalf("r2 qty upper: got %g, want 500", up) }
}

func TestBuildMassBalanceRHS(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    var rows []Row
    for _, r := range m.Rows() {
        if r.Kind == RowMassBalance { rows = append(rows, r) }
    }
    if len(rows) != 4 { t.Fatalf("mass balance rows: got %d, want 4", len(rows)) }
    for _, r := range rows {
        if r.Lower != r.Upper { t.Fatalf("%s: not an equality", m.RowName(r)) }
        want := -m.Data.DemandAt(r.PlantID, r.Period)
        if r.Period == 0 { want += m.Data.Plant(r.PlantID).InitialInventory }
        if r.Upper != want { t.Fatalf("%s: rhs got %g, want %g", m.RowName(r), r.Upper, want) }
    }
}

func TestBuildBatchingRows(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    nMin, nLink := 0, 0
    for _, r := range m.Rows() {
        switch r.Kind {
        case RowBatchMin:
            nMin++
            if r.Lower != 0 || !math.IsInf(r.Upper, 1) { t.Fatalf("%s: wrong bounds", m.RowName(r)) }
        case RowBatchLink:
            nLink++
        }
    }
    // 2 modes * 2 periods each
    if nMin != 4 || nLink != 4 { t.Fatalf("batching rows: got %d/%d, want 4/4", nMin, nLink) }
}

func TestStrictSafetyStockBounds(t *testing.T) {
    ds := smallDataset()
    m, err := Build(ds, &model.SolveOptions{StrictSafetyStock: true})
    if err != nil { t.Fatalf("Build: %v", err) }
    c, _ := m.InventoryCol(0, "gu1")
    if lb := m.Vars()[c].Lower; lb != 50 { t.Fatalf("strict inventory lower: got %g, want 50", lb) }
    m2, _ := Build(smallDataset(), nil)
    c2, _ := m2.InventoryCol(0, "gu1")
    if lb := m2.Vars()[c2].Lower; lb != 0 { t.Fatalf("soft inventory lower: got %g, want 0", lb) }
}

func TestFormulationRendering(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    form := m.Formulation()
    if form.NumVariables != 18 || form.NumIntegers != 8 { t.Fatalf("counts: %d vars %d ints", form.NumVariables, form.NumIntegers) }
    if !strings.HasPrefix(form.Objective, "minimize ") { t.Fatalf("objective: %q", form.Objective) }
    if !strings.Contains(form.Objective, "3*qty[0,r1,rail]") { t.Fatalf("objective missing transport term: %q", form.Objective) }
    found := false
    for _, c := range form.Constraints {
        if strings.HasPrefix(c, "mass_balance[0,gu1]: ") && strings.Contains(c, "inventory[0,gu1]") {
            found = true
            if !strings.Contains(c, "= -100") { t.Fatalf("rhs should fold initial inventory minus demand: %q", c) }
        }
    }
    if !found { t.Fatal("mass_balance[0,gu1] not rendered") }
}

func TestRowEquationSigns(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    for _, r := range m.Rows() {
        if r.Kind == RowTripCap && r.Period == 0 && r.Mode == "rail" {
            eq := m.RowEquation(r)
            if eq != "qty[0,r1,rail] - 100*trips[0,r1,rail] <= 0" { t.Fatalf("equation: %q", eq) }
            return
        }
    }
    t.Fatal("trip capacity row not found")
}
