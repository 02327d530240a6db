package opt

import (
    "fmt"
    "math"
    "sort"

    "supplyopt/internal/model"
)

const feasTol = 1e-6

// Solved bundles a model with the primal values of its last solve. The query
// endpoints (route analysis, model view) project out of this bundle so they
// always describe the exact problem that was solved.
type Solved struct {
    Model    *Model
    Values   []float64
    Response *model.SolveResponse
}

// Interpret turns a raw solver outcome into the public response shape. For
// outcomes without a usable solution it returns the empty-but-explicit form
// (no trips, nil total cost, human-readable issues).
func Interpret(m *Model, raw *Raw) *model.SolveResponse {
    resp := &model.SolveResponse{
        Status:         raw.Status,
        ScheduledTrips: []model.ScheduledTrip{},
        Message:        raw.Message,
    }
    if !raw.HasValues() {
        resp.IsFeasible = false
        switch raw.Status {
        case model.StatusInfeasible:
            resp.Issues = append(resp.Issues, "demand cannot be met within the capacity, production and batching limits")
        case model.StatusUnbounded:
            resp.Issues = append(resp.Issues, "the model admits arbitrarily good solutions; a cost coefficient is likely wrong")
        case model.StatusTimedOut:
            resp.Issues = append(resp.Issues, "no feasible schedule found within the time budget")
        }
        return resp
    }

    resp.IsFeasible = true
    resp.ScheduledTrips = extractTrips(m, raw.Values)
    bd := costBreakdown(m, raw.Values)
    resp.CostBreakdown = &bd
    resp.TotalCost = &bd.TotalCost
    resp.PlantMetrics = plantMetrics(m, raw.Values)
    resp.PeriodMetrics = periodMetrics(m, raw.Values, resp.ScheduledTrips)
    resp.Diagnostics = diagnostics(m, raw.Values)
    resp.Warnings = safetyWarnings(m, raw.Values)
    return resp
}

func extractTrips(m *Model, values []float64) []model.ScheduledTrip {
    ds := m.Data
    var out []model.ScheduledTrip
    for t := 0; t < ds.T; t++ {
        for ri := range ds.Routes {
            r := &ds.Routes[ri]
            for mi := range r.Modes {
                mode := r.Modes[mi].Mode
                tc, _ := m.TripsCol(t, r.ID, mode)
                qc, _ := m.QtyCol(t, r.ID, mode)
                n := int(math.Round(values[tc]))
                if n <= 0 {
                    continue
                }
                out = append(out, model.ScheduledTrip{
                    Period:          t,
                    RouteID:         r.ID,
                    OriginID:        r.OriginID,
                    DestinationID:   r.DestinationID,
                    Mode:            mode,
                    NumTrips:        n,
                    QuantityShipped: values[qc],
                })
            }
        }
    }
    if out == nil {
        out = []model.ScheduledTrip{}
    }
    return out
}

// costBreakdown recomputes the three objective terms from the primal values.
// TotalCost is their sum, so the decomposition always adds up exactly even
// when it drifts from the solver's reported objective by a tolerance.
func costBreakdown(m *Model, values []float64) model.CostBreakdown {
    var bd model.CostBreakdown
    for _, v := range m.Vars() {
        term := v.Cost * values[v.Col]
        switch v.Kind {
        case VarProduction:
            bd.ProductionCostTotal += term
        case VarQty:
            bd.TransportCostTotal += term
        case VarInventory:
            bd.HoldingCostTotal += term
        }
    }
    bd.TotalCost = bd.ProductionCostTotal + bd.TransportCostTotal + bd.HoldingCostTotal
    return bd
}

func plantMetrics(m *Model, values []float64) []model.PlantMetrics {
    ds := m.Data
    out := make([]model.PlantMetrics, 0, len(ds.Plants))
    for pi := range ds.Plants {
        p := &ds.Plants[pi]
        pm := model.PlantMetrics{PlantID: p.ID}
        invSum := 0.0
        for t := 0; t < ds.T; t++ {
            if c, ok := m.ProductionCol(t, p.ID); ok {
                pm.TotalProduction += values[c]
            }
            if c, ok := m.InventoryCol(t, p.ID); ok {
                invSum += values[c]
            }
        }
        pm.AverageInventory = invSum / float64(ds.T)
        if p.MaxCapacity > 0 {
            pm.CapacityUtilization = pm.AverageInventory / p.MaxCapacity
        }
        out = append(out, pm)
    }
    return out
}

func periodMetrics(m *Model, values []float64, trips []model.ScheduledTrip) []model.PeriodMetrics {
    ds := m.Data
    out := make([]model.PeriodMetrics, ds.T)
    for t := range out {
        out[t].Period = t
    }
    for pi := range ds.Plants {
        for t := 0; t < ds.T; t++ {
            if c, ok := m.ProductionCol(t, ds.Plants[pi].ID); ok {
                out[t].TotalProduction += values[c]
            }
        }
    }
    for _, tr := range trips {
        out[tr.Period].TotalTransportQty += tr.QuantityShipped
        out[tr.Period].TripCount += tr.NumTrips
    }
    return out
}

// diagnostics re-evaluates every structural constraint against the primal
// values, independently of the solver's own feasibility claim.
func diagnostics(m *Model, values []float64) []model.ConstraintDiagnostic {
    var out []model.ConstraintDiagnostic
    for _, r := range m.Rows() {
        lhs := m.RowLHS(r, values)
        d := model.ConstraintDiagnostic{
            Name:     m.RowName(r),
            Equation: m.RowEquation(r),
            LHS:      lhs,
        }
        switch {
        case r.Lower == r.Upper:
            d.RHS = r.Upper
            d.Slack = 0
            d.Satisfied = math.Abs(lhs-r.Upper) <= feasTol
        case math.IsInf(r.Lower, -1):
            d.RHS = r.Upper
            d.Slack = r.Upper - lhs
            d.Satisfied = lhs <= r.Upper+feasTol
        default:
            d.RHS = r.Lower
            d.Slack = lhs - r.Lower
            d.Satisfied = lhs >= r.Lower-feasTol
        }
        switch r.Kind {
        case RowMassBalance:
            d.Class = "mass_balance"
        case RowTripCap:
            d.Class = "capacity"
            // utilization of the dispatched trip capacity
            cap := -r.Coefs[1] * values[r.Cols[1]]
            if cap > 0 {
                d.UtilizationPct = 100 * values[r.Cols[0]] / cap
            }
        default:
            d.Class = "batching"
        }
        out = append(out, d)
    }
    // Storage capacity per (plant, period), from the inventory column bounds.
    ds := m.Data
    for pi := range ds.Plants {
        p := &ds.Plants[pi]
        if p.MaxCapacity <= 0 {
            continue
        }
        for t := 0; t < ds.T; t++ {
            c, _ := m.InventoryCol(t, p.ID)
            inv := values[c]
            out = append(out, model.ConstraintDiagnostic{
                Class:          "capacity",
                Name:           fmt.Sprintf("storage_capacity[%d,%s]", t, p.ID),
                Equation:       fmt.Sprintf("%s <= %g", m.VarName(c), p.MaxCapacity),
                LHS:            inv,
                RHS:            p.MaxCapacity,
                Satisfied:      inv <= p.MaxCapacity+feasTol,
                Slack:          p.MaxCapacity - inv,
                UtilizationPct: 100 * inv / p.MaxCapacity,
            })
        }
    }
    // Safety stock is diagnostic-only unless strict mode made it a bound.
    for pi := range ds.Plants {
        p := &ds.Plants[pi]
        if p.SafetyStock <= 0 {
            continue
        }
        for t := 0; t < ds.T; t++ {
            c, _ := m.InventoryCol(t, p.ID)
            inv := values[c]
            out = append(out, model.ConstraintDiagnostic{
                Class:     "safety_stock",
                Name:      fmt.Sprintf("safety_stock[%d,%s]", t, p.ID),
                Equation:  fmt.Sprintf("%s >= %g", m.VarName(c), p.SafetyStock),
                LHS:       inv,
                RHS:       p.SafetyStock,
                Satisfied: inv >= p.SafetyStock-feasTol,
                Slack:     inv - p.SafetyStock,
            })
        }
    }
    sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out
}

func safetyWarnings(m *Model, values []float64) []string {
    ds := m.Data
    var out []string
    for pi := range ds.Plants {
        p := &ds.Plants[pi]
        if p.SafetyStock <= 0 {
            continue
        }
        for t := 0; t < ds.T; t++ {
            c, _ := m.InventoryCol(t, p.ID)
            if inv := values[c]; inv < p.SafetyStock-feasTol {
                out = append(out, fmt.Sprintf("plant %s inventory %.1f below safety stock %.1f in period %d", p.ID, inv, p.SafetyStock, t))
            }
        }
    }
    return out
}

// AnalyzeRoute projects the decision variables, objective contributions and
// constraints touching one (route, mode, period) tuple out of a solved model.
func AnalyzeRoute(s *Solved, routeID, mode string, period int) (*model.RouteAnalysis, error) {
    m := s.Model
    r := m.Data.Route(routeID)
    if r == nil {
        return nil, fmt.Errorf("unknown route %q", routeID)
    }
    if period < 0 || period >= m.Data.T {
        return nil, fmt.Errorf("period %d outside horizon [0,%d)", period, m.Data.T)
    }
    tc, ok := m.TripsCol(period, routeID, mode)
    if !ok {
        return nil, fmt.Errorf("route %q has no mode %q", routeID, mode)
    }
    qc, _ := m.QtyCol(period, routeID, mode)

    ra := &model.RouteAnalysis{
        RouteID:           routeID,
        OriginID:          r.OriginID,
        DestinationID:     r.DestinationID,
        Mode:              mode,
        Period:            period,
        DecisionVariables: map[string]float64{},
        ObjectiveTerms:    map[string]float64{},
        Metrics:           map[string]float64{},
    }
    for _, col := range []int{tc, qc} {
        ra.DecisionVariables[m.VarName(col)] = s.Values[col]
    }
    v := m.Vars()[qc]
    ra.ObjectiveTerms[m.VarName(qc)] = v.Cost * s.Values[qc]

    for _, row := range m.Rows() {
        if row.RouteID == routeID && row.Mode == mode && row.Period == period {
            ra.Constraints = append(ra.Constraints, rowDiag(m, row, s.Values))
        }
        if row.Kind == RowMassBalance && row.Period == period &&
            (row.PlantID == r.OriginID || row.PlantID == r.DestinationID) {
            ra.MassBalance = append(ra.MassBalance, rowDiag(m, row, s.Values))
        }
    }

    trips := s.Values[tc]
    qty := s.Values[qc]
    ra.Metrics["trips"] = trips
    ra.Metrics["quantity_shipped"] = qty
    if rm := routeMode(r, mode); rm != nil && trips > 0 {
        ra.Metrics["capacity_utilization"] = qty / (trips * rm.CapacityPerTrip)
        ra.Metrics["transport_cost"] = rm.UnitCost * qty
    }
    return ra, nil
}

func routeMode(r *model.TransportRoute, mode string) *model.RouteMode {
    for i := range r.Modes {
        if r.Modes[i].Mode == mode {
            return &r.Modes[i]
        }
    }
    return nil
}

func rowDiag(m *Model, r Row, values []float64) model.ConstraintDiagnostic {
    lhs := m.RowLHS(r, values)
    d := model.ConstraintDiagnostic{
        Name:     m.RowName(r),
        Equation: m.RowEquation(r),
        LHS:      lhs,
    }
    switch r.Kind {
    case RowMassBalance:
        d.Class = "mass_balance"
    case RowTripCap:
        d.Class = "capacity"
    default:
        d.Class = "batching"
    }
    switch {
    case r.Lower == r.Upper:
        d.RHS = r.Upper
        d.Satisfied = math.Abs(lhs-r.Upper) <= feasTol
    case math.IsInf(r.Lower, -1):
        d.RHS = r.Upper
        d.Slack = r.Upper - lhs
        d.Satisfied = lhs <= r.Upper+feasTol
    default:
        d.RHS = r.Lower
        d.Slack = lhs - r.Lower
        d.Satisfied = lhs >= r.Lower-feasTol
    }
    return d
}
