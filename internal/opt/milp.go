package opt

import (
    "fmt"
    "math"
    "sort"
    "strings"

    "supplyopt/internal/model"
)

// VarKind identifies the decision variable families of the formulation.
type VarKind int

const (
    VarTrips VarKind = iota // integer trip count per (period, route, mode)
    VarQty                  // continuous quantity shipped per (period, route, mode)
    VarUsed                 // binary batching indicator per (period, route, mode)
    VarProduction           // continuous production per (period, producing plant)
    VarInventory            // continuous closing inventory per (period, plant)
)

// Variable is one column of the MILP.
type Variable struct {
    Col     int
    Kind    VarKind
    Period  int
    RouteID string
    Mode    string
    PlantID string
    Lower   float64
    Upper   float64
    Integer bool
    Cost    float64 // objective coefficient
}

// RowKind identifies the constraint families of the formulation.
type RowKind string

const (
    RowMassBalance RowKind = "mass_balance"
    RowTripCap     RowKind = "trip_capacity"
    RowBatchMin    RowKind = "batching"
    RowBatchLink   RowKind = "batch_link"
)

// Row is one constraint of the MILP: Lower <= sum(Coefs*x[Cols]) <= Upper.
type Row struct {
    Index   int
    Kind    RowKind
    PlantID string
    RouteID string
    Mode    string
    Period  int
    Cols    []int
    Coefs   []float64
    Lower   float64
    Upper   float64
}

type arcKey struct {
    Period  int
    RouteID string
    Mode    string
}

type plantKey struct {
    Period  int
    PlantID string
}

// Model is the assembled MILP for one dataset. It is built per request and
// never shared between concurrent solves.
type Model struct {
    Data   *model.Dataset
    Strict bool // hard safety-stock lower bounds

    vars []Variable
    rows []Row

    trips map[arcKey]int
    qty   map[arcKey]int
    used  map[arcKey]int
    prod  map[plantKey]int
    inv   map[plantKey]int

    // maxTrips bounds trips per period for each (route, mode); it doubles
    // as the big-M in the batching linkage.
    maxTrips map[string]int // routeID|mode

    supply float64 // total material over the horizon, see systemSupply
}

// Build assembles the MILP from a validated, normalized dataset.
func Build(ds *model.Dataset, opts *model.SolveOptions) (*Model, error) {
    if err := ds.Validate(); err != nil {
        return nil, err
    }
    ds.Normalize()
    m := &Model{
        Data:     ds,
        trips:    map[arcKey]int{},
        qty:      map[arcKey]int{},
        used:     map[arcKey]int{},
        prod:     map[plantKey]int{},
        inv:      map[plantKey]int{},
        maxTrips: map[string]int{},
    }
    if opts != nil {
        m.Strict = opts.StrictSafetyStock
    }
    m.supply = systemSupply(ds)
    m.addColumns()
    m.addRows()
    return m, nil
}

func modeKey(routeID, mode string) string { return routeID + "|" + mode }

func (m *Model) addColumn(v Variable) int {
    v.Col = len(m.vars)
    m.vars = append(m.vars, v)
    return v.Col
}

// tripBound is the per-period ceiling on trips for a route/mode. Inbound
// flow may be forwarded within the same period, so a plant can legally ship
// more than its own storage plus production; the only safe ceiling is the
// total material the network can hold over the whole horizon.
func (m *Model) tripBound(rm *model.RouteMode) int {
    if m.supply <= 0 {
        return 0
    }
    return int(math.Ceil(m.supply / rm.CapacityPerTrip))
}

// systemSupply totals the material that can ever exist in the network:
// opening inventories plus every producer's output capacity across T periods.
func systemSupply(ds *model.Dataset) float64 {
    total := 0.0
    for i := range ds.Plants {
        p := &ds.Plants[i]
        total += p.InitialInventory
        if p.Produces() && p.MaxProductionPerPeriod != nil {
            total += *p.MaxProductionPerPeriod * float64(ds.T)
        }
    }
    return total
}

func (m *Model) addColumns() {
    ds := m.Data
    for t := 0; t < ds.T; t++ {
        for ri := range ds.Routes {
            r := &ds.Routes[ri]
            for mi := range r.Modes {
                rm := &r.Modes[mi]
                u := m.tripBound(rm)
                if t == 0 {
                    m.maxTrips[modeKey(r.ID, rm.Mode)] = u
                }
                k := arcKey{t, r.ID, rm.Mode}
                m.trips[k] = m.addColumn(Variable{
                    Kind: VarTrips, Period: t, RouteID: r.ID, Mode: rm.Mode,
                    Lower: 0, Upper: float64(u), Integer: true,
                })
                m.qty[k] = m.addColumn(Variable{
                    Kind: VarQty, Period: t, RouteID: r.ID, Mode: rm.Mode,
                    Lower: 0, Upper: float64(u) * rm.CapacityPerTrip, Cost: rm.UnitCost,
                })
                if r.MinBatchQty > 0 {
                    m.used[k] = m.addColumn(Variable{
                        Kind: VarUsed, Period: t, RouteID: r.ID, Mode: rm.Mode,
                        Lower: 0, Upper: 1, Integer: true,
                    })
                }
            }
        }
    }
    for t := 0; t < ds.T; t++ {
        for pi := range ds.Plants {
            p := &ds.Plants[pi]
            if !p.Produces() {
                continue
            }
            ub := 0.0
            if p.MaxProductionPerPeriod != nil {
                ub = *p.MaxProductionPerPeriod
            }
            m.prod[plantKey{t, p.ID}] = m.addColumn(Variable{
                Kind: VarProduction, Period: t, PlantID: p.ID,
                Lower: 0, Upper: ub, Cost: p.ProductionCost,
            })
        }
    }
    for t := 0; t < ds.T; t++ {
        for pi := range ds.Plants {
            p := &ds.Plants[pi]
            lb := 0.0
            if m.Strict {
                lb = p.SafetyStock
            }
            m.inv[plantKey{t, p.ID}] = m.addColumn(Variable{
                Kind: VarInventory, Period: t, PlantID: p.ID,
                Lower: lb, Upper: p.MaxCapacity, Cost: p.HoldingCost,
            })
        }
    }
}

func (m *Model) addRow(r Row) {
    r.Index = len(m.rows)
    m.rows = append(m.rows, r)
}

func (m *Model) addRows() {
    ds := m.Data
    inf := math.Inf(1)
    // Trip capacity and batching linkage per (period, route, mode).
    for t := 0; t < ds.T; t++ {
        for ri := range ds.Routes {
            r := &ds.Routes[ri]
            for mi := range r.Modes {
                rm := &r.Modes[mi]
                k := arcKey{t, r.ID, rm.Mode}
                // qty - capacity_per_trip * trips <= 0
                m.addRow(Row{
                    Kind: RowTripCap, RouteID: r.ID, Mode: rm.Mode, Period: t,
                    Cols:  []int{m.qty[k], m.trips[k]},
                    Coefs: []float64{1, -rm.CapacityPerTrip},
                    Lower: math.Inf(-1), Upper: 0,
                })
                if r.MinBatchQty > 0 {
                    u := m.maxTrips[modeKey(r.ID, rm.Mode)]
                    // qty - min_batch * used >= 0: a nonzero shipment is
                    // never smaller than the minimum batch.
                    m.addRow(Row{
                        Kind: RowBatchMin, RouteID: r.ID, Mode: rm.Mode, Period: t,
                        Cols:  []int{m.qty[k], m.used[k]},
                        Coefs: []float64{1, -r.MinBatchQty},
                        Lower: 0, Upper: inf,
                    })
                    // trips - U * used <= 0 forces the indicator on when
                    // any trip is dispatched.
                    m.addRow(Row{
                        Kind: RowBatchLink, RouteID: r.ID, Mode: rm.Mode, Period: t,
                        Cols:  []int{m.trips[k], m.used[k]},
                        Coefs: []float64{1, -float64(u)},
                        Lower: math.Inf(-1), Upper: 0,
                    })
                }
            }
        }
    }
    // Mass balance per (plant, period):
    // inv[t] - inv[t-1] - production[t] - inbound[t] + outbound[t] = -demand[t]
    // with the t=0 opening stock folded into the right-hand side.
    for t := 0; t < ds.T; t++ {
        for pi := range ds.Plants {
            p := &ds.Plants[pi]
            cols := []int{m.inv[plantKey{t, p.ID}]}
            coefs := []float64{1}
            if t > 0 {
                cols = append(cols, m.inv[plantKey{t - 1, p.ID}])
                coefs = append(coefs, -1)
            }
            if c, ok := m.prod[plantKey{t, p.ID}]; ok {
                cols = append(cols, c)
                coefs = append(coefs, -1)
            }
            for ri := range ds.Routes {
                r := &ds.Routes[ri]
                for mi := range r.Modes {
                    k := arcKey{t, r.ID, r.Modes[mi].Mode}
                    if r.DestinationID == p.ID {
                        cols = append(cols, m.qty[k])
                        coefs = append(coefs, -1)
                    }
                    if r.OriginID == p.ID {
                        cols = append(cols, m.qty[k])
                        coefs = append(coefs, 1)
                    }
                }
            }
            rhs := -ds.DemandAt(p.ID, t)
            if t == 0 {
                rhs += p.InitialInventory
            }
            m.addRow(Row{
                Kind: RowMassBalance, PlantID: p.ID, Period: t,
                Cols: cols, Coefs: coefs, Lower: rhs, Upper: rhs,
            })
        }
    }
}

// Vars exposes the column set (read-only use).
func (m *Model) Vars() []Variable { return m.vars }

// Rows exposes the constraint set (read-only use).
func (m *Model) Rows() []Row { return m.rows }

// TripsCol returns the trips column for (period, route, mode); ok is false
// when the tuple does not exist in the model.
func (m *Model) TripsCol(t int, routeID, mode string) (int, bool) {
    c, ok := m.trips[arcKey{t, routeID, mode}]
    return c, ok
}

// QtyCol returns the quantity column for (period, route, mode).
func (m *Model) QtyCol(t int, routeID, mode string) (int, bool) {
    c, ok := m.qty[arcKey{t, routeID, mode}]
    return c, ok
}

// InventoryCol returns the inventory column for (period, plant).
func (m *Model) InventoryCol(t int, plantID string) (int, bool) {
    c, ok := m.inv[plantKey{t, plantID}]
    return c, ok
}

// ProductionCol returns the production column for (period, plant).
func (m *Model) ProductionCol(t int, plantID string) (int, bool) {
    c, ok := m.prod[plantKey{t, plantID}]
    return c, ok
}

// MaxTripsPerPeriod returns the trip ceiling used as the batching big-M.
func (m *Model) MaxTripsPerPeriod(routeID, mode string) int {
    return m.maxTrips[modeKey(routeID, mode)]
}

// VarName renders the canonical name of a column, e.g. trips[2,r1,rail] or
// inventory[0,gu1]. All human-readable projections use these names.
func (m *Model) VarName(col int) string {
    v := m.vars[col]
    switch v.Kind {
    case VarTrips:
        return fmt.Sprintf("trips[%d,%s,%s]", v.Period, v.RouteID, v.Mode)
    case VarQty:
        return fmt.Sprintf("qty[%d,%s,%s]", v.Period, v.RouteID, v.Mode)
    case VarUsed:
        return fmt.Sprintf("used[%d,%s,%s]", v.Period, v.RouteID, v.Mode)
    case VarProduction:
        return fmt.Sprintf("production[%d,%s]", v.Period, v.PlantID)
    case VarInventory:
        return fmt.Sprintf("inventory[%d,%s]", v.Period, v.PlantID)
    }
    return fmt.Sprintf("x[%d]", col)
}

// RowName renders a stable identifier for a constraint row.
func (m *Model) RowName(r Row) string {
    switch r.Kind {
    case RowMassBalance:
        return fmt.Sprintf("mass_balance[%d,%s]", r.Period, r.PlantID)
    default:
        return fmt.Sprintf("%s[%d,%s,%s]", r.Kind, r.Period, r.RouteID, r.Mode)
    }
}

// RowEquation renders a row as a linear equation/inequality string. The
// /v1/model view and the route analysis bundle both use this, so the
// displayed formulas cannot drift from what the solver actually received.
func (m *Model) RowEquation(r Row) string {
    var b strings.Builder
    for i, c := range r.Cols {
        coef := r.Coefs[i]
        name := m.VarName(c)
        switch {
        case i == 0 && coef == 1:
            b.WriteString(name)
        case i == 0 && coef == -1:
            b.WriteString("-" + name)
        case i == 0:
            fmt.Fprintf(&b, "%g*%s", coef, name)
        case coef == 1:
            b.WriteString(" + " + name)
        case coef == -1:
            b.WriteString(" - " + name)
        case coef < 0:
            fmt.Fprintf(&b, " - %g*%s", -coef, name)
        default:
            fmt.Fprintf(&b, " + %g*%s", coef, name)
        }
    }
    switch {
    case r.Lower == r.Upper:
        fmt.Fprintf(&b, " = %g", r.Upper)
    case math.IsInf(r.Lower, -1):
        fmt.Fprintf(&b, " <= %g", r.Upper)
    case math.IsInf(r.Upper, 1):
        fmt.Fprintf(&b, " >= %g", r.Lower)
    default:
        return fmt.Sprintf("%g <= %s <= %g", r.Lower, b.String(), r.Upper)
    }
    return b.String()
}

// RowLHS evaluates a row's left-hand side against a primal solution.
func (m *Model) RowLHS(r Row, values []float64) float64 {
    lhs := 0.0
    for i, c := range r.Cols {
        if c < len(values) {
            lhs += r.Coefs[i] * values[c]
        }
    }
    return lhs
}

// Formulation renders the whole model for the mathematical-model view.
func (m *Model) Formulation() model.Formulation {
    f := model.Formulation{
        NumVariables:   len(m.vars),
        NumConstraints: len(m.rows),
    }
    for col := range m.vars {
        v := m.vars[col]
        if v.Integer {
            f.NumIntegers++
        }
        kind := "continuous"
        if v.Integer {
            kind = "integer"
        }
        f.Variables = append(f.Variables, fmt.Sprintf("%s in [%g, %g] (%s)", m.VarName(col), v.Lower, v.Upper, kind))
    }
    var terms []string
    for col := range m.vars {
        if c := m.vars[col].Cost; c != 0 {
            terms = append(terms, fmt.Sprintf("%g*%s", c, m.VarName(col)))
        }
    }
    f.Objective = "minimize " + strings.Join(terms, " + ")
    for _, r := range m.rows {
        f.Constraints = append(f.Constraints, m.RowName(r)+": "+m.RowEquation(r))
    }
    sort.Strings(f.Constraints)
    return f
}
