package model

// Core domain types for the network optimizer. Field names in the solve
// request/response follow the dashboard contract (snake_case) and must not
// be renamed without coordinating with the frontend.

type PlantType string

const (
    // PlantTypeIntegrated marks a producing node (integrated unit).
    PlantTypeIntegrated PlantType = "integrated_unit"
    // PlantTypeGrinding marks a consume-only node (grinding unit).
    PlantTypeGrinding PlantType = "grinding_unit"
)

// Plant is a production or consumption node in the network.
type Plant struct {
    ID               string    `json:"id"`
    Name             string    `json:"name,omitempty"`
    Type             PlantType `json:"type"`
    InitialInventory float64   `json:"initial_inventory"`
    MaxCapacity      float64   `json:"max_capacity"`
    SafetyStock      float64   `json:"safety_stock,omitempty"`
    // MaxProductionPerPeriod is only meaningful for producing plants.
    // Nil means "default to max_capacity / T" (applied in Normalize).
    MaxProductionPerPeriod *float64 `json:"max_production_per_period,omitempty"`
    HoldingCost            float64  `json:"holding_cost,omitempty"`
    ProductionCost         float64  `json:"production_cost,omitempty"`
}

// Produces reports whether the plant can produce material.
func (p Plant) Produces() bool { return p.Type == PlantTypeIntegrated }

// RouteMode is one transport option (rail, road, ...) on a route.
type RouteMode struct {
    Mode            string  `json:"mode"`
    UnitCost        float64 `json:"unit_cost"`
    CapacityPerTrip float64 `json:"capacity_per_trip"`
}

// TransportRoute is a directed corridor between two plants.
type TransportRoute struct {
    ID            string      `json:"id"`
    OriginID      string      `json:"origin_id"`
    DestinationID string      `json:"destination_id"`
    MinBatchQty   float64     `json:"minimum_shipment_batch_quantity,omitempty"`
    Modes         []RouteMode `json:"modes"`
}

// Dataset bundles one self-contained problem instance: the horizon T,
// all plants and routes, and per-plant demand series of length T.
type Dataset struct {
    T      int                  `json:"T"`
    Plants []Plant              `json:"plants"`
    Routes []TransportRoute     `json:"routes"`
    Demand map[string][]float64 `json:"demand"`
}

// Plant returns the plant with the given id, or nil.
func (d *Dataset) Plant(id string) *Plant {
    for i := range d.Plants {
        if d.Plants[i].ID == id {
            return &d.Plants[i]
        }
    }
    return nil
}

// Route returns the route with the given id, or nil.
func (d *Dataset) Route(id string) *TransportRoute {
    for i := range d.Routes {
        if d.Routes[i].ID == id {
            return &d.Routes[i]
        }
    }
    return nil
}

// DemandAt returns demand for plant id in period t (0-based); absent series
// imply zero demand.
func (d *Dataset) DemandAt(id string, t int) float64 {
    s := d.Demand[id]
    if t < 0 || t >= len(s) {
        return 0
    }
    return s[t]
}

// Normalize fills derived defaults. Producing plants without an explicit
// max_production_per_period get max_capacity / T.
func (d *Dataset) Normalize() {
    for i := range d.Plants {
        p := &d.Plants[i]
        if p.Produces() && p.MaxProductionPerPeriod == nil && d.T > 0 {
            v := p.MaxCapacity / float64(d.T)
            p.MaxProductionPerPeriod = &v
        }
    }
}

// SolveOptions tune one solver invocation.
type SolveOptions struct {
    TimeBudgetMs int     `json:"time_budget_ms,omitempty"`
    Threads      int     `json:"threads,omitempty"`
    Seed         int64   `json:"seed,omitempty"`
    MIPGap       float64 `json:"mip_gap,omitempty"`
    // Deterministic requests a single-threaded fixed-seed solve so repeated
    // runs yield identical objective values (used by tests/verification).
    Deterministic bool `json:"deterministic,omitempty"`
    // StrictSafetyStock promotes the soft safety-stock threshold to a hard
    // inventory lower bound. Off by default.
    StrictSafetyStock bool `json:"strict_safety_stock,omitempty"`
}

// SolveRequest is the POST /v1/optimize payload.
type SolveRequest struct {
    Dataset
    Options *SolveOptions `json:"options,omitempty"`
}

// Solve statuses exposed to callers. Infeasible/Unbounded are legitimate
// deterministic outcomes, not errors.
const (
    StatusOptimal    = "Optimal"
    StatusInfeasible = "Infeasible"
    StatusUnbounded  = "Unbounded"
    StatusTimedOut   = "TimedOut"
    StatusError      = "Error"
)

// ScheduledTrip is one dispatch decision in the solution.
type ScheduledTrip struct {
    Period          int     `json:"period"`
    RouteID         string  `json:"route_id"`
    OriginID        string  `json:"origin_id"`
    DestinationID   string  `json:"destination_id"`
    Mode            string  `json:"mode"`
    NumTrips        int     `json:"num_trips"`
    QuantityShipped float64 `json:"quantity_shipped"`
}

// CostBreakdown reports the three objective terms separately; they sum
// exactly to TotalCost.
type CostBreakdown struct {
    ProductionCostTotal float64 `json:"production_cost_total"`
    TransportCostTotal  float64 `json:"transport_cost_total"`
    HoldingCostTotal    float64 `json:"holding_cost_total"`
    TotalCost           float64 `json:"total_cost"`
}

// PlantMetrics aggregates one plant's solution values across the horizon.
type PlantMetrics struct {
    PlantID             string  `json:"plant_id"`
    TotalProduction     float64 `json:"total_production"`
    AverageInventory    float64 `json:"average_inventory"`
    CapacityUtilization float64 `json:"capacity_utilization"`
}

// PeriodMetrics aggregates one period's solution values across the network.
type PeriodMetrics struct {
    Period            int     `json:"period"`
    TotalProduction   float64 `json:"total_production"`
    TotalTransportQty float64 `json:"total_transport_qty"`
    TripCount         int     `json:"trip_count"`
}

// ConstraintDiagnostic reports one structural constraint evaluated against
// the solved values, as an independent cross-check of the solver.
type ConstraintDiagnostic struct {
    Class          string  `json:"class"` // capacity, mass_balance, batching, safety_stock
    Name           string  `json:"name"`
    Equation       string  `json:"equation,omitempty"`
    LHS            float64 `json:"lhs"`
    RHS            float64 `json:"rhs"`
    Satisfied      bool    `json:"satisfied"`
    Slack          float64 `json:"slack"`
    UtilizationPct float64 `json:"utilization_pct,omitempty"`
}

// SolveResponse is the POST /v1/optimize (and upload) response body.
type SolveResponse struct {
    SolveID        string                 `json:"solve_id,omitempty"`
    Status         string                 `json:"status"`
    TotalCost      *float64               `json:"total_cost"`
    ScheduledTrips []ScheduledTrip        `json:"scheduled_trips"`
    CostBreakdown  *CostBreakdown         `json:"cost_breakdown,omitempty"`
    PlantMetrics   []PlantMetrics         `json:"plant_metrics,omitempty"`
    PeriodMetrics  []PeriodMetrics        `json:"period_metrics,omitempty"`
    Diagnostics    []ConstraintDiagnostic `json:"diagnostics,omitempty"`
    IsFeasible     bool                   `json:"is_feasible"`
    Issues         []string               `json:"issues,omitempty"`
    Warnings       []string               `json:"warnings,omitempty"`
    Message        string                 `json:"message,omitempty"`
    // Errors carries per-row overlay parse failures on the upload endpoint.
    Errors []string `json:"errors,omitempty"`
}

// Scenario is a stored dataset with bookkeeping fields.
type Scenario struct {
    ID        string  `json:"id"`
    TenantID  string  `json:"tenantId,omitempty"`
    Name      string  `json:"name"`
    CreatedAt string  `json:"createdAt,omitempty"`
    Dataset   Dataset `json:"dataset"`
}

// SolveSummary is the persisted record of one solve for listings/metrics.
type SolveSummary struct {
    ID         string   `json:"id"`
    TenantID   string   `json:"tenantId,omitempty"`
    Status     string   `json:"status"`
    TotalCost  *float64 `json:"totalCost,omitempty"`
    TripCount  int      `json:"tripCount"`
    DurationMs int      `json:"durationMs"`
    CreatedAt  string   `json:"createdAt,omitempty"`
}

// Subscription registers a webhook endpoint for solve lifecycle events.
type Subscription struct {
    ID        string   `json:"id"`
    TenantID  string   `json:"tenantId,omitempty"`
    URL       string   `json:"url"`
    Events    []string `json:"events"`
    Secret    string   `json:"-"`
    CreatedAt string   `json:"createdAt,omitempty"`
}

// RouteAnalysis is the diagnostic bundle for one (source, destination,
// mode, period) tuple, projected from the last solve.
type RouteAnalysis struct {
    RouteID           string                 `json:"route_id"`
    OriginID          string                 `json:"origin_id"`
    DestinationID     string                 `json:"destination_id"`
    Mode              string                 `json:"mode"`
    Period            int                    `json:"period"`
    DecisionVariables map[string]float64     `json:"decision_variables"`
    ObjectiveTerms    map[string]float64     `json:"objective_terms"`
    MassBalance       []ConstraintDiagnostic `json:"mass_balance"`
    Constraints       []ConstraintDiagnostic `json:"constraints"`
    Metrics           map[string]float64     `json:"metrics"`
}

// Formulation is the human-readable projection of the built MILP, rendered
// from the same variable/constraint objects the solver consumes.
type Formulation struct {
    NumVariables   int      `json:"num_variables"`
    NumIntegers    int      `json:"num_integers"`
    NumConstraints int      `json:"num_constraints"`
    Variables      []string `json:"variables"`
    Objective      string   `json:"objective"`
    Constraints    []string `json:"constraints"`
}
