package model

import "fmt"

// ValidationError names the first violated structural invariant. Validation
// is all-or-nothing: the first failure aborts before any solving.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    if e.Field == "" {
        return e.Reason
    }
    return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
    return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the dataset against the structural invariants: horizon,
// unique ids, existing route endpoints, positive per-trip capacities,
// non-negative quantities and matching demand series lengths.
func (d *Dataset) Validate() error {
    if d.T < 1 {
        return invalid("T", "horizon must be >= 1, got %d", d.T)
    }
    if len(d.Plants) == 0 {
        return invalid("plants", "at least one plant required")
    }
    seen := map[string]bool{}
    for i, p := range d.Plants {
        field := fmt.Sprintf("plants[%d]", i)
        if p.ID == "" {
            return invalid(field, "missing id")
        }
        if seen[p.ID] {
            return invalid(field, "duplicate plant id %q", p.ID)
        }
        seen[p.ID] = true
        if p.Type != PlantTypeIntegrated && p.Type != PlantTypeGrinding {
            return invalid(field, "unknown plant type %q", p.Type)
        }
        if p.InitialInventory < 0 {
            return invalid(field, "initial_inventory must be >= 0")
        }
        if p.MaxCapacity < 0 {
            return invalid(field, "max_capacity must be >= 0")
        }
        if p.SafetyStock < 0 {
            return invalid(field, "safety_stock must be >= 0")
        }
        if p.SafetyStock > p.MaxCapacity {
            return invalid(field, "safety_stock %g exceeds max_capacity %g", p.SafetyStock, p.MaxCapacity)
        }
        if p.InitialInventory > p.MaxCapacity {
            return invalid(field, "initial_inventory %g exceeds max_capacity %g", p.InitialInventory, p.MaxCapacity)
        }
        if p.MaxProductionPerPeriod != nil && *p.MaxProductionPerPeriod < 0 {
            return invalid(field, "max_production_per_period must be >= 0")
        }
        if p.HoldingCost < 0 || p.ProductionCost < 0 {
            return invalid(field, "costs must be >= 0")
        }
    }
    seenRoutes := map[string]bool{}
    for i, r := range d.Routes {
        field := fmt.Sprintf("routes[%d]", i)
        if r.ID == "" {
            return invalid(field, "missing id")
        }
        if seenRoutes[r.ID] {
            return invalid(field, "duplicate route id %q", r.ID)
        }
        seenRoutes[r.ID] = true
        if !seen[r.OriginID] {
            return invalid(field, "unknown origin_id %q", r.OriginID)
        }
        if !seen[r.DestinationID] {
            return invalid(field, "unknown destination_id %q", r.DestinationID)
        }
        if r.OriginID == r.DestinationID {
            return invalid(field, "origin and destination must differ")
        }
        if r.MinBatchQty < 0 {
            return invalid(field, "minimum_shipment_batch_quantity must be >= 0")
        }
        if len(r.Modes) == 0 {
            return invalid(field, "at least one mode required")
        }
        seenModes := map[string]bool{}
        for j, m := range r.Modes {
            mf := fmt.Sprintf("%s.modes[%d]", field, j)
            if m.Mode == "" {
                return invalid(mf, "missing mode label")
            }
            if seenModes[m.Mode] {
                return invalid(mf, "duplicate mode %q", m.Mode)
            }
            seenModes[m.Mode] = true
            if m.CapacityPerTrip <= 0 {
                return invalid(mf, "capacity_per_trip must be > 0")
            }
            if m.UnitCost < 0 {
                return invalid(mf, "unit_cost must be >= 0")
            }
        }
    }
    for id, series := range d.Demand {
        field := fmt.Sprintf("demand[%s]", id)
        if !seen[id] {
            return invalid(field, "unknown plant id %q", id)
        }
        if len(series) != d.T {
            return invalid(field, "series length %d does not match horizon %d", len(series), d.T)
        }
        for t, v := range series {
            if v < 0 {
                return invalid(field, "negative demand %g in period %d", v, t)
            }
        }
    }
    return nil
}
