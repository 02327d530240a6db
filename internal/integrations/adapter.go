package integrations

import "fmt"

// DemandSource defines the minimal interface for external demand feed
// integrations (ERP exports, forecast services).
type DemandSource interface {
    Name() string
    FetchDemand(cursor string) (DemandBatch, error)
}

// DemandRecord is one (plant, period) demand observation.
type DemandRecord struct {
    PlantID  string
    Period   int
    Quantity float64
}

// DemandBatch is one page of records from a source. Errors carries per-row
// failures the source tolerated while parsing.
type DemandBatch struct {
    Records []DemandRecord
    Cursor  string
    Errors  []string
}

// Apply merges a batch into a demand table of horizon T, extending series to
// length T as needed. Records outside the horizon or naming a plant not in
// known are reported, not applied; a nil known skips the membership check.
func Apply(demand map[string][]float64, T int, known map[string]bool, batch DemandBatch) (applied int, errs []string) {
    for i, rec := range batch.Records {
        if known != nil && !known[rec.PlantID] {
            errs = append(errs, fmt.Sprintf("record %d: unknown plant id %q", i+1, rec.PlantID))
            continue
        }
        if rec.Period < 0 || rec.Period >= T {
            errs = append(errs, fmt.Sprintf("record %d: period %d outside horizon [0,%d)", i+1, rec.Period, T))
            continue
        }
        if rec.Quantity < 0 {
            errs = append(errs, fmt.Sprintf("record %d: negative quantity %g", i+1, rec.Quantity))
            continue
        }
        s := demand[rec.PlantID]
        for len(s) < T {
            s = append(s, 0)
        }
        s[rec.Period] = rec.Quantity
        demand[rec.PlantID] = s
        applied++
    }
    return applied, errs
}
