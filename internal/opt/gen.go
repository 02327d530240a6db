package opt

import (
    "fmt"
    "math"
    "math/rand"

    "supplyopt/internal/model"
)

// GenSpec parameterizes the synthetic network generator. Zero values fall
// back to a small but non-trivial default network.
type GenSpec struct {
    Producers int   `json:"num_producers"`
    Consumers int   `json:"num_consumers"`
    Periods   int   `json:"num_periods"`
    Seed      int64 `json:"seed"`
}

func (g *GenSpec) normalize() {
    if g.Producers <= 0 {
        g.Producers = 2
    }
    if g.Consumers <= 0 {
        g.Consumers = 3
    }
    if g.Periods <= 0 {
        g.Periods = 12
    }
    if g.Seed == 0 {
        g.Seed = 1
    }
}

// Generate builds a random but always-feasible dataset: every consumer is
// reachable from every producer, aggregate production capacity exceeds peak
// aggregate demand, and demand follows a yearly seasonal curve. The same
// seed always yields the same dataset.
func Generate(spec GenSpec) *model.Dataset {
    spec.normalize()
    rng := rand.New(rand.NewSource(spec.Seed))
    ds := &model.Dataset{T: spec.Periods, Demand: map[string][]float64{}}

    for i := 0; i < spec.Producers; i++ {
        maxProd := 400 + rng.Float64()*600
        ds.Plants = append(ds.Plants, model.Plant{
            ID:                     fmt.Sprintf("iu%d", i+1),
            Name:                   fmt.Sprintf("Integrated Unit %d", i+1),
            Type:                   model.PlantTypeIntegrated,
            MaxCapacity:            1500 + rng.Float64()*1500,
            InitialInventory:       100 + rng.Float64()*200,
            SafetyStock:            50 + rng.Float64()*50,
            MaxProductionPerPeriod: &maxProd,
            HoldingCost:            0.5 + rng.Float64(),
            ProductionCost:         20 + rng.Float64()*15,
        })
    }
    for i := 0; i < spec.Consumers; i++ {
        ds.Plants = append(ds.Plants, model.Plant{
            ID:               fmt.Sprintf("gu%d", i+1),
            Name:             fmt.Sprintf("Grinding Unit %d", i+1),
            Type:             model.PlantTypeGrinding,
            MaxCapacity:      500 + rng.Float64()*700,
            InitialInventory: 50 + rng.Float64()*100,
            SafetyStock:      25 + rng.Float64()*25,
            HoldingCost:      1 + rng.Float64()*1.5,
        })
    }

    rid := 0
    for i := 0; i < spec.Producers; i++ {
        for j := 0; j < spec.Consumers; j++ {
            rid++
            ds.Routes = append(ds.Routes, model.TransportRoute{
                ID:            fmt.Sprintf("r%d", rid),
                OriginID:      fmt.Sprintf("iu%d", i+1),
                DestinationID: fmt.Sprintf("gu%d", j+1),
                MinBatchQty:   25 + rng.Float64()*50,
                Modes: []model.RouteMode{
                    {Mode: "rail", UnitCost: 2 + rng.Float64()*2, CapacityPerTrip: 200 + rng.Float64()*100},
                    {Mode: "road", UnitCost: 4 + rng.Float64()*3, CapacityPerTrip: 30 + rng.Float64()*20},
                },
            })
        }
    }

    // Aggregate producer capacity per period; demand is scaled so that even
    // the seasonal peak stays comfortably below it.
    totalProd := 0.0
    for i := range ds.Plants {
        if p := &ds.Plants[i]; p.Produces() {
            totalProd += *p.MaxProductionPerPeriod
        }
    }
    base := 0.5 * totalProd / float64(spec.Consumers)
    for j := 0; j < spec.Consumers; j++ {
        id := fmt.Sprintf("gu%d", j+1)
        phase := rng.Float64() * 2 * math.Pi
        series := make([]float64, spec.Periods)
        for t := 0; t < spec.Periods; t++ {
            season := 1 + 0.3*math.Sin(2*math.Pi*float64(t)/12+phase)
            noise := 0.9 + rng.Float64()*0.2
            series[t] = math.Round(base * season * noise)
        }
        ds.Demand[id] = series
    }
    ds.Normalize()
    return ds
}
