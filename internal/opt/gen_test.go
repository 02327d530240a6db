package opt

import (
    "reflect"
    "testing"
)

func TestGenerateDeterministic(t *testing.T) {
    a := Generate(GenSpec{Producers: 2, Consumers: 3, Periods: 12, Seed: 42})
    b := Generate(GenSpec{Producers: 2, Consumers: 3, Periods: 12, Seed: 42})
    if !reflect.DeepEqual(a, b) { t.Fatal("same seed must yield identical datasets") }
    c := Generate(GenSpec{Producers: 2, Consumers: 3, Periods: 12, Seed: 43})
    if reflect.DeepEqual(a, c) { t.Fatal("different seeds should differ") }
}

func TestGenerateValid(t *testing.T) {
    for _, seed := range []int64{1, 2, 99} {
        ds := Generate(GenSpec{Producers: 3, Consumers: 4, Periods: 10, Seed: seed})
        if err := ds.Validate(); err != nil { t.Fatalf("seed %d: %v", seed, err) }
        if len(ds.Routes) != 12 { t.Fatalf("routes: got %d, want 12", len(ds.Routes)) }
        for id, series := range ds.Demand {
            if len(series) != 10 { t.Fatalf("%s: series length %d", id, len(series)) }
        }
    }
}

func TestGenerateDefaults(t *testing.T) {
    ds := Generate(GenSpec{})
    if err := ds.Validate(); err != nil { t.Fatalf("defaults: %v", err) }
    if ds.T != 12 { t.Fatalf("T: got %d, want 12", ds.T) }
}
