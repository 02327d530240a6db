package csvdemand

import (
    "strings"
    "testing"

    "supplyopt/internal/integrations"
)

func TestFetchDemandParsesRows(t *testing.T) {
    src := New(strings.NewReader("plant_id,period,quantity\ngu1,0,150\ngu1,1,175.5\ngu2,0,90\n"))
    batch, err := src.FetchDemand("")
    if err != nil { t.Fatalf("fetch: %v", err) }
    if len(batch.Errors) != 0 { t.Fatalf("errors: %v", batch.Errors) }
    if len(batch.Records) != 3 { t.Fatalf("records: %d", len(batch.Records)) }
    if batch.Records[1].Quantity != 175.5 || batch.Records[1].Period != 1 {
        t.Fatalf("record: %+v", batch.Records[1])
    }
}

func TestFetchDemandCollectsRowErrors(t *testing.T) {
    src := New(strings.NewReader("gu1,0,100\n,1,50\ngu1,x,50\ngu1,2,notanumber\n"))
    batch, err := src.FetchDemand("")
    if err != nil { t.Fatalf("fetch: %v", err) }
    if len(batch.Records) != 1 { t.Fatalf("records: %d", len(batch.Records)) }
    if len(batch.Errors) != 3 { t.Fatalf("errors: %v", batch.Errors) }
}

func TestApplyMergesIntoHorizon(t *testing.T) {
    demand := map[string][]float64{"gu1": {10, 20}}
    batch := integrations.DemandBatch{Records: []integrations.DemandRecord{
        {PlantID: "gu1", Period: 1, Quantity: 99},
        {PlantID: "gu2", Period: 0, Quantity: 5},
        {PlantID: "gu1", Period: 7, Quantity: 1},  // outside horizon
        {PlantID: "gu1", Period: 0, Quantity: -3}, // negative
    }}
    applied, errs := integrations.Apply(demand, 2, nil, batch)
    if applied != 2 { t.Fatalf("applied: %d", applied) }
    if len(errs) != 2 { t.Fatalf("errs: %v", errs) }
    if demand["gu1"][1] != 99 { t.Fatalf("gu1: %v", demand["gu1"]) }
    if len(demand["gu2"]) != 2 || demand["gu2"][0] != 5 { t.Fatalf("gu2: %v", demand["gu2"]) }
}

func TestApplyRejectsUnknownPlants(t *testing.T) {
    demand := map[string][]float64{}
    batch := integrations.DemandBatch{Records: []integrations.DemandRecord{
        {PlantID: "gu1", Period: 0, Quantity: 40},
        {PlantID: "ghost", Period: 0, Quantity: 7},
    }}
    applied, errs := integrations.Apply(demand, 1, map[string]bool{"gu1": true}, batch)
    if applied != 1 { t.Fatalf("applied: %d", applied) }
    if len(errs) != 1 || !strings.Contains(errs[0], "unknown plant") { t.Fatalf("errs: %v", errs) }
    if _, ok := demand["ghost"]; ok { t.Fatal("unknown plant must not enter the demand table") }
}
