// Package csvdemand parses demand feeds in CSV form
// (plant_id,period,quantity with an optional header).
package csvdemand

import (
    "encoding/csv"
    "fmt"
    "io"
    "strconv"
    "strings"

    "supplyopt/internal/integrations"
)

type Source struct {
    r io.Reader
}

func New(r io.Reader) *Source { return &Source{r: r} }

func (s *Source) Name() string { return "csv" }

// FetchDemand reads the whole feed in one batch. Malformed rows are reported
// in the batch, not fatal.
func (s *Source) FetchDemand(cursor string) (integrations.DemandBatch, error) {
    cr := csv.NewReader(s.r)
    cr.FieldsPerRecord = -1
    cr.TrimLeadingSpace = true

    var batch integrations.DemandBatch
    line := 0
    for {
        rec, err := cr.Read()
        if err == io.EOF {
            break
        }
        line++
        if err != nil {
            batch.Errors = append(batch.Errors, fmt.Sprintf("row %d: %v", line, err))
            continue
        }
        if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "plant_id") {
            continue // header
        }
        if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
            continue
        }
        if len(rec) < 3 {
            batch.Errors = append(batch.Errors, fmt.Sprintf("row %d: expected plant_id,period,quantity; got %d fields", line, len(rec)))
            continue
        }
        plant := strings.TrimSpace(rec[0])
        if plant == "" {
            batch.Errors = append(batch.Errors, fmt.Sprintf("row %d: plant_id is required", line))
            continue
        }
        p, err := strconv.Atoi(strings.TrimSpace(rec[1]))
        if err != nil {
            batch.Errors = append(batch.Errors, fmt.Sprintf("row %d: invalid period %q", line, rec[1]))
            continue
        }
        q, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
        if err != nil {
            batch.Errors = append(batch.Errors, fmt.Sprintf("row %d: invalid quantity %q", line, rec[2]))
            continue
        }
        batch.Records = append(batch.Records, integrations.DemandRecord{PlantID: plant, Period: p, Quantity: q})
    }
    return batch, nil
}
