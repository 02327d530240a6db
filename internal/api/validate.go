package api

import (
    "fmt"

    "supplyopt/internal/model"
)

func validateSolveOptions(opts *model.SolveOptions) error {
    if opts == nil {
        return nil
    }
    if opts.TimeBudgetMs < 0 {
        return fmt.Errorf("time_budget_ms must be >= 0")
    }
    if opts.TimeBudgetMs > 600000 {
        return fmt.Errorf("time_budget_ms must be <= 600000")
    }
    if opts.Threads < 0 {
        return fmt.Errorf("threads must be >= 0")
    }
    if opts.Seed < 0 {
        return fmt.Errorf("seed must be >= 0")
    }
    if opts.MIPGap < 0 || opts.MIPGap >= 1 {
        return fmt.Errorf("mip_gap must be in [0,1)")
    }
    return nil
}
