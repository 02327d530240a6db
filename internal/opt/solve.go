package opt

import (
    "context"
    "fmt"
    "math"
    "time"

    highs "github.com/bartolsthoorn/gohighs/highs"

    "supplyopt/internal/model"
)

const (
    defaultTimeBudget = 30 * time.Second
    defaultSeed       = 1
)

// SolverError wraps a backend failure (library error, unknown status). It is
// distinct from Infeasible/Unbounded, which are legitimate outcomes.
type SolverError struct {
    Op  string
    Err error
}

func (e *SolverError) Error() string { return fmt.Sprintf("solver %s: %v", e.Op, e.Err) }
func (e *SolverError) Unwrap() error { return e.Err }

// Raw is the untyped solver outcome handed to the result interpreter.
type Raw struct {
    Status    string // model.Status* value
    Values    []float64
    Objective float64
    Duration  time.Duration
    Message   string
}

// HasValues reports whether Values holds a usable primal solution.
func (r *Raw) HasValues() bool { return len(r.Values) > 0 }

// Solve hands the built model to HiGHS and maps the outcome onto the public
// status taxonomy. The context deadline caps the solver's own time budget.
func Solve(ctx context.Context, m *Model, opts *model.SolveOptions) (*Raw, error) {
    hm := &highs.Model{}
    for _, v := range m.Vars() {
        hm.ColCosts = append(hm.ColCosts, v.Cost)
        hm.ColLower = append(hm.ColLower, v.Lower)
        hm.ColUpper = append(hm.ColUpper, v.Upper)
        if v.Integer {
            hm.VarTypes = append(hm.VarTypes, highs.Integer)
        } else {
            hm.VarTypes = append(hm.VarTypes, highs.Continuous)
        }
    }
    for _, r := range m.Rows() {
        hm.AddSparseRow(r.Lower, r.Cols, r.Coefs, r.Upper)
    }

    budget := defaultTimeBudget
    if opts != nil && opts.TimeBudgetMs > 0 {
        budget = time.Duration(opts.TimeBudgetMs) * time.Millisecond
    }
    if dl, ok := ctx.Deadline(); ok {
        if rem := time.Until(dl); rem < budget {
            budget = rem
        }
    }
    if budget <= 0 {
        return nil, &SolverError{Op: "setup", Err: ctx.Err()}
    }

    solveOpts := []highs.SolveOption{
        highs.WithOutput(false),
        highs.WithTimeLimit(budget.Seconds()),
    }
    threads := 0
    seed := int64(0)
    if opts != nil {
        threads = opts.Threads
        seed = opts.Seed
        if opts.MIPGap > 0 {
            solveOpts = append(solveOpts, highs.WithMIPRelGap(opts.MIPGap))
        }
        if opts.Deterministic {
            // Reproducibility needs a single thread and a pinned seed.
            threads = 1
            if seed == 0 {
                seed = defaultSeed
            }
        }
    }
    if threads > 0 {
        solveOpts = append(solveOpts, highs.WithThreads(threads))
    }
    if seed != 0 {
        solveOpts = append(solveOpts, highs.WithIntOption("random_seed", int(seed)))
    }

    start := time.Now()
    sol, err := hm.Solve(solveOpts...)
    elapsed := time.Since(start)
    if err != nil {
        return nil, &SolverError{Op: "run", Err: err}
    }

    raw := &Raw{Duration: elapsed}
    switch {
    case sol.IsOptimal():
        raw.Status = model.StatusOptimal
        raw.Values = sol.ColValues
        raw.Objective = sol.Objective
    case sol.IsTimeLimit():
        raw.Status = model.StatusTimedOut
        if sol.HasSolution() {
            raw.Values = sol.ColValues
            raw.Objective = sol.Objective
            raw.Message = "time budget exhausted; best incumbent returned"
        } else {
            raw.Message = "time budget exhausted before any feasible solution was found"
        }
    case sol.IsInfeasible():
        raw.Status = model.StatusInfeasible
        raw.Message = "no assignment satisfies all constraints"
    case sol.IsUnbounded():
        raw.Status = model.StatusUnbounded
        raw.Message = "objective is unbounded; check cost coefficients"
    default:
        return nil, &SolverError{Op: "status", Err: fmt.Errorf("unexpected solver status %v", sol.Status)}
    }
    if raw.HasValues() {
        clampValues(raw.Values)
    }
    return raw, nil
}

// clampValues scrubs solver tolerance noise: tiny negatives become zero and
// integer columns' values near an integer snap to it downstream via rounding.
func clampValues(vals []float64) {
    for i, v := range vals {
        if v < 0 && v > -1e-6 {
            vals[i] = 0
        } else if math.Abs(v-math.Round(v)) < 1e-7 {
            vals[i] = math.Round(v)
        }
    }
}
