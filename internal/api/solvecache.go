package api

import (
    "sync"

    "supplyopt/internal/opt"
)

// SolveCache keeps the most recent solved model per tenant, plus a bounded
// lookup by solve id. The query endpoints (route analysis, model view)
// project out of these bundles.
type SolveCache struct {
    mu     sync.Mutex
    latest map[string]*opt.Solved // tenant -> last solve
    byID   map[string]*opt.Solved // solveId -> solve
    order  []string               // byID insertion order for eviction
    max    int
}

func NewSolveCache() *SolveCache {
    return &SolveCache{latest: map[string]*opt.Solved{}, byID: map[string]*opt.Solved{}, max: 128}
}

// Put stores a solve bundle as the tenant's latest and indexes it by id.
func (c *SolveCache) Put(tenant, solveID string, s *opt.Solved) {
    if tenant == "" || solveID == "" || s == nil {
        return
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    c.latest[tenant] = s
    if _, ok := c.byID[solveID]; !ok {
        c.order = append(c.order, solveID)
        if len(c.order) > c.max {
            delete(c.byID, c.order[0])
            c.order = c.order[1:]
        }
    }
    c.byID[solveID] = s
}

// Latest returns the tenant's most recent solve bundle, or nil.
func (c *SolveCache) Latest(tenant string) *opt.Solved {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.latest[tenant]
}

// Get returns the bundle for a solve id, or nil if evicted/unknown.
func (c *SolveCache) Get(solveID string) *opt.Solved {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.byID[solveID]
}
