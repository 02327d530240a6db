package webhooks

import (
    "context"
    "encoding/json"
    "time"

    "github.com/google/uuid"

    "supplyopt/internal/store"
)

// Solve lifecycle event types.
const (
    EventSolveStarted    = "solve.started"
    EventSolveCompleted  = "solve.completed"
    EventSolveInfeasible = "solve.infeasible"
    EventSolveFailed     = "solve.failed"
    EventScenarioCreated = "scenario.created"
)

type Publisher struct {
    Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
    return &Publisher{Store: s}
}

// Emit fans an event out to every matching subscription of the tenant. The
// enqueue is best effort; delivery and retries belong to the worker.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
    subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
    if err != nil || len(subs) == 0 {
        return
    }
    payload := map[string]any{
        "id":       "evt_" + uuid.New().String(),
        "type":     eventType,
        "tenantId": tenantID,
        "ts":       time.Now().UTC().Format(time.RFC3339),
        "data":     data,
    }
    body, _ := json.Marshal(payload)
    for _, s := range subs {
        _, _ = p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body)
    }
}
