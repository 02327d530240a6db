package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "supplyopt/internal/model"
)

// Memory is an in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    datasets  map[string]model.Dataset            // tenant -> working dataset
    scenarios map[string]model.Scenario           // id -> scenario
    scenTen   map[string][]string                 // tenant -> scenario ids
    solves    map[string]model.SolveSummary       // id -> summary
    solveTen  map[string][]string                 // tenant -> solve ids
    cfg       map[string]map[string]any           // tenant -> solver config
    subs      map[string][]model.Subscription     // tenant -> subscriptions
    deliveries map[string]*memDelivery            // id -> delivery state
    delivTen  map[string][]string                 // tenant -> delivery ids
    dlq       []map[string]any
}

func NewMemory() *Memory {
    return &Memory{
        datasets:  map[string]model.Dataset{},
        scenarios: map[string]model.Scenario{},
        scenTen:   map[string][]string{},
        solves:    map[string]model.SolveSummary{},
        solveTen:  map[string][]string{},
        cfg:       map[string]map[string]any{},
        subs:      map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        delivTen:  map[string][]string{},
        dlq:       []map[string]any{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) SaveDataset(ctx context.Context, tenantID string, ds model.Dataset) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.datasets[tenantID] = ds
    return nil
}

func (m *Memory) GetDataset(ctx context.Context, tenantID string) (model.Dataset, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ds, ok := m.datasets[tenantID]
    if !ok { return model.Dataset{}, ErrNotFound }
    return ds, nil
}

func (m *Memory) CreateScenario(ctx context.Context, tenantID, name string, ds model.Dataset) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sc := model.Scenario{
        ID: uuid.New().String(), TenantID: tenantID, Name: name,
        CreatedAt: time.Now().UTC().Format(time.RFC3339), Dataset: ds,
    }
    m.scenarios[sc.ID] = sc
    m.scenTen[tenantID] = append(m.scenTen[tenantID], sc.ID)
    return sc, nil
}

func (m *Memory) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return model.Scenario{}, ErrNotFound }
    return sc, nil
}

func (m *Memory) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.scenTen[tenantID]
    start := cursorIndex(ids, cursor)
    if limit <= 0 { limit = 100 }
    out := []model.Scenario{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.scenarios[ids[i]])
        next = ids[i]
    }
    if start+len(out) >= len(ids) { next = "" }
    return out, next, nil
}

func (m *Memory) DeleteScenario(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return ErrNotFound }
    delete(m.scenarios, id)
    m.scenTen[tenantID] = removeID(m.scenTen[tenantID], id)
    return nil
}

func (m *Memory) SaveSolve(ctx context.Context, s model.SolveSummary) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if s.CreatedAt == "" { s.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    m.solves[s.ID] = s
    m.solveTen[s.TenantID] = append(m.solveTen[s.TenantID], s.ID)
    return nil
}

func (m *Memory) GetSolve(ctx context.Context, tenantID, id string) (model.SolveSummary, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.solves[id]
    if !ok || s.TenantID != tenantID { return model.SolveSummary{}, ErrNotFound }
    return s, nil
}

func (m *Memory) ListSolves(ctx context.Context, tenantID, cursor string, limit int) ([]model.SolveSummary, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.solveTen[tenantID]
    start := cursorIndex(ids, cursor)
    if limit <= 0 { limit = 100 }
    out := []model.SolveSummary{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.solves[ids[i]])
        next = ids[i]
    }
    if start+len(out) >= len(ids) { next = "" }
    return out, next, nil
}

func (m *Memory) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cfg, ok := m.cfg[tenantID]
    if !ok { return map[string]any{}, nil }
    out := map[string]any{}
    for k, v := range cfg { out[k] = v }
    return out, nil
}

func (m *Memory) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cp := map[string]any{}
    for k, v := range cfg { cp[k] = v }
    m.cfg[tenantID] = cp
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sub.ID = "sub_" + uuid.New().String()
    sub.CreatedAt = time.Now().UTC().Format(time.RFC3339)
    m.subs[sub.TenantID] = append(m.subs[sub.TenantID], sub)
    return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events {
            if e == eventType || e == "*" { out = append(out, s); break }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    if limit <= 0 { limit = 100 }
    start := 0
    if cursor != "" {
        for i, s := range subs {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    out := []model.Subscription{}
    var next string
    for i := start; i < len(subs) && len(out) < limit; i++ {
        out = append(out, subs[i])
        next = subs[i].ID
    }
    if start+len(out) >= len(subs) { next = "" }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    for i, s := range subs {
        if s.ID == id {
            m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &memDelivery{
        WebhookDelivery: WebhookDelivery{
            ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
            EventType: eventType, URL: url, Secret: secret, Payload: payload,
            CreatedAt: time.Now().UTC(),
        },
        NextAttemptAt: time.Now().UTC(),
    }
    m.delivTen[tenantID] = append(m.delivTen[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 50 }
    now := time.Now().UTC()
    var due []*memDelivery
    for _, d := range m.deliveries {
        if d.DeliveredAt == nil && !d.NextAttemptAt.After(now) { due = append(due, d) }
    }
    sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
    out := []WebhookDelivery{}
    for _, d := range due {
        if len(out) >= limit { break }
        out = append(out, d.WebhookDelivery)
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        now := time.Now().UTC()
        d.DeliveredAt = &now
    } else if nextAttemptAt != nil {
        d.NextAttemptAt = *nextAttemptAt
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    m.dlq = append(m.dlq, map[string]any{
        "id": d.ID, "tenantId": d.TenantID, "eventType": d.EventType,
        "url": d.URL, "attempts": d.Attempts + 1, "lastError": lastError,
        "responseCode": responseCode, "latencyMs": latencyMs,
        "failedAt": time.Now().UTC().Format(time.RFC3339),
        "payload": string(d.Payload), "secret": d.Secret,
        "subscriptionId": d.SubscriptionID,
    })
    delete(m.deliveries, id)
    m.delivTen[d.TenantID] = removeID(m.delivTen[d.TenantID], id)
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    ids := m.delivTen[tenantID]
    start := cursorIndex(ids, cursor)
    out := []map[string]any{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.deliveries[ids[i]]
        if d == nil { continue }
        st := "pending"
        if d.DeliveredAt != nil { st = "delivered" }
        if status != "" && st != status { continue }
        out = append(out, map[string]any{
            "id": d.ID, "eventType": d.EventType, "url": d.URL,
            "attempts": d.Attempts, "status": st, "lastError": d.LastError,
            "responseCode": d.ResponseCode, "latencyMs": d.LatencyMs,
            "createdAt": d.CreatedAt.Format(time.RFC3339),
        })
        next = ids[i]
    }
    if start+len(out) >= len(ids) { next = "" }
    return out, next, nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    out := []map[string]any{}
    for _, item := range m.dlq {
        if item["tenantId"] == tenantID {
            cp := map[string]any{}
            for k, v := range item {
                if k == "secret" || k == "payload" { continue }
                cp[k] = v
            }
            out = append(out, cp)
        }
        if len(out) >= limit { break }
    }
    return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for i, item := range m.dlq {
        if item["id"] == id && item["tenantId"] == tenantID {
            did := uuid.New().String()
            m.deliveries[did] = &memDelivery{
                WebhookDelivery: WebhookDelivery{
                    ID: did, TenantID: tenantID,
                    SubscriptionID: str(item["subscriptionId"]),
                    EventType:      str(item["eventType"]),
                    URL:            str(item["url"]),
                    Secret:         str(item["secret"]),
                    Payload:        []byte(str(item["payload"])),
                    CreatedAt:      time.Now().UTC(),
                },
                NextAttemptAt: time.Now().UTC(),
            }
            m.delivTen[tenantID] = append(m.delivTen[tenantID], did)
            m.dlq = append(m.dlq[:i], m.dlq[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func cursorIndex(ids []string, cursor string) int {
    if cursor == "" { return 0 }
    for i, id := range ids {
        if id == cursor { return i + 1 }
    }
    return 0
}

func removeID(ids []string, id string) []string {
    for i, v := range ids {
        if v == id { return append(ids[:i], ids[i+1:]...) }
    }
    return ids
}

func str(v any) string {
    s, _ := v.(string)
    return s
}
