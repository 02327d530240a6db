package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "supplyopt/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order. Statements are
// written to be idempotent (CREATE TABLE IF NOT EXISTS), so re-running on
// boot is safe.
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
            names = append(names, e.Name())
        }
    }
    sort.Strings(names)
    for _, name := range names {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migration %s: %w", name, err)
        }
    }
    return nil
}

// Datasets and scenarios are stored whole as JSONB; the solver consumes them
// as a unit and nothing queries inside them.

func (p *Postgres) SaveDataset(ctx context.Context, tenantID string, ds model.Dataset) error {
    js, err := json.Marshal(ds)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO datasets (tenant_id, data, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (tenant_id) DO UPDATE SET data=$2, updated_at=now()`, tenantID, js)
    return err
}

func (p *Postgres) GetDataset(ctx context.Context, tenantID string) (model.Dataset, error) {
    var js []byte
    err := p.db.QueryRowContext(ctx, `SELECT data FROM datasets WHERE tenant_id=$1`, tenantID).Scan(&js)
    if errors.Is(err, sql.ErrNoRows) { return model.Dataset{}, ErrNotFound }
    if err != nil { return model.Dataset{}, err }
    var ds model.Dataset
    if err := json.Unmarshal(js, &ds); err != nil { return model.Dataset{}, err }
    return ds, nil
}

func (p *Postgres) CreateScenario(ctx context.Context, tenantID, name string, ds model.Dataset) (model.Scenario, error) {
    id := uuid.New().String()
    js, err := json.Marshal(ds)
    if err != nil { return model.Scenario{}, err }
    var created time.Time
    err = p.db.QueryRowContext(ctx, `INSERT INTO scenarios (id, tenant_id, name, data) VALUES ($1,$2,$3,$4) RETURNING created_at`,
        id, tenantID, name, js).Scan(&created)
    if err != nil { return model.Scenario{}, err }
    return model.Scenario{ID: id, TenantID: tenantID, Name: name, CreatedAt: created.UTC().Format(time.RFC3339), Dataset: ds}, nil
}

func (p *Postgres) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    var sc model.Scenario
    var js []byte
    var created time.Time
    err := p.db.QueryRowContext(ctx, `SELECT id::text, name, data, created_at FROM scenarios WHERE tenant_id=$1 AND id=$2`,
        tenantID, id).Scan(&sc.ID, &sc.Name, &js, &created)
    if errors.Is(err, sql.ErrNoRows) { return model.Scenario{}, ErrNotFound }
    if err != nil { return model.Scenario{}, err }
    sc.TenantID = tenantID
    sc.CreatedAt = created.UTC().Format(time.RFC3339)
    if err := json.Unmarshal(js, &sc.Dataset); err != nil { return model.Scenario{}, err }
    return sc, nil
}

func (p *Postgres) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, data, created_at FROM scenarios WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, data, created_at FROM scenarios WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Scenario{}
    var last string
    for rows.Next() {
        var sc model.Scenario
        var js []byte
        var created time.Time
        if err := rows.Scan(&sc.ID, &sc.Name, &js, &created); err != nil { return nil, "", err }
        sc.TenantID = tenantID
        sc.CreatedAt = created.UTC().Format(time.RFC3339)
        _ = json.Unmarshal(js, &sc.Dataset)
        out = append(out, sc)
        last = sc.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteScenario(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) SaveSolve(ctx context.Context, s model.SolveSummary) error {
    _, err := p.db.ExecContext(ctx, `INSERT INTO solves (id, tenant_id, status, total_cost, trip_count, duration_ms) VALUES ($1,$2,$3,$4,$5,$6)`,
        s.ID, s.TenantID, s.Status, s.TotalCost, s.TripCount, s.DurationMs)
    return err
}

func (p *Postgres) GetSolve(ctx context.Context, tenantID, id string) (model.SolveSummary, error) {
    var s model.SolveSummary
    var cost sql.NullFloat64
    var created time.Time
    err := p.db.QueryRowContext(ctx, `SELECT id, status, total_cost, trip_count, duration_ms, created_at FROM solves WHERE tenant_id=$1 AND id=$2`,
        tenantID, id).Scan(&s.ID, &s.Status, &cost, &s.TripCount, &s.DurationMs, &created)
    if errors.Is(err, sql.ErrNoRows) { return model.SolveSummary{}, ErrNotFound }
    if err != nil { return model.SolveSummary{}, err }
    s.TenantID = tenantID
    s.CreatedAt = created.UTC().Format(time.RFC3339)
    if cost.Valid { s.TotalCost = &cost.Float64 }
    return s, nil
}

func (p *Postgres) ListSolves(ctx context.Context, tenantID, cursor string, limit int) ([]model.SolveSummary, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id, status, total_cost, trip_count, duration_ms, created_at FROM solves WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id, status, total_cost, trip_count, duration_ms, created_at FROM solves WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.SolveSummary{}
    var last string
    for rows.Next() {
        var s model.SolveSummary
        var cost sql.NullFloat64
        var created time.Time
        if err := rows.Scan(&s.ID, &s.Status, &cost, &s.TripCount, &s.DurationMs, &created); err != nil { return nil, "", err }
        s.TenantID = tenantID
        s.CreatedAt = created.UTC().Format(time.RFC3339)
        if cost.Valid { c := cost.Float64; s.TotalCost = &c }
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM solver_config WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return map[string]any{}, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    js, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO solver_config (tenant_id, config, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
    return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
    sub.ID = "sub_" + uuid.New().String()
    ev, _ := json.Marshal(sub.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        sub.ID, sub.TenantID, sub.URL, ev, sub.Secret)
    if err != nil { return model.Subscription{}, err }
    return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    ev, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb)`, tenantID, ev)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var evs []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &evs); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(evs, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
            nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, last_error, url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, delivery_id::text, event_type, url, last_error, attempts, created_at FROM webhook_dlq WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, delivery_id::text, event_type, url, last_error, attempts, created_at FROM webhook_dlq WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts int
        var created time.Time
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    var delID, et, url, secret string
    var payload []byte
    err := p.db.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&delID, &et, &url, &secret, &payload)
    if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
    if err != nil { return err }
    if _, err := p.EnqueueWebhook(ctx, tenantID, delID, et, url, secret, payload); err != nil { return err }
    _, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func computeDedupKey(payload []byte) string {
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}
