package store

import (
    "context"
    "errors"
    "time"

    "supplyopt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Working dataset per tenant
    SaveDataset(ctx context.Context, tenantID string, ds model.Dataset) error
    GetDataset(ctx context.Context, tenantID string) (model.Dataset, error)

    // Scenarios
    CreateScenario(ctx context.Context, tenantID, name string, ds model.Dataset) (model.Scenario, error)
    GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error)
    ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error)
    DeleteScenario(ctx context.Context, tenantID, id string) error

    // Solve history
    SaveSolve(ctx context.Context, s model.SolveSummary) error
    GetSolve(ctx context.Context, tenantID, id string) (model.SolveSummary, error)
    ListSolves(ctx context.Context, tenantID, cursor string, limit int) ([]model.SolveSummary, string, error)

    // Solver config per tenant
    GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Subscriptions
    CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error)
    RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")

// WebhookDelivery is one pending outbound webhook attempt.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
    CreatedAt      time.Time
}
