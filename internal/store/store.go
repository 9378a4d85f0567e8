package store

import (
	"context"
	"errors"
	"time"

	"truckplan/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Plan runs
	CreatePlanRun(ctx context.Context, run model.PlanRun) (model.PlanRun, error)
	GetPlanRun(ctx context.Context, tenantID, id string) (model.PlanRun, error)
	ListPlanRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.PlanRun, string, error)
	ListAssignments(ctx context.Context, tenantID, planID string) ([]model.AssignmentRecord, error)

	// Planner config per tenant
	GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error
}

var ErrNotFound = errors.New("not found")
