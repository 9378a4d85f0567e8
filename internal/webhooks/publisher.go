// Package webhooks fans plan lifecycle events out to subscribed
// endpoints: the publisher enqueues one delivery per matching
// subscription, the worker drains the queue with retries and HMAC
// signatures.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"truckplan/internal/store"
)

// Event types emitted around a plan run.
const (
	EventPlanCompleted  = "plan.completed"
	EventPlanInfeasible = "plan.infeasible"
	EventPlanFailed     = "plan.failed"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues the event for every subscription of the tenant that
// matches eventType. Enqueue failures are dropped; delivery is best
// effort by design of the queue, not of this call.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
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
