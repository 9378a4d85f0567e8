package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"truckplan/internal/model"
)

// Memory is an in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	runs     map[string]model.PlanRun // id -> run, assignments included
	runOrder []string                 // insertion order, newest last
	subs     map[string][]model.Subscription
	cfg      map[string]map[string]any

	deliveries map[string]*memDelivery
	queue      []string // delivery ids in enqueue order
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.PlanRun{},
		subs:       map[string][]model.Subscription{},
		cfg:        map[string]map[string]any{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) CreatePlanRun(_ context.Context, run model.PlanRun) (model.PlanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)
	return run, nil
}

func (m *Memory) GetPlanRun(_ context.Context, tenantID, id string) (model.PlanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok || run.TenantID != tenantID {
		return model.PlanRun{}, ErrNotFound
	}
	return run, nil
}

func (m *Memory) ListPlanRuns(_ context.Context, tenantID, status, cursor string, limit int) ([]model.PlanRun, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	ids := []string{}
	for i := len(m.runOrder) - 1; i >= 0; i-- { // newest first
		run := m.runs[m.runOrder[i]]
		if run.TenantID != tenantID {
			continue
		}
		if status != "" && string(run.Status) != status {
			continue
		}
		ids = append(ids, run.ID)
	}
	off := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			off = n
		}
	}
	out := []model.PlanRun{}
	next := ""
	for i := off; i < len(ids) && len(out) < limit; i++ {
		run := m.runs[ids[i]]
		run.Assignments = nil // list view stays light
		out = append(out, run)
	}
	if off+len(out) < len(ids) {
		next = strconv.Itoa(off + len(out))
	}
	return out, next, nil
}

func (m *Memory) ListAssignments(_ context.Context, tenantID, planID string) ([]model.AssignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[planID]
	if !ok || run.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return run.Assignments, nil
}

func (m *Memory) GetPlannerConfig(_ context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.cfg[tenantID]
	if !ok {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	for k, v := range cfg {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SavePlannerConfig(_ context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := map[string]any{}
	for k, v := range cfg {
		cp[k] = v
	}
	m.cfg[tenantID] = cp
	return nil
}

func (m *Memory) CreateSubscription(_ context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{
		ID:       uuid.New().String(),
		TenantID: req.TenantID,
		URL:      req.URL,
		Events:   append([]string(nil), req.Events...),
		Secret:   req.Secret,
	}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(_ context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, sub := range m.subs[tenantID] {
		for _, e := range sub.Events {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	subs := append([]model.Subscription(nil), m.subs[tenantID]...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	off := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			off = n
		}
	}
	end := off + limit
	if end > len(subs) {
		end = len(subs)
	}
	next := ""
	if end < len(subs) {
		next = strconv.Itoa(end)
	}
	if off > len(subs) {
		off = len(subs)
	}
	return subs[off:end], next, nil
}

func (m *Memory) DeleteSubscription(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[tenantID]
	for i, sub := range subs {
		if sub.ID == id {
			m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(_ context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			TenantID:       tenantID,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        payload,
			Status:         "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(_ context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if d == nil || d.Status != "pending" || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(_ context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
	} else if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(_ context.Context, id, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}
