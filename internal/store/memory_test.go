package store

import (
	"context"
	"testing"
	"time"

	"truckplan/internal/model"
)

func TestMemoryPlanRunLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreatePlanRun(ctx, model.PlanRun{
		TenantID:    "t1",
		Status:      model.RunOptimal,
		Sources:     []string{"S1"},
		Destination: "D1",
		Solver:      "greedy",
		Assignments: []model.AssignmentRecord{{ConsignmentID: "c1", Truck: 0, ArrivalDay: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.CreatedAt == "" {
		t.Fatalf("run not stamped: %+v", run)
	}

	got, err := m.GetPlanRun(ctx, "t1", run.ID)
	if err != nil || len(got.Assignments) != 1 {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := m.GetPlanRun(ctx, "other-tenant", run.ID); err != ErrNotFound {
		t.Fatalf("tenant isolation: %v", err)
	}

	rows, err := m.ListAssignments(ctx, "t1", run.ID)
	if err != nil || rows[0].ConsignmentID != "c1" {
		t.Fatalf("assignments: %+v %v", rows, err)
	}
}

func TestMemoryListPlanRunsFilterAndCursor(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := model.RunOptimal
		if i%2 == 1 {
			status = model.RunInfeasible
		}
		if _, err := m.CreatePlanRun(ctx, model.PlanRun{TenantID: "t1", Status: status, Destination: "D1"}); err != nil {
			t.Fatal(err)
		}
	}

	page, next, err := m.ListPlanRuns(ctx, "t1", "", "", 2)
	if err != nil || len(page) != 2 || next == "" {
		t.Fatalf("first page: %d next=%q err=%v", len(page), next, err)
	}
	if page[0].Assignments != nil {
		t.Fatal("list view should drop assignments")
	}
	rest, next2, err := m.ListPlanRuns(ctx, "t1", "", next, 10)
	if err != nil || len(rest) != 3 || next2 != "" {
		t.Fatalf("second page: %d next=%q err=%v", len(rest), next2, err)
	}

	infeasible, _, err := m.ListPlanRuns(ctx, "t1", "infeasible", "", 10)
	if err != nil || len(infeasible) != 2 {
		t.Fatalf("status filter: %d %v", len(infeasible), err)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		TenantID: "t1", URL: "https://hook.example/a", Events: []string{"plan.completed"}, Secret: "s",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		TenantID: "t1", URL: "https://hook.example/b", Events: []string{"*"},
	}); err != nil {
		t.Fatal(err)
	}

	subs, err := m.GetSubscriptionsForEvent(ctx, "t1", "plan.completed")
	if err != nil || len(subs) != 2 {
		t.Fatalf("matching subs: %d %v", len(subs), err)
	}
	subs, err = m.GetSubscriptionsForEvent(ctx, "t1", "plan.infeasible")
	if err != nil || len(subs) != 1 {
		t.Fatalf("wildcard only: %d %v", len(subs), err)
	}

	if err := m.DeleteSubscription(ctx, "t1", sub.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, "t1", sub.ID); err != ErrNotFound {
		t.Fatalf("double delete: %v", err)
	}
}

func TestMemoryPlannerConfigCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	in := map[string]any{"pool": 150}
	if err := m.SavePlannerConfig(ctx, "t1", in); err != nil {
		t.Fatal(err)
	}
	in["pool"] = 999 // caller mutation must not leak in

	cfg, err := m.GetPlannerConfig(ctx, "t1")
	if err != nil || cfg["pool"] != 150 {
		t.Fatalf("config: %+v %v", cfg, err)
	}
	empty, err := m.GetPlannerConfig(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown tenant: %+v %v", empty, err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.EnqueueWebhook(ctx, "t1", "sub1", "plan.completed", "https://hook.example", "s", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("due: %+v %v", due, err)
	}

	// Retry pushed into the future is no longer due.
	later := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &later, "503", 503, 12); err != nil {
		t.Fatal(err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("retried delivery still due: %+v", due)
	}

	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 8); err != nil {
		t.Fatal(err)
	}
	if err := m.FailWebhookDelivery(ctx, "missing", "x", 0, 0); err != ErrNotFound {
		t.Fatalf("fail missing: %v", err)
	}
}
