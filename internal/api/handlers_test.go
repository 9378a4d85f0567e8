package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"truckplan/internal/config"
	"truckplan/internal/dataset"
	"truckplan/internal/model"
	"truckplan/internal/opt"
)

func testTables() *dataset.Tables {
	t := dataset.NewTables()
	t.Destinations["D1"] = model.Facility{ID: "D1", Name: "Hub One", ShiftStart: 7, ShiftEnd: 19, SortRate: 100}
	t.Consignments = []model.Consignment{
		{ID: "c1", Origin: "S1", Destination: "D1", ReleaseHour: 5, Quantity: 100},
		{ID: "c2", Origin: "S1", Destination: "D1", ReleaseHour: 6, Quantity: 150},
	}
	t.Lanes[dataset.LaneKey{Origin: "S1", Destination: "D1"}] = model.Lane{Origin: "S1", Destination: "D1", TravelSec: 3600}
	return t
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit = config.RateLimitConfig{RPS: 1000, Burst: 1000}
	runner := opt.NewRunner(testTables(), opt.Config{Build: opt.BuildConfig{Pool: 10}})
	s, err := NewServer(cfg, runner)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func postPlan(t *testing.T, s *Server, body map[string]any, role string) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", role)
	s.PlansHandler(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestPlanCreateAndFetch(t *testing.T) {
	s := newTestServer(t)
	rr := postPlan(t, s, map[string]any{"sources": []string{"S1"}, "destination": "D1"}, "planner")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", rr.Code, rr.Body.String())
	}
	var run model.PlanRun
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSuboptimal || len(run.Assignments) != 2 {
		t.Fatalf("run: %+v", run)
	}

	// GET by id
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+run.ID, nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlanByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("get: %d", rr.Code)
	}

	// Assignments subresource
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+run.ID+"/assignments", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlanByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("assignments: %d", rr.Code)
	}
	var page struct {
		Items []model.AssignmentRecord `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil || len(page.Items) != 2 {
		t.Fatalf("assignments body: %s (%v)", rr.Body.String(), err)
	}

	// Tenant isolation
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+run.ID, nil)
	req.Header.Set("X-Tenant-Id", "t_other")
	s.PlanByIDHandler(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross tenant: %d", rr.Code)
	}

	// List
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans?limit=5", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlansHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("list: %d", rr.Code)
	}
}

func TestPlanCreateValidation(t *testing.T) {
	s := newTestServer(t)
	if rr := postPlan(t, s, map[string]any{"destination": "D1"}, "planner"); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing sources: %d", rr.Code)
	}
	if rr := postPlan(t, s, map[string]any{"sources": []string{"S1"}, "destination": "D1", "solver": "cplex"}, "planner"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad solver: %d", rr.Code)
	}
	// Unknown destination is a data validation problem, not bad syntax.
	if rr := postPlan(t, s, map[string]any{"sources": []string{"S1"}, "destination": "D9"}, "planner"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown destination: %d", rr.Code)
	}
}

func TestPlanCreateRBAC(t *testing.T) {
	s := newTestServer(t)
	if rr := postPlan(t, s, map[string]any{"sources": []string{"S1"}, "destination": "D1"}, "viewer"); rr.Code != http.StatusForbidden {
		t.Fatalf("viewer allowed: %d", rr.Code)
	}
}

func TestPlanCreateRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 1}
	runner := opt.NewRunner(testTables(), opt.Config{Build: opt.BuildConfig{Pool: 10}})
	s, err := NewServer(cfg, runner)
	if err != nil {
		t.Fatal(err)
	}
	body := map[string]any{"sources": []string{"S1"}, "destination": "D1"}
	if rr := postPlan(t, s, body, "planner"); rr.Code != http.StatusCreated {
		t.Fatalf("first request: %d", rr.Code)
	}
	if rr := postPlan(t, s, body, "planner"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rr.Code)
	}
}

func TestPlanAsyncEmitsTerminalEvent(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(map[string]any{"sources": []string{"S1"}, "destination": "D1", "async": true})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "planner")

	// Subscribe before the run starts is not possible from outside, so
	// take the id from the 202 and poll the store instead.
	s.PlansHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("async create: %d", rr.Code)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.ID == "" {
		t.Fatalf("async body: %s", rr.Body.String())
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+resp.ID, nil)
		req.Header.Set("X-Tenant-Id", "t_test")
		rr := httptest.NewRecorder()
		s.PlanByIDHandler(rr, req)
		if rr.Code == 200 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("async run never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFacilitiesLanesConsignments(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.FacilitiesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/facilities", nil))
	if rr.Code != 200 {
		t.Fatalf("facilities: %d", rr.Code)
	}
	var fac struct {
		Destinations []model.Facility `json:"destinations"`
		Sources      []string         `json:"sources"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fac); err != nil {
		t.Fatal(err)
	}
	if len(fac.Destinations) != 1 || len(fac.Sources) != 1 || fac.Sources[0] != "S1" {
		t.Fatalf("facilities body: %+v", fac)
	}

	rr = httptest.NewRecorder()
	s.LanesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/lanes", nil))
	if rr.Code != 200 {
		t.Fatalf("lanes: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.ConsignmentsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/consignments?origin=S1", nil))
	var cons struct {
		Items []model.Consignment `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cons); err != nil || len(cons.Items) != 2 {
		t.Fatalf("consignments: %s (%v)", rr.Body.String(), err)
	}
	rr = httptest.NewRecorder()
	s.ConsignmentsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/consignments?origin=S9", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &cons); err != nil || len(cons.Items) != 0 {
		t.Fatalf("filtered consignments: %s", rr.Body.String())
	}
}

func TestPlannerConfigHandlers(t *testing.T) {
	s := newTestServer(t)

	// Admin writes an override.
	b, _ := json.Marshal(map[string]any{"poolSize": 42})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "admin")
	s.AdminPlannerConfigHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("admin put: %d", rr.Code)
	}

	// Non-admin cannot.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "planner")
	s.AdminPlannerConfigHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("planner put: %d", rr.Code)
	}

	// Effective config merges defaults with the override.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/planner/config", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlannerConfigHandler(rr, req)
	var cfg map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["poolSize"] != float64(42) || cfg["solver"] != "greedy" {
		t.Fatalf("effective config: %+v", cfg)
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	s := newTestServer(t)

	b, _ := json.Marshal(map[string]any{"url": "https://hook.example", "events": []string{"plan.completed"}, "secret": "shh"})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}
	var sub model.Subscription
	if err := json.Unmarshal(rr.Body.Bytes(), &sub); err != nil {
		t.Fatal(err)
	}
	if sub.Secret != "" {
		t.Fatal("secret echoed back")
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("list: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SubscriptionByIDHandler(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
}

func TestPlanRunEmitsWebhook(t *testing.T) {
	s := newTestServer(t)

	b, _ := json.Marshal(map[string]any{"url": "https://hook.example", "events": []string{"plan.completed"}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("subscribe: %d", rr.Code)
	}

	if rr := postPlan(t, s, map[string]any{"sources": []string{"S1"}, "destination": "D1"}, "planner"); rr.Code != http.StatusCreated {
		t.Fatalf("plan: %d", rr.Code)
	}
	due, err := s.Store.FetchDueWebhookDeliveries(req.Context(), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("deliveries: %+v %v", due, err)
	}
	if due[0].EventType != "plan.completed" {
		t.Fatalf("event type: %s", due[0].EventType)
	}
}
