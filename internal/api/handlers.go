package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"truckplan/internal/buildinfo"
	"truckplan/internal/dataset"
	"truckplan/internal/model"
	"truckplan/internal/webhooks"
)

// PlansHandler handles /v1/plans: POST starts an optimization run,
// GET lists past runs.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		if !pr.CanPlan() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin role required", r.URL.Path)
			return
		}
		if !s.limiter.Allow() {
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "plan creation rate exceeded", r.URL.Path)
			return
		}
		var body struct {
			model.SolveRequest
			Async bool `json:"async"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON: "+err.Error(), r.URL.Path)
			return
		}
		if err := validateSolveRequest(&body.SolveRequest); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), r.URL.Path)
			return
		}
		body.TenantID = pr.Tenant
		planID := uuid.New().String()

		if body.Async {
			go func() {
				_, _ = s.executeRun(context.Background(), planID, body.SolveRequest)
			}()
			writeJSON(w, http.StatusAccepted, map[string]any{"id": planID, "status": "running"})
			return
		}
		run, err := s.executeRun(r.Context(), planID, body.SolveRequest)
		if err != nil {
			if dataset.IsValidation(err) {
				writeProblem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, run)

	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, next, err := s.Store.ListPlanRuns(r.Context(), pr.Tenant,
			r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": runs, "nextCursor": next})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// executeRun drives one run: broker progress events while it works,
// persistence of the outcome, then a terminal event to streams and
// webhook subscribers.
func (s *Server) executeRun(ctx context.Context, planID string, req model.SolveRequest) (model.PlanRun, error) {
	progress := func(stage string) {
		s.Broker.Publish(planID, RunEvent{Type: "plan.progress", Data: map[string]any{
			"planId": planID, "stage": stage,
		}})
	}
	run, err := s.Runner.Run(ctx, req, progress)
	if err != nil {
		s.Broker.Publish(planID, RunEvent{Type: webhooks.EventPlanFailed, Data: map[string]any{
			"planId": planID, "error": err.Error(),
		}})
		return model.PlanRun{}, err
	}
	run.ID = planID
	run.TenantID = req.TenantID
	stored, err := s.Store.CreatePlanRun(ctx, *run)
	if err != nil {
		return model.PlanRun{}, err
	}

	event := webhooks.EventPlanCompleted
	switch stored.Status {
	case model.RunInfeasible:
		event = webhooks.EventPlanInfeasible
	case model.RunError:
		event = webhooks.EventPlanFailed
	}
	summary := map[string]any{
		"planId":      stored.ID,
		"status":      stored.Status,
		"reason":      stored.Reason,
		"objective":   stored.Objective,
		"assignments": len(stored.Assignments),
	}
	s.Broker.Publish(planID, RunEvent{Type: event, Data: summary})
	s.Pub.Emit(ctx, stored.TenantID, event, summary)
	return stored, nil
}

// PlanByIDHandler handles /v1/plans/{id} plus the /assignments and
// /events/stream subresources.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id := parts[0]

	if len(parts) >= 3 && parts[1] == "events" && parts[2] == "stream" {
		s.streamPlanEvents(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(parts) >= 2 && parts[1] == "assignments" {
		rows, err := s.Store.ListAssignments(r.Context(), pr.Tenant, id)
		if err != nil {
			writeProblem(w, http.StatusNotFound, "Not Found", "plan not found", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
		return
	}
	run, err := s.Store.GetPlanRun(r.Context(), pr.Tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "plan not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) streamPlanEvents(w http.ResponseWriter, r *http.Request, planID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "streaming unsupported", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(planID)
	defer s.Broker.Unsubscribe(planID, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", planID, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// FacilitiesHandler lists destination facilities and known source ids.
func (s *Server) FacilitiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t := s.Runner.Tables()
	dests := []model.Facility{}
	for _, f := range t.Destinations {
		dests = append(dests, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"destinations": dests,
		"sources":      t.SourceIDs(),
	})
}

// LanesHandler lists the lane table.
func (s *Server) LanesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	lanes := []model.Lane{}
	for _, l := range s.Runner.Tables().Lanes {
		lanes = append(lanes, l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lanes})
}

// ConsignmentsHandler lists consignments, optionally filtered by
// origin and destination.
func (s *Server) ConsignmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")
	out := []model.Consignment{}
	for _, c := range s.Runner.Tables().Consignments {
		if origin != "" && c.Origin != origin {
			continue
		}
		if destination != "" && c.Destination != destination {
			continue
		}
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// PlannerConfigHandler returns the effective planner defaults for the
// caller's tenant.
func (s *Server) PlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	overrides, err := s.Store.GetPlannerConfig(r.Context(), pr.Tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
		return
	}
	cfg := map[string]any{
		"solver":       s.Cfg.Solver.Backend,
		"timeLimitSec": s.Cfg.Solver.TimeLimitSec,
		"poolSize":     s.Cfg.Solver.Pool,
		"days":         s.Cfg.Solver.Days,
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	writeJSON(w, http.StatusOK, cfg)
}

// AdminPlannerConfigHandler reads and writes tenant planner overrides.
func (s *Server) AdminPlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin role required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetPlannerConfig(r.Context(), pr.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		cfg := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON", r.URL.Path)
			return
		}
		if err := s.Store.SavePlannerConfig(r.Context(), pr.Tenant, cfg); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles /v1/subscriptions: POST registers a
// webhook endpoint, GET lists them.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON", r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "url and events required", r.URL.Path)
			return
		}
		req.TenantID = pr.Tenant
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		sub.Secret = ""
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		subs, next, err := s.Store.ListSubscriptions(r.Context(), pr.Tenant, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), r.URL.Path)
			return
		}
		for i := range subs {
			subs[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": subs, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), pr.Tenant, id); err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "subscription not found", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler reports liveness plus build metadata.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

// ReadyHandler reports readiness: the dataset must be loaded.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	t := s.Runner.Tables()
	if len(t.Destinations) == 0 || len(t.Lanes) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"destinations": len(t.Destinations),
		"lanes":        len(t.Lanes),
		"consignments": len(t.Consignments),
	})
}
