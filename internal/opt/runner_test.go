package opt

import (
	"context"
	"strings"
	"testing"

	"truckplan/internal/dataset"
	"truckplan/internal/model"
	"truckplan/internal/solver"
)

func runReq(sources []string, dest string) model.SolveRequest {
	return model.SolveRequest{Sources: sources, Destination: dest, Solver: "greedy", PoolSize: 5}
}

func TestRunGreedyAssignsEarlyReleases(t *testing.T) {
	// Two consignments released before the 07:00 shift start, one hour
	// of travel: both must land on day 1 with no violations.
	tb := smallTables()
	r := NewRunner(tb, Config{})

	run, err := r.Run(context.Background(), runReq([]string{"S1"}, "D1"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunSuboptimal {
		t.Fatalf("status: %v (%s)", run.Status, run.Reason)
	}
	if len(run.Assignments) != 2 {
		t.Fatalf("assignments: %d", len(run.Assignments))
	}
	for _, row := range run.Assignments {
		if row.ArrivalDay != 1 {
			t.Errorf("consignment %s arrival day %d, want 1", row.ConsignmentID, row.ArrivalDay)
		}
		if row.DepartureHour < 5 || row.DepartureHour > 18 {
			t.Errorf("departure hour %v out of range", row.DepartureHour)
		}
		if row.TravelHours != 1 || row.ShiftStart != 7 || row.ShiftEnd != 19 {
			t.Errorf("row detail: %+v", row)
		}
	}
	if run.Objective != 1 {
		t.Fatalf("objective: %v, want 1 (one truck, day 1)", run.Objective)
	}
	if run.Variables == 0 || run.Constraints == 0 {
		t.Fatal("model size not recorded")
	}
}

func TestRunGreedyUnreachableWindowIsInfeasible(t *testing.T) {
	// Release 12:30 plus 22h of travel can only reach the destination
	// between 09:00 and 12:00 regardless of the day; the 07:00-10:00
	// window is out of reach for any departure after release.
	tb := dataset.NewTables()
	tb.Destinations["D1"] = model.Facility{ID: "D1", ShiftStart: 7, ShiftEnd: 10, SortRate: 100}
	tb.Consignments = []model.Consignment{
		{ID: "c1", Origin: "S1", Destination: "D1", ReleaseHour: 12.5, Quantity: 10},
	}
	tb.Lanes[dataset.LaneKey{Origin: "S1", Destination: "D1"}] = model.Lane{TravelSec: 22 * 3600}

	r := NewRunner(tb, Config{})
	run, err := r.Run(context.Background(), runReq([]string{"S1"}, "D1"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != model.RunInfeasible {
		t.Fatalf("status: %v (%s)", run.Status, run.Reason)
	}
	if len(run.Assignments) != 0 {
		t.Fatalf("infeasible run has %d assignments", len(run.Assignments))
	}
	if !strings.Contains(run.Reason, "c1") {
		t.Fatalf("reason: %q", run.Reason)
	}
}

func TestRunGreedyQuantityOverCeilingIsInfeasible(t *testing.T) {
	tb := smallTables()
	tb.Consignments[0].Quantity = 100000
	r := NewRunner(tb, Config{})
	run, err := r.Run(context.Background(), runReq([]string{"S1"}, "D1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunInfeasible {
		t.Fatalf("status: %v (%s)", run.Status, run.Reason)
	}
}

func TestRunGreedySpreadsDaysWhenCeilingBinds(t *testing.T) {
	// Ceiling 600 per day, four consignments of 400: at most one per
	// day fits, so arrival days must differ pairwise-disjoint in load.
	tb := smallTables()
	tb.Consignments = nil
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		tb.Consignments = append(tb.Consignments, model.Consignment{
			ID: id, Origin: "S1", Destination: "D1", ReleaseHour: 5, Quantity: 400,
		})
	}
	r := NewRunner(tb, Config{})
	run, err := r.Run(context.Background(), runReq([]string{"S1"}, "D1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSuboptimal {
		t.Fatalf("status: %v (%s)", run.Status, run.Reason)
	}
	perDay := map[int]float64{}
	for _, row := range run.Assignments {
		perDay[row.ArrivalDay] += 400
	}
	for d, qty := range perDay {
		if qty > 600 {
			t.Errorf("day %d load %v exceeds ceiling", d, qty)
		}
	}
}

func TestRunPoolExhaustedReportsInfeasible(t *testing.T) {
	tb := smallTables()
	tb.Consignments = append(tb.Consignments,
		model.Consignment{ID: "c3", Origin: "S1", Destination: "D1", ReleaseHour: 4, Quantity: 50})
	r := NewRunner(tb, Config{})
	req := runReq([]string{"S1"}, "D1")
	req.PoolSize = 1
	run, err := r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunInfeasible || !strings.Contains(run.Reason, "trucks") {
		t.Fatalf("run: %+v", run)
	}
}

func TestRunValidationErrorsPropagate(t *testing.T) {
	r := NewRunner(smallTables(), Config{})
	_, err := r.Run(context.Background(), runReq(nil, "D1"), nil)
	if !dataset.IsValidation(err) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	_, err = r.Run(context.Background(), model.SolveRequest{Sources: []string{"S1"}, Destination: "D1", Solver: "nonesuch"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown solver") {
		t.Fatalf("unknown solver: %v", err)
	}
}

func TestRunStubStatusMapping(t *testing.T) {
	tb := smallTables()
	r := NewRunner(tb, Config{})
	req := runReq([]string{"S1"}, "D1")
	req.Solver = "stub"

	r.Stub = &solver.Stub{Result: solver.Result{Status: solver.StatusInfeasible, Detail: "proved empty"}}
	run, err := r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunInfeasible || run.Reason != "proved empty" {
		t.Fatalf("infeasible mapping: %+v", run)
	}

	r.Stub = &solver.Stub{Result: solver.Result{Status: solver.StatusError, Detail: "backend crashed"}}
	run, err = r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunError {
		t.Fatalf("error mapping: %+v", run)
	}
}

func TestRunRejectsClaimedFeasibleWithViolations(t *testing.T) {
	// A backend claiming feasibility is never trusted: a short value
	// vector and an all-zero assignment must both end as run errors.
	tb := smallTables()
	r := NewRunner(tb, Config{})
	req := runReq([]string{"S1"}, "D1")
	req.Solver = "stub"

	lying := &solver.Stub{Result: solver.Result{Status: solver.StatusOptimal}}
	r.Stub = lying
	run, err := r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunError || !strings.Contains(run.Reason, "values") {
		t.Fatalf("short vector: %+v", run)
	}

	// Size the vector correctly but leave every variable at zero: the
	// exactly-one family must flag it.
	lying.Result.Values = lying.LastModel.NewAssignment()
	run, err = r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunError || !strings.Contains(run.Reason, "exactly_one") {
		t.Fatalf("zero assignment: %+v", run)
	}
}

func TestRunGreedyProgressStages(t *testing.T) {
	tb := smallTables()
	r := NewRunner(tb, Config{})
	stages := []string{}
	_, err := r.Run(context.Background(), runReq([]string{"S1"}, "D1"), func(s string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"building", "solving", "verifying", "extracting"}
	if len(stages) != len(want) {
		t.Fatalf("stages: %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage %d: got %s, want %s", i, stages[i], want[i])
		}
	}
}
