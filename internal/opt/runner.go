package opt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"truckplan/internal/dataset"
	"truckplan/internal/metrics"
	"truckplan/internal/model"
	"truckplan/internal/solver"
)

// Runner drives one optimization run end to end: validate the
// selection, build the model, solve, verify the returned assignment,
// and extract the result table.
type Runner struct {
	tables *dataset.Tables
	cfg    Config

	// Stub, when set, backs the "stub" solver name. Tests use it to
	// script solver outcomes.
	Stub solver.Adapter
}

// Config carries run defaults; zero fields fall back to package
// defaults.
type Config struct {
	Build         BuildConfig
	DefaultSolver string
	TimeLimit     time.Duration
	SolverURL     string
}

// ProgressFunc receives coarse run stages for live streaming.
type ProgressFunc func(stage string)

// NewRunner returns a runner over the loaded tables.
func NewRunner(t *dataset.Tables, cfg Config) *Runner {
	if cfg.DefaultSolver == "" {
		cfg.DefaultSolver = "greedy"
	}
	return &Runner{tables: t, cfg: cfg}
}

// Tables exposes the dataset behind the runner.
func (r *Runner) Tables() *dataset.Tables { return r.tables }

func (r *Runner) adapter(name string, p *Problem) (solver.Adapter, error) {
	switch name {
	case "greedy":
		return NewGreedy(p), nil
	case "remote":
		if r.cfg.SolverURL == "" {
			return nil, fmt.Errorf("remote solver requested but no solver URL configured")
		}
		return solver.NewRemote(r.cfg.SolverURL), nil
	case "stub":
		if r.Stub == nil {
			return nil, fmt.Errorf("stub solver requested but none installed")
		}
		return r.Stub, nil
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}

// Run executes one request. Validation problems surface as errors;
// every other outcome, including solver failure and infeasibility, is
// reported through the returned PlanRun status.
func (r *Runner) Run(ctx context.Context, req model.SolveRequest, progress ProgressFunc) (*model.PlanRun, error) {
	if progress == nil {
		progress = func(string) {}
	}

	sel, err := r.tables.ValidateSelection(req.Sources, req.Destination)
	if err != nil {
		return nil, err
	}

	solverName := req.Solver
	if solverName == "" {
		solverName = r.cfg.DefaultSolver
	}

	buildCfg := r.cfg.Build
	if req.PoolSize > 0 {
		buildCfg.Pool = req.PoolSize
	}
	buildCfg = buildCfg.withDefaults()

	run := &model.PlanRun{
		Sources:     sel.Sources,
		Destination: sel.Destination,
		Solver:      solverName,
		PoolSize:    buildCfg.Pool,
	}

	progress("building")
	buildStart := time.Now()
	p, err := Build(r.tables, sel, buildCfg)
	if err != nil {
		var pool *PoolExhaustedError
		var large *TooLargeError
		switch {
		case errors.As(err, &pool):
			run.Status = model.RunInfeasible
			run.Reason = err.Error()
			metrics.ObserveRun(string(run.Status))
			return run, nil
		case errors.As(err, &large):
			run.Status = model.RunError
			run.Reason = err.Error()
			metrics.ObserveRun(string(run.Status))
			return run, nil
		default:
			return nil, err
		}
	}
	run.BuildMs = int(time.Since(buildStart).Milliseconds())
	run.Variables = p.Model.NumVars()
	run.Constraints = p.Model.NumConstraints()
	metrics.ObserveBuild(time.Since(buildStart), p.Model.NumVars(), p.Model.NumConstraints())

	adapter, err := r.adapter(solverName, p)
	if err != nil {
		return nil, err
	}

	params := solver.Params{Threads: req.Threads, TimeLimit: r.cfg.TimeLimit}
	if req.TimeLimitSec > 0 {
		params.TimeLimit = time.Duration(req.TimeLimitSec) * time.Second
	}
	run.TimeLimitSec = int(params.TimeLimit.Seconds())
	if run.TimeLimitSec == 0 {
		run.TimeLimitSec = int(solver.DefaultTimeLimit.Seconds())
	}

	progress("solving")
	solveStart := time.Now()
	res, err := adapter.Solve(ctx, p.Model, params)
	run.SolveMs = int(time.Since(solveStart).Milliseconds())
	metrics.ObserveSolve(adapter.Name(), string(res.Status), time.Since(solveStart))
	if err != nil {
		run.Status = model.RunError
		run.Reason = fmt.Sprintf("solver %s: %v", adapter.Name(), err)
		metrics.ObserveRun(string(run.Status))
		return run, nil
	}

	if res.Status.Feasible() {
		progress("verifying")
		if len(res.Values) != p.Model.NumVars() {
			run.Status = model.RunError
			run.Reason = fmt.Sprintf("solver claimed %s but returned %d of %d values", res.Status, len(res.Values), p.Model.NumVars())
			metrics.ObserveRun(string(run.Status))
			return run, nil
		}
		results, ok := p.CheckAll(res.Values)
		if !ok {
			violated := []string{}
			for _, cr := range results {
				if !cr.OK {
					violated = append(violated, fmt.Sprintf("%s(%.4f)", cr.Name, cr.Margin))
				}
			}
			run.Status = model.RunError
			run.Reason = "solver assignment violates constraints: " + strings.Join(violated, ", ")
			metrics.ObserveRun(string(run.Status))
			return run, nil
		}
	}

	progress("extracting")
	rows, status := p.Extract(res)
	run.Status = status
	run.Reason = res.Detail
	run.Assignments = rows
	if res.Status.Feasible() {
		run.Objective = res.Objective
	}
	metrics.ObserveRun(string(run.Status))
	return run, nil
}
