// Package solver defines the black-box contract between the model
// builder and MIP solver backends, plus the backends themselves. A
// backend receives a fully built model and solve parameters and
// reports one of four terminal statuses; callers never inspect
// backend internals.
package solver

import (
	"context"
	"time"

	"truckplan/internal/mip"
)

// Status is the terminal outcome of one solve call.
type Status string

const (
	// StatusOptimal: proven optimal within the time budget.
	StatusOptimal Status = "optimal"
	// StatusTimeLimitFeasible: the budget expired with a feasible
	// incumbent but no optimality proof.
	StatusTimeLimitFeasible Status = "time_limit_feasible"
	// StatusInfeasible: the backend proved no feasible assignment exists.
	StatusInfeasible Status = "infeasible"
	// StatusError: the backend failed; Result carries no usable values.
	StatusError Status = "error"
)

// Feasible reports whether the status carries a usable assignment.
func (s Status) Feasible() bool {
	return s == StatusOptimal || s == StatusTimeLimitFeasible
}

// DefaultTimeLimit is the solve budget applied when the caller does not
// set one.
const DefaultTimeLimit = 300 * time.Second

// Params tunes one solve call.
type Params struct {
	TimeLimit time.Duration
	Threads   int
	Seed      int64
}

func (p Params) withDefaults() Params {
	if p.TimeLimit <= 0 {
		p.TimeLimit = DefaultTimeLimit
	}
	return p
}

// Result is the outcome of one solve call. Values is populated only
// when Status.Feasible() holds.
type Result struct {
	Status    Status
	Objective float64
	Values    mip.Assignment
	// Detail is an optional backend message, set on infeasible and
	// error outcomes.
	Detail string
}

// Adapter is the backend contract. Solve blocks until a terminal
// status or ctx cancellation; a non-nil error means the call itself
// failed (transport, bad model), distinct from StatusError results
// returned by a healthy backend.
type Adapter interface {
	Name() string
	Solve(ctx context.Context, m *mip.Model, p Params) (Result, error)
}
