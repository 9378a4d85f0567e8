package opt

import (
	"context"
	"fmt"
	"sort"

	"truckplan/internal/mip"
	"truckplan/internal/solver"
)

// Greedy is an in-process constructive backend: it places combos onto
// trucks day by day and hands back a feasible assignment. It never
// claims optimality. Infeasibility is reported only when it can be
// proven from the model structure alone; a failed placement that
// proves nothing is an error, not an infeasibility claim.
type Greedy struct {
	p *Problem
}

// NewGreedy returns a greedy backend bound to one built problem.
func NewGreedy(p *Problem) *Greedy { return &Greedy{p: p} }

func (g *Greedy) Name() string { return "greedy" }

// interval is a closed range of departure hours.
type interval struct {
	lo, hi float64
}

func intersect(a, b []interval) []interval {
	out := []interval{}
	for _, x := range a {
		for _, y := range b {
			lo, hi := maxf(x.lo, y.lo), x.hi
			if y.hi < hi {
				hi = y.hi
			}
			if lo <= hi+checkEps {
				out = append(out, interval{lo, hi})
			}
		}
	}
	return out
}

// tupleIntervals returns the departure hours T in [0,24] for which
// some wrap value makes T + travel + 24(day-1) - 24*wrap land inside
// the destination window.
func (g *Greedy) tupleIntervals(travel float64, day int) []interval {
	p := g.p
	out := []interval{}
	for w := 0; w <= p.Days; w++ {
		shift := 24*float64(w) - travel - 24*float64(day-1)
		lo := maxf(p.Dest.ShiftStart+shift, 0)
		hi := p.Dest.ShiftEnd + shift
		if hi > 24 {
			hi = 24
		}
		if lo <= hi {
			out = append(out, interval{lo, hi})
		}
	}
	return out
}

// feasibleT returns the departure hours at which truck day `day` can
// carry combo ci: the carried tuple's window, the empty-tuple window
// shared with every other combo, and the release hour.
func (g *Greedy) feasibleT(ci, day int) []interval {
	c := g.p.Combos[ci]
	set := g.tupleIntervals(c.TravelHours, day)
	if len(g.p.Combos) > 1 {
		set = intersect(set, g.tupleIntervals(0, day))
	}
	return intersect(set, []interval{{c.ReleaseHour, 24}})
}

type truckPlan struct {
	day    int
	hours  []interval
	combos []int
	qty    float64
}

// Solve builds a feasible placement. The model handed in must be the
// one this backend was constructed around.
func (g *Greedy) Solve(_ context.Context, m *mip.Model, _ solver.Params) (solver.Result, error) {
	p := g.p
	if m != p.Model {
		return solver.Result{Status: solver.StatusError}, fmt.Errorf("greedy backend bound to a different model")
	}

	ceiling := p.SortingCeiling()
	total := 0.0
	for ci, c := range p.Combos {
		total += c.Quantity
		if c.Quantity > ceiling+checkEps {
			return solver.Result{
				Status: solver.StatusInfeasible,
				Detail: fmt.Sprintf("consignment %s quantity %.0f exceeds daily sorting ceiling %.0f", c.ConsignmentID, c.Quantity, ceiling),
			}, nil
		}
		placeable := false
		for d := 1; d <= p.Days && !placeable; d++ {
			placeable = len(g.feasibleT(ci, d)) > 0
		}
		if !placeable {
			return solver.Result{
				Status: solver.StatusInfeasible,
				Detail: fmt.Sprintf("consignment %s cannot reach the destination window on any day", c.ConsignmentID),
			}, nil
		}
	}
	if total > float64(p.Days)*ceiling+checkEps {
		return solver.Result{
			Status: solver.StatusInfeasible,
			Detail: fmt.Sprintf("total quantity %.0f exceeds horizon sorting capacity %.0f", total, float64(p.Days)*ceiling),
		}, nil
	}

	// Latest releases first: tight combos claim trucks before loose ones.
	order := make([]int, len(p.Combos))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ca, cb := p.Combos[order[a]], p.Combos[order[b]]
		if ca.ReleaseHour != cb.ReleaseHour {
			return ca.ReleaseHour > cb.ReleaseHour
		}
		return order[a] < order[b]
	})

	remaining := make([]float64, p.Days+1)
	for d := 1; d <= p.Days; d++ {
		remaining[d] = ceiling
	}

	trucks := []*truckPlan{}
	for _, ci := range order {
		c := p.Combos[ci]
		placed := false
		for _, tp := range trucks {
			if len(tp.combos) >= TruckCapacity || remaining[tp.day] < c.Quantity {
				continue
			}
			joint := intersect(tp.hours, g.feasibleT(ci, tp.day))
			if len(joint) == 0 {
				continue
			}
			tp.hours = joint
			tp.combos = append(tp.combos, ci)
			tp.qty += c.Quantity
			remaining[tp.day] -= c.Quantity
			placed = true
			break
		}
		if placed {
			continue
		}
		if len(trucks) >= p.Pool {
			return solver.Result{Status: solver.StatusError},
				fmt.Errorf("greedy placement ran out of trucks after %d", len(trucks))
		}
		for d := 1; d <= p.Days && !placed; d++ {
			if remaining[d] < c.Quantity {
				continue
			}
			if hours := g.feasibleT(ci, d); len(hours) > 0 {
				trucks = append(trucks, &truckPlan{day: d, hours: hours, combos: []int{ci}, qty: c.Quantity})
				remaining[d] -= c.Quantity
				placed = true
			}
		}
		if !placed {
			return solver.Result{Status: solver.StatusError},
				fmt.Errorf("greedy placement found no day with sorting capacity for consignment %s", c.ConsignmentID)
		}
	}

	a := g.assignment(trucks)
	obj := p.Model.Objective()
	return solver.Result{
		Status:    solver.StatusTimeLimitFeasible,
		Objective: obj.Evaluate(a),
		Values:    a,
	}, nil
}

// assignment materializes a placement as a full variable assignment,
// including wrap values for tuples the placement never touched.
func (g *Greedy) assignment(trucks []*truckPlan) mip.Assignment {
	p := g.p
	a := p.Model.NewAssignment()

	idleT := p.Dest.ShiftStart
	if idleT > 24 {
		idleT = 24
	}
	for l := 0; l < p.Pool; l++ {
		a[p.T[l]] = idleT
	}

	for l, tp := range trucks {
		t := tp.hours[0].lo
		a[p.T[l]] = t
		a[p.Z[l]] = 1
		a[p.Day[l][tp.day-1]] = 1
		for _, ci := range tp.combos {
			a[p.X[ci][l]] = 1
			a[p.Load[ci][l][tp.day-1]] = 1
		}
	}

	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			travel := 0.0
			day := 1
			if l < len(trucks) {
				day = trucks[l].day
			}
			if isOne(a[p.X[ci][l]]) {
				travel = c.TravelHours
			}
			a[p.Wrap[ci][l]] = float64(g.wrapFor(a[p.T[l]], travel, day))
		}
	}
	return a
}

// wrapFor picks the wrap value landing the effective arrival inside
// the window; placement guarantees one exists.
func (g *Greedy) wrapFor(t, travel float64, day int) int {
	p := g.p
	for w := 0; w <= p.Days; w++ {
		arr := t + travel + 24*float64(day-1) - 24*float64(w)
		if arr >= p.Dest.ShiftStart-checkEps && arr <= p.Dest.ShiftEnd+checkEps {
			return w
		}
	}
	return 0
}
