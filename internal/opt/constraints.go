package opt

import (
	"fmt"

	"truckplan/internal/mip"
)

// Constraint generators, one per family. Each is independent and only
// appends to the model; order of generation does not affect semantics.

// addCapacityConstraints: a truck carries at most TruckCapacity combos,
// and only when used. X <= ... <= 2Z also forces Z=1 whenever any X=1,
// which is why the assignment constraint needs no X*Z product.
func (p *Problem) addCapacityConstraints() {
	for l := 0; l < p.Pool; l++ {
		e := mip.NewLinearExpr()
		for ci := range p.Combos {
			e.Add(p.X[ci][l], 1)
		}
		e.Add(p.Z[l], -float64(TruckCapacity))
		p.Model.AddLe(fmt.Sprintf("capacity_%d", l), e, 0)
	}
}

// addReleaseConstraints: T[l] >= release * X, per tuple. A truck not
// carrying the combo is unconstrained by its release hour.
func (p *Problem) addReleaseConstraints() {
	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			e := mip.NewLinearExpr().
				Add(p.T[l], 1).
				Add(p.X[ci][l], -c.ReleaseHour)
			p.Model.AddGe(fmt.Sprintf("release_%s_%d", c.ConsignmentID, l), e, 0)
		}
	}
}

// addWindowConstraints: the effective arrival hour
//
//	T + travel*X + 24*sum((d-1)*Day) - 24*Wrap
//
// must land inside the destination shift window [start, end] (end may
// exceed 24 for overnight shifts). The wrap correction is per tuple:
// two loads on the same truck may wrap differently, and tuples with
// X=0 use their own wrap to stay satisfiable.
func (p *Problem) addWindowConstraints() {
	start, end := p.Dest.ShiftStart, p.Dest.ShiftEnd
	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			e := mip.NewLinearExpr().
				Add(p.T[l], 1).
				Add(p.X[ci][l], c.TravelHours).
				Add(p.Wrap[ci][l], -24)
			for d := 1; d <= p.Days; d++ {
				e.Add(p.Day[l][d-1], 24*float64(d-1))
			}
			p.Model.AddConstraint(fmt.Sprintf("window_%s_%d", c.ConsignmentID, l), e, start, end)
		}
	}
}

// addExactlyOneConstraints: every combo rides exactly one truck. The
// capacity constraint already forces that truck's Z to 1.
func (p *Problem) addExactlyOneConstraints() {
	for ci, c := range p.Combos {
		e := mip.NewLinearExpr()
		for l := 0; l < p.Pool; l++ {
			e.Add(p.X[ci][l], 1)
		}
		p.Model.AddEq(fmt.Sprintf("assign_%s", c.ConsignmentID), e, 1)
	}
}

// addSortingConstraints: per arrival day, the quantity landing at the
// destination stays under the sorting ceiling. The X*Day product is
// linearized through the Load conjunction binaries:
//
//	Load >= X + Day - 1,  Load <= X,  Load <= Day
func (p *Problem) addSortingConstraints() {
	ceiling := p.SortingCeiling()
	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			for d := 1; d <= p.Days; d++ {
				w := p.Load[ci][l][d-1]
				tag := fmt.Sprintf("load_%s_%d_%d", c.ConsignmentID, l, d)
				p.Model.AddGe(tag+"_and", mip.NewLinearExpr().
					Add(w, 1).Add(p.X[ci][l], -1).Add(p.Day[l][d-1], -1), -1)
				p.Model.AddLe(tag+"_x", mip.NewLinearExpr().
					Add(w, 1).Add(p.X[ci][l], -1), 0)
				p.Model.AddLe(tag+"_d", mip.NewLinearExpr().
					Add(w, 1).Add(p.Day[l][d-1], -1), 0)
			}
		}
	}
	for d := 1; d <= p.Days; d++ {
		e := mip.NewLinearExpr()
		for ci, c := range p.Combos {
			for l := 0; l < p.Pool; l++ {
				e.Add(p.Load[ci][l][d-1], c.Quantity)
			}
		}
		p.Model.AddLe(fmt.Sprintf("sorting_%s_%d", p.Dest.ID, d), e, ceiling)
	}
}

// addSingleDayConstraints: sum(Day) = Z per truck. A used truck has
// exactly one arrival day; an unused truck has none.
func (p *Problem) addSingleDayConstraints() {
	for l := 0; l < p.Pool; l++ {
		e := mip.NewLinearExpr()
		for d := 1; d <= p.Days; d++ {
			e.Add(p.Day[l][d-1], 1)
		}
		e.Add(p.Z[l], -1)
		p.Model.AddEq(fmt.Sprintf("arrival_day_%d", l), e, 0)
	}
}
