package opt

import (
	"truckplan/internal/mip"
	"truckplan/internal/model"
	"truckplan/internal/solver"
)

// Extract maps a solve result back into domain rows: one record per
// carried (combo, truck) pair. Infeasible and error outcomes yield an
// empty table annotated through the run status; a time-limited
// feasible incumbent is extracted and marked suboptimal.
func (p *Problem) Extract(res solver.Result) ([]model.AssignmentRecord, model.RunStatus) {
	switch res.Status {
	case solver.StatusInfeasible:
		return nil, model.RunInfeasible
	case solver.StatusError:
		return nil, model.RunError
	}

	status := model.RunOptimal
	if res.Status == solver.StatusTimeLimitFeasible {
		status = model.RunSuboptimal
	}

	rows := []model.AssignmentRecord{}
	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			if !isOne(res.Values[p.X[ci][l]]) || !isOne(res.Values[p.Z[l]]) {
				continue
			}
			rows = append(rows, model.AssignmentRecord{
				Origin:        c.Origin,
				Destination:   c.Destination,
				ConsignmentID: c.ConsignmentID,
				Truck:         l,
				DepartureHour: res.Values[p.T[l]],
				ArrivalDay:    p.arrivalDay(res.Values, l),
				ShiftStart:    p.Dest.ShiftStart,
				ShiftEnd:      p.Dest.ShiftEnd,
				TravelHours:   c.TravelHours,
			})
		}
	}
	return rows, status
}

func (p *Problem) arrivalDay(a mip.Assignment, l int) int {
	for d := 1; d <= p.Days; d++ {
		if isOne(a[p.Day[l][d-1]]) {
			return d
		}
	}
	return 0
}

func isOne(v float64) bool { return v > 0.5 }
