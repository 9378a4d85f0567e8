package opt

import (
	"truckplan/internal/mip"
)

// Post-solution verification. Each checker evaluates a candidate
// assignment against one constraint family and reports the worst
// violation margin, independent of the solver's own feasibility claim.

const checkEps = 1e-6

// CheckResult is one family's verdict. Margin is the largest violation
// found, 0 when the family holds.
type CheckResult struct {
	Name   string  `json:"name"`
	OK     bool    `json:"ok"`
	Margin float64 `json:"margin"`
}

func result(name string, margin float64) CheckResult {
	if margin < 0 {
		margin = 0
	}
	return CheckResult{Name: name, OK: margin <= checkEps, Margin: margin}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// CheckCapacity verifies sum(X) <= 2Z per truck.
func (p *Problem) CheckCapacity(a mip.Assignment) CheckResult {
	worst := 0.0
	for l := 0; l < p.Pool; l++ {
		loaded := 0.0
		for ci := range p.Combos {
			loaded += a[p.X[ci][l]]
		}
		worst = maxf(worst, loaded-float64(TruckCapacity)*a[p.Z[l]])
	}
	return result("capacity", worst)
}

// CheckRelease verifies T >= release for every carried combo.
func (p *Problem) CheckRelease(a mip.Assignment) CheckResult {
	worst := 0.0
	for ci, c := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			worst = maxf(worst, c.ReleaseHour*a[p.X[ci][l]]-a[p.T[l]])
		}
	}
	return result("release", worst)
}

func (p *Problem) arrival(a mip.Assignment, ci, l int) float64 {
	v := a[p.T[l]] + p.Combos[ci].TravelHours*a[p.X[ci][l]] - 24*a[p.Wrap[ci][l]]
	for d := 1; d <= p.Days; d++ {
		v += 24 * float64(d-1) * a[p.Day[l][d-1]]
	}
	return v
}

// CheckWindow verifies the effective arrival hour of every tuple stays
// inside the destination shift window.
func (p *Problem) CheckWindow(a mip.Assignment) CheckResult {
	worst := 0.0
	for ci := range p.Combos {
		for l := 0; l < p.Pool; l++ {
			arr := p.arrival(a, ci, l)
			worst = maxf(worst, p.Dest.ShiftStart-arr)
			worst = maxf(worst, arr-p.Dest.ShiftEnd)
		}
	}
	return result("window", worst)
}

// CheckExactlyOne verifies every combo rides exactly one truck.
func (p *Problem) CheckExactlyOne(a mip.Assignment) CheckResult {
	worst := 0.0
	for ci := range p.Combos {
		total := 0.0
		for l := 0; l < p.Pool; l++ {
			total += a[p.X[ci][l]]
		}
		worst = maxf(worst, absf(total-1))
	}
	return result("exactly_one", worst)
}

// CheckSorting verifies the per-day incoming quantity against the
// sorting ceiling, using the actual X*Day product rather than the
// linearization binaries.
func (p *Problem) CheckSorting(a mip.Assignment) CheckResult {
	ceiling := p.SortingCeiling()
	worst := 0.0
	for d := 1; d <= p.Days; d++ {
		qty := 0.0
		for ci, c := range p.Combos {
			for l := 0; l < p.Pool; l++ {
				qty += c.Quantity * a[p.X[ci][l]] * a[p.Day[l][d-1]]
			}
		}
		worst = maxf(worst, qty-ceiling)
	}
	return result("sorting", worst)
}

// CheckSingleDay verifies sum(Day) = Z per truck.
func (p *Problem) CheckSingleDay(a mip.Assignment) CheckResult {
	worst := 0.0
	for l := 0; l < p.Pool; l++ {
		total := 0.0
		for d := 1; d <= p.Days; d++ {
			total += a[p.Day[l][d-1]]
		}
		worst = maxf(worst, absf(total-a[p.Z[l]]))
	}
	return result("single_day", worst)
}

// CheckAll runs every family and reports whether all hold.
func (p *Problem) CheckAll(a mip.Assignment) ([]CheckResult, bool) {
	results := []CheckResult{
		p.CheckCapacity(a),
		p.CheckRelease(a),
		p.CheckWindow(a),
		p.CheckExactlyOne(a),
		p.CheckSorting(a),
		p.CheckSingleDay(a),
	}
	ok := true
	for _, r := range results {
		ok = ok && r.OK
	}
	return results, ok
}
