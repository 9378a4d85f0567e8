// Package opt builds the truck assignment model, generates its
// constraints, verifies solved assignments, and extracts result rows.
// One Problem is built per (source set, destination) selection and
// discarded after the run; variables never survive across runs.
package opt

import (
	"fmt"

	"truckplan/internal/dataset"
	"truckplan/internal/mip"
	"truckplan/internal/model"
)

const (
	// DefaultPool is the truck pool size when the request does not set one.
	DefaultPool = 300
	// DefaultDays is the arrival-day horizon (days 1..6).
	DefaultDays = 6
	// DefaultMaxBinaries caps the binary variable count of one model.
	DefaultMaxBinaries = 2_000_000
	// TruckCapacity is the per-truck consignment limit.
	TruckCapacity = 2
)

// BuildConfig tunes model construction. Zero fields use defaults.
type BuildConfig struct {
	Pool        int
	Days        int
	MaxBinaries int
}

func (c BuildConfig) withDefaults() BuildConfig {
	if c.Pool <= 0 {
		c.Pool = DefaultPool
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.MaxBinaries <= 0 {
		c.MaxBinaries = DefaultMaxBinaries
	}
	return c
}

// PoolExhaustedError means the consignment load cannot fit the truck
// pool even at full capacity. It is an infeasibility proof, produced
// before any model is built.
type PoolExhaustedError struct {
	Combos int
	Pool   int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("%d consignments cannot fit %d trucks at %d per truck", e.Combos, e.Pool, TruckCapacity)
}

// TooLargeError means the model would exceed the configured binary
// variable ceiling. The build is rejected instead of constructing an
// intractable model.
type TooLargeError struct {
	Binaries int
	Limit    int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("model needs %d binaries, ceiling is %d", e.Binaries, e.Limit)
}

// Combo is one valid (route, consignment) pair: the consignment's
// origin and destination match the route exactly. Combos are the unit
// of assignment; each must land on exactly one truck.
type Combo struct {
	Origin        string
	Destination   string
	ConsignmentID string
	ReleaseHour   float64
	Quantity      float64
	TravelHours   float64
}

// Problem is one fully built model plus the index tables needed to
// read variables back out of a solved assignment.
//
// Variable layout per truck l and combo c (day d in 1..Days):
//
//	X[c][l]        binary   combo c rides truck l
//	Z[l]           binary   truck l is used
//	T[l]           continuous in [0,24], departure hour
//	Day[l][d-1]    binary   truck l arrives on day d
//	Wrap[c][l]     integer in [0,Days], day-wrap correction per tuple
//	Load[c][l][d-1] binary  conjunction X[c][l] AND Day[l][d-1]
type Problem struct {
	Selection dataset.Selection
	Dest      model.Facility
	Combos    []Combo
	Pool      int
	Days      int

	Model *mip.Model
	X     [][]mip.VarIndex
	Z     []mip.VarIndex
	T     []mip.VarIndex
	Day   [][]mip.VarIndex
	Wrap  [][]mip.VarIndex
	Load  [][][]mip.VarIndex
}

// SortingCeiling is the per-day throughput bound of the destination:
// half the shift length times the hourly sorting rate.
func (p *Problem) SortingCeiling() float64 {
	return (p.Dest.ShiftEnd - p.Dest.ShiftStart) / 2 * p.Dest.SortRate
}

// binaryCount predicts the binary variable total before building.
func binaryCount(combos, pool, days int) int {
	return combos*pool + pool + pool*days + combos*pool*days
}

// Build derives the valid combo universe for the selection, sizes it
// against the pool and the binary ceiling, and instantiates all
// variables and constraints. Construction is deterministic: identical
// inputs produce identical variable and constraint counts.
func Build(t *dataset.Tables, sel dataset.Selection, cfg BuildConfig) (*Problem, error) {
	cfg = cfg.withDefaults()

	dest, err := t.Destination(sel.Destination)
	if err != nil {
		return nil, err
	}

	combos := []Combo{}
	for _, src := range sel.Sources {
		lane, err := t.Lane(src, sel.Destination)
		if err != nil {
			return nil, err
		}
		travel := lane.TravelSec / 3600
		for _, c := range t.ConsignmentsFor(src, sel.Destination) {
			combos = append(combos, Combo{
				Origin:        src,
				Destination:   sel.Destination,
				ConsignmentID: c.ID,
				ReleaseHour:   c.ReleaseHour,
				Quantity:      c.Quantity,
				TravelHours:   travel,
			})
		}
	}
	if len(combos) == 0 {
		return nil, &dataset.ValidationError{Msg: "no consignments on the selected routes"}
	}
	if len(combos) > TruckCapacity*cfg.Pool {
		return nil, &PoolExhaustedError{Combos: len(combos), Pool: cfg.Pool}
	}
	if n := binaryCount(len(combos), cfg.Pool, cfg.Days); n > cfg.MaxBinaries {
		return nil, &TooLargeError{Binaries: n, Limit: cfg.MaxBinaries}
	}

	p := &Problem{
		Selection: sel,
		Dest:      dest,
		Combos:    combos,
		Pool:      cfg.Pool,
		Days:      cfg.Days,
		Model:     mip.NewModel(fmt.Sprintf("dispatch_%s", sel.Destination)),
	}
	p.addVariables()
	p.addCapacityConstraints()
	p.addReleaseConstraints()
	p.addWindowConstraints()
	p.addExactlyOneConstraints()
	p.addSortingConstraints()
	p.addSingleDayConstraints()
	p.setObjective()
	return p, nil
}

func (p *Problem) addVariables() {
	m := p.Model

	p.Z = make([]mip.VarIndex, p.Pool)
	p.T = make([]mip.VarIndex, p.Pool)
	p.Day = make([][]mip.VarIndex, p.Pool)
	for l := 0; l < p.Pool; l++ {
		p.Z[l] = m.NewBinary(fmt.Sprintf("Z_%d", l))
		// Departure is an hour of day one; later physical departures
		// are expressed through the arrival-day offset.
		p.T[l] = m.NewContinuous(fmt.Sprintf("T_%d", l), 0, 24)
		p.Day[l] = make([]mip.VarIndex, p.Days)
		for d := 1; d <= p.Days; d++ {
			p.Day[l][d-1] = m.NewBinary(fmt.Sprintf("ArrivalDayBinary_%d_%d", l, d))
		}
	}

	p.X = make([][]mip.VarIndex, len(p.Combos))
	p.Wrap = make([][]mip.VarIndex, len(p.Combos))
	p.Load = make([][][]mip.VarIndex, len(p.Combos))
	for ci, c := range p.Combos {
		p.X[ci] = make([]mip.VarIndex, p.Pool)
		p.Wrap[ci] = make([]mip.VarIndex, p.Pool)
		p.Load[ci] = make([][]mip.VarIndex, p.Pool)
		for l := 0; l < p.Pool; l++ {
			tag := fmt.Sprintf("%s_%s_%s_%d", c.Origin, c.Destination, c.ConsignmentID, l)
			p.X[ci][l] = m.NewBinary("X_" + tag)
			p.Wrap[ci][l] = m.NewInteger("Wrap_"+tag, 0, float64(p.Days))
			p.Load[ci][l] = make([]mip.VarIndex, p.Days)
			for d := 1; d <= p.Days; d++ {
				p.Load[ci][l][d-1] = m.NewBinary(fmt.Sprintf("Load_%s_%d", tag, d))
			}
		}
	}
}

// setObjective minimizes the summed arrival day over used trucks. The
// single-day constraint ties Day rows to Z, so unused trucks
// contribute nothing without a nonlinear Z factor.
func (p *Problem) setObjective() {
	obj := mip.NewLinearExpr()
	for l := 0; l < p.Pool; l++ {
		for d := 1; d <= p.Days; d++ {
			obj.Add(p.Day[l][d-1], float64(d))
		}
	}
	p.Model.Minimize(obj)
}
