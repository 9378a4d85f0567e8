// Package dataset holds the normalized input tables for an optimization
// run: destination facilities, consignments, and lanes. Tables are
// loaded once at startup; selections are validated against them before
// any model is built.
package dataset

import (
	"errors"
	"fmt"
	"sort"

	"truckplan/internal/model"
)

// ValidationError reports missing or inconsistent input data. It is
// raised before model construction; a selection that trips it never
// reaches the solver.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "data validation: " + e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// LaneKey identifies a directed lane.
type LaneKey struct {
	Origin      string
	Destination string
}

// Tables is the in-memory dataset used by the model builder.
type Tables struct {
	Destinations map[string]model.Facility
	Consignments []model.Consignment
	Lanes        map[LaneKey]model.Lane
}

// NewTables returns an empty dataset.
func NewTables() *Tables {
	return &Tables{
		Destinations: map[string]model.Facility{},
		Lanes:        map[LaneKey]model.Lane{},
	}
}

// NormalizeShifts rewrites every destination shift window so that an
// end hour earlier than the start hour wraps to the next day
// (end += 24). The same convention feeds the arrival-time arithmetic
// in the model; both sides must agree on it.
func (t *Tables) NormalizeShifts() {
	for id, f := range t.Destinations {
		if f.ShiftEnd < f.ShiftStart {
			f.ShiftEnd += 24
			t.Destinations[id] = f
		}
	}
}

// Destination returns the destination facility or a ValidationError if
// its shift data is absent.
func (t *Tables) Destination(id string) (model.Facility, error) {
	f, ok := t.Destinations[id]
	if !ok {
		return model.Facility{}, validationf("no shift data for destination %q", id)
	}
	return f, nil
}

// Lane returns the lane entry for origin->destination or a
// ValidationError when the lane table has no such row.
func (t *Tables) Lane(origin, destination string) (model.Lane, error) {
	l, ok := t.Lanes[LaneKey{Origin: origin, Destination: destination}]
	if !ok {
		return model.Lane{}, validationf("no lane entry for route %s -> %s", origin, destination)
	}
	return l, nil
}

// ConsignmentsFor returns all consignments on the given route, in a
// stable order.
func (t *Tables) ConsignmentsFor(origin, destination string) []model.Consignment {
	out := []model.Consignment{}
	for _, c := range t.Consignments {
		if c.Origin == origin && c.Destination == destination {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SourceIDs returns the distinct origin ids present in the lane table.
func (t *Tables) SourceIDs() []string {
	seen := map[string]struct{}{}
	for k := range t.Lanes {
		seen[k.Origin] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MaxSources bounds the selection size; the variable count grows with
// the consignment universe, so the UI caps the pick at eight.
const MaxSources = 8

// Selection is one validated (source set, destination) pick.
type Selection struct {
	Sources     []string
	Destination string
}

// ValidateSelection checks the selection rules against the tables:
// 1..MaxSources distinct sources, exactly one known destination, and
// the destination not among the sources. Lane coverage is checked per
// route by the model builder.
func (t *Tables) ValidateSelection(sources []string, destination string) (Selection, error) {
	if len(sources) == 0 {
		return Selection{}, validationf("no source facilities selected")
	}
	if len(sources) > MaxSources {
		return Selection{}, validationf("%d sources selected, max is %d", len(sources), MaxSources)
	}
	if destination == "" {
		return Selection{}, validationf("no destination facility selected")
	}
	seen := map[string]struct{}{}
	for _, s := range sources {
		if s == destination {
			return Selection{}, validationf("destination %q is also a selected source", destination)
		}
		if _, dup := seen[s]; dup {
			return Selection{}, validationf("duplicate source %q", s)
		}
		seen[s] = struct{}{}
	}
	if _, err := t.Destination(destination); err != nil {
		return Selection{}, err
	}
	out := append([]string(nil), sources...)
	sort.Strings(out)
	return Selection{Sources: out, Destination: destination}, nil
}
