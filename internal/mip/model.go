// Package mip holds a solver-agnostic representation of a mixed-integer
// linear model: variables, linear constraints, and a linear objective.
// A Model is built fresh per optimization run and handed to a solver
// backend through the solver.Adapter contract.
package mip

import (
	"fmt"
	"math"
)

// VarKind distinguishes binary, general integer, and continuous variables.
type VarKind int

const (
	Binary VarKind = iota
	Integer
	Continuous
)

func (k VarKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// VarIndex identifies a variable within one Model. Indices are only
// meaningful for the Model that created them.
type VarIndex int32

// Var describes a single decision variable.
type Var struct {
	Name string
	Kind VarKind
	Lo   float64
	Hi   float64
}

// Term is one coefficient*variable pair of a linear expression.
type Term struct {
	Var   VarIndex
	Coeff float64
}

// LinearExpr is a linear combination of variables plus a constant offset.
type LinearExpr struct {
	Terms  []Term
	Offset float64
}

// NewLinearExpr returns an empty expression.
func NewLinearExpr() *LinearExpr { return &LinearExpr{} }

// Add appends coeff*v to the expression and returns the expression for
// chaining.
func (e *LinearExpr) Add(v VarIndex, coeff float64) *LinearExpr {
	e.Terms = append(e.Terms, Term{Var: v, Coeff: coeff})
	return e
}

// AddConstant shifts the expression by c.
func (e *LinearExpr) AddConstant(c float64) *LinearExpr {
	e.Offset += c
	return e
}

// AddExpr appends scale*other to the expression.
func (e *LinearExpr) AddExpr(other *LinearExpr, scale float64) *LinearExpr {
	for _, t := range other.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coeff: scale * t.Coeff})
	}
	e.Offset += scale * other.Offset
	return e
}

// Evaluate computes the expression value under the given assignment.
func (e *LinearExpr) Evaluate(a Assignment) float64 {
	v := e.Offset
	for _, t := range e.Terms {
		v += t.Coeff * a[t.Var]
	}
	return v
}

// Constraint bounds a linear expression: Lo <= Expr <= Hi. Use
// math.Inf(-1) / math.Inf(1) for one-sided constraints.
type Constraint struct {
	Name string
	Expr LinearExpr
	Lo   float64
	Hi   float64
}

// Assignment holds one value per variable, indexed by VarIndex.
type Assignment []float64

// Model is a mutable container for variables, constraints, and the
// objective. It is not safe for concurrent mutation; construction is
// single-threaded by design.
type Model struct {
	name        string
	vars        []Var
	index       map[string]VarIndex
	constraints []Constraint
	objective   LinearExpr
}

// NewModel returns an empty model with the given name.
func NewModel(name string) *Model {
	return &Model{name: name, index: map[string]VarIndex{}}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

func (m *Model) addVar(v Var) VarIndex {
	if _, ok := m.index[v.Name]; ok {
		panic(fmt.Sprintf("mip: duplicate variable %q", v.Name))
	}
	idx := VarIndex(len(m.vars))
	m.vars = append(m.vars, v)
	m.index[v.Name] = idx
	return idx
}

// NewBinary adds a 0/1 variable.
func (m *Model) NewBinary(name string) VarIndex {
	return m.addVar(Var{Name: name, Kind: Binary, Lo: 0, Hi: 1})
}

// NewInteger adds an integer variable with inclusive bounds.
func (m *Model) NewInteger(name string, lo, hi float64) VarIndex {
	return m.addVar(Var{Name: name, Kind: Integer, Lo: lo, Hi: hi})
}

// NewContinuous adds a continuous variable with inclusive bounds.
func (m *Model) NewContinuous(name string, lo, hi float64) VarIndex {
	return m.addVar(Var{Name: name, Kind: Continuous, Lo: lo, Hi: hi})
}

// Lookup returns the index of a variable by name.
func (m *Model) Lookup(name string) (VarIndex, bool) {
	idx, ok := m.index[name]
	return idx, ok
}

// Var returns the variable description at idx.
func (m *Model) Var(idx VarIndex) Var { return m.vars[idx] }

// Vars returns the variable table in creation order.
func (m *Model) Vars() []Var { return m.vars }

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumBinaries returns the number of binary variables.
func (m *Model) NumBinaries() int {
	n := 0
	for _, v := range m.vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// AddConstraint appends lo <= expr <= hi.
func (m *Model) AddConstraint(name string, expr *LinearExpr, lo, hi float64) {
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: *expr, Lo: lo, Hi: hi})
}

// AddLe appends expr <= hi.
func (m *Model) AddLe(name string, expr *LinearExpr, hi float64) {
	m.AddConstraint(name, expr, math.Inf(-1), hi)
}

// AddGe appends expr >= lo.
func (m *Model) AddGe(name string, expr *LinearExpr, lo float64) {
	m.AddConstraint(name, expr, lo, math.Inf(1))
}

// AddEq appends expr == v.
func (m *Model) AddEq(name string, expr *LinearExpr, v float64) {
	m.AddConstraint(name, expr, v, v)
}

// Constraints returns all constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.constraints }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Minimize sets the objective to minimize expr.
func (m *Model) Minimize(expr *LinearExpr) { m.objective = *expr }

// Objective returns the objective expression.
func (m *Model) Objective() LinearExpr { return m.objective }

// NewAssignment returns a zero assignment sized for the model.
func (m *Model) NewAssignment() Assignment { return make(Assignment, len(m.vars)) }

// Value looks a variable up by name in the assignment; missing names
// evaluate to zero.
func (m *Model) Value(a Assignment, name string) float64 {
	idx, ok := m.index[name]
	if !ok {
		return 0
	}
	return a[idx]
}
