package solver

import (
	"context"

	"truckplan/internal/mip"
)

// Stub is a canned backend for tests. It records the last model and
// params it was handed and replays a fixed result.
type Stub struct {
	Result Result
	Err    error

	LastModel  *mip.Model
	LastParams Params
	Calls      int
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Solve(_ context.Context, m *mip.Model, p Params) (Result, error) {
	s.LastModel = m
	s.LastParams = p.withDefaults()
	s.Calls++
	return s.Result, s.Err
}
