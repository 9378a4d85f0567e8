package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"truckplan/internal/mip"
)

// Remote solves against an external MIP service over HTTP. The model
// is shipped as JSON and the service answers with a terminal status
// and a dense value vector in variable creation order.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote returns a Remote backend posting to url (e.g.
// http://solver:9090/solve). The HTTP timeout is managed per call from
// the solve budget, not here.
func NewRemote(url string) *Remote {
	return &Remote{url: url, client: &http.Client{}}
}

func (r *Remote) Name() string { return "remote" }

type wireVar struct {
	Name string  `json:"name"`
	Kind string  `json:"kind"`
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
}

type wireTerm struct {
	Var   int32   `json:"var"`
	Coeff float64 `json:"coeff"`
}

type wireConstraint struct {
	Name   string     `json:"name"`
	Terms  []wireTerm `json:"terms"`
	Offset float64    `json:"offset,omitempty"`
	Lo     *float64   `json:"lo,omitempty"`
	Hi     *float64   `json:"hi,omitempty"`
}

type wireRequest struct {
	Name         string           `json:"name"`
	Vars         []wireVar        `json:"vars"`
	Constraints  []wireConstraint `json:"constraints"`
	Objective    []wireTerm       `json:"objective"`
	TimeLimitSec float64          `json:"timeLimitSec"`
	Threads      int              `json:"threads,omitempty"`
	Seed         int64            `json:"seed,omitempty"`
}

type wireResponse struct {
	Status    string    `json:"status"`
	Objective float64   `json:"objective"`
	Values    []float64 `json:"values"`
	Detail    string    `json:"detail,omitempty"`
}

func encodeModel(m *mip.Model, p Params) wireRequest {
	req := wireRequest{
		Name:         m.Name(),
		TimeLimitSec: p.TimeLimit.Seconds(),
		Threads:      p.Threads,
		Seed:         p.Seed,
	}
	for _, v := range m.Vars() {
		req.Vars = append(req.Vars, wireVar{Name: v.Name, Kind: v.Kind.String(), Lo: v.Lo, Hi: v.Hi})
	}
	for _, c := range m.Constraints() {
		wc := wireConstraint{Name: c.Name, Offset: c.Expr.Offset}
		for _, t := range c.Expr.Terms {
			wc.Terms = append(wc.Terms, wireTerm{Var: int32(t.Var), Coeff: t.Coeff})
		}
		// Omit infinite bounds on the wire.
		if lo := c.Lo; !isNegInf(lo) {
			wc.Lo = &lo
		}
		if hi := c.Hi; !isPosInf(hi) {
			wc.Hi = &hi
		}
		req.Constraints = append(req.Constraints, wc)
	}
	obj := m.Objective()
	for _, t := range obj.Terms {
		req.Objective = append(req.Objective, wireTerm{Var: int32(t.Var), Coeff: t.Coeff})
	}
	return req
}

func isNegInf(v float64) bool { return v < -1e308 }
func isPosInf(v float64) bool { return v > 1e308 }

// Solve posts the model and maps the service status onto the adapter
// contract. An unreachable service or malformed reply is a call error,
// not a StatusError result.
func (r *Remote) Solve(ctx context.Context, m *mip.Model, p Params) (Result, error) {
	p = p.withDefaults()

	body, err := json.Marshal(encodeModel(m, p))
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("encode model: %w", err)
	}

	// Leave headroom over the solve budget for transport.
	ctx, cancel := context.WithTimeout(ctx, p.TimeLimit+30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusError}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("solver request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Status: StatusError}, fmt.Errorf("solver returned %d", resp.StatusCode)
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return Result{Status: StatusError}, fmt.Errorf("decode solver response: %w", err)
	}

	res := Result{Objective: wr.Objective, Detail: wr.Detail}
	switch Status(wr.Status) {
	case StatusOptimal, StatusTimeLimitFeasible:
		res.Status = Status(wr.Status)
		if len(wr.Values) != m.NumVars() {
			return Result{Status: StatusError}, fmt.Errorf("solver returned %d values, model has %d vars", len(wr.Values), m.NumVars())
		}
		res.Values = mip.Assignment(wr.Values)
	case StatusInfeasible:
		res.Status = StatusInfeasible
	case StatusError:
		res.Status = StatusError
	default:
		return Result{Status: StatusError}, fmt.Errorf("unknown solver status %q", wr.Status)
	}
	return res, nil
}
