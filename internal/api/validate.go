package api

import (
	"fmt"

	"truckplan/internal/dataset"
	"truckplan/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if len(req.Sources) == 0 {
		return fmt.Errorf("sources required")
	}
	if len(req.Sources) > dataset.MaxSources {
		return fmt.Errorf("at most %d sources", dataset.MaxSources)
	}
	if req.Destination == "" {
		return fmt.Errorf("destination required")
	}
	switch req.Solver {
	case "", "greedy", "remote", "stub":
	default:
		return fmt.Errorf("invalid solver: %s", req.Solver)
	}
	if req.TimeLimitSec < 0 {
		return fmt.Errorf("timeLimitSec must be >= 0")
	}
	if req.PoolSize < 0 {
		return fmt.Errorf("poolSize must be >= 0")
	}
	if req.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	return nil
}
