package model

// Core domain types shared across the API, store, and optimization core.

// Facility is a parcel center. Destinations carry a sorting shift window
// and an hourly sorting rate; shift end may exceed 24 when the shift
// crosses midnight (normalized at load time).
type Facility struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	ShiftStart float64 `json:"shiftStart"`
	ShiftEnd   float64 `json:"shiftEnd"`
	SortRate   float64 `json:"sortRatePerHour"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Consignment is one shipment bound from a source facility to a
// destination facility. ReleaseHour is the earliest hour of day it can
// leave the source.
type Consignment struct {
	ID          string  `json:"id"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	ReleaseHour float64 `json:"releaseHour"`
	Quantity    float64 `json:"quantity"`
}

// Lane is a directed origin->destination connection with measured
// travel time and distance.
type Lane struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	TravelSec   float64 `json:"travelSec"`
	DistanceM   float64 `json:"distanceM"`
}

// SolveRequest selects the sources and destination for one optimization
// run plus solver parameters. Zero values fall back to configured
// defaults.
type SolveRequest struct {
	TenantID     string   `json:"tenantId,omitempty"`
	Sources      []string `json:"sources"`
	Destination  string   `json:"destination"`
	Solver       string   `json:"solver,omitempty"`
	TimeLimitSec int      `json:"timeLimitSec,omitempty"`
	PoolSize     int      `json:"poolSize,omitempty"`
	Threads      int      `json:"threads,omitempty"`
}

// RunStatus is the externally visible outcome of a plan run.
type RunStatus string

const (
	RunOptimal    RunStatus = "optimal"
	RunSuboptimal RunStatus = "suboptimal"
	RunInfeasible RunStatus = "infeasible"
	RunError      RunStatus = "error"
)

// AssignmentRecord is one row of the result table: a consignment loaded
// onto a truck for one route of the solved plan.
type AssignmentRecord struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	ConsignmentID string  `json:"consignmentId"`
	Truck         int     `json:"truckId"`
	DepartureHour float64 `json:"departureHour"`
	ArrivalDay    int     `json:"arrivalDay"`
	ShiftStart    float64 `json:"destShiftStart"`
	ShiftEnd      float64 `json:"destShiftEnd"`
	TravelHours   float64 `json:"travelHours"`
}

// PlanRun is a persisted optimization run: the selection, solve
// parameters, outcome, and the extracted assignment table.
type PlanRun struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenantId"`
	CreatedAt    string             `json:"createdAt"`
	Status       RunStatus          `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Sources      []string           `json:"sources"`
	Destination  string             `json:"destination"`
	Solver       string             `json:"solver"`
	TimeLimitSec int                `json:"timeLimitSec"`
	PoolSize     int                `json:"poolSize"`
	Objective    float64            `json:"objective,omitempty"`
	Variables    int                `json:"variables"`
	Constraints  int                `json:"constraints"`
	BuildMs      int                `json:"buildMs"`
	SolveMs      int                `json:"solveMs"`
	Assignments  []AssignmentRecord `json:"assignments,omitempty"`
}

// SubscriptionRequest registers a webhook endpoint for plan events.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

// Subscription is a stored webhook subscription.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
