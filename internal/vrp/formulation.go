package vrp

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnformulatable marks a problem whose constraint set is statically
// unsatisfiable. Detected before any engine is invoked.
var ErrUnformulatable = errors.New("unformulatable problem")

// Constraint kinds any engine must enforce on a candidate assignment.
const (
	ConstraintAssignment  = "assignment"   // every non-depot customer in exactly one route, once
	ConstraintFlow        = "flow"         // one predecessor and one successor per visited node
	ConstraintDepotAnchor = "depot_anchor" // routes start and end at the depot
	ConstraintCapacity    = "capacity"     // route demand <= vehicle capacity
	ConstraintTimeWindow  = "time_window"  // arrival within [ready, due]; waiting is slack, not a violation
	ConstraintDepotTime   = "depot_time"   // depot window bounds route start and end times
)

// ObjectiveMinTerminalTimes is the objective any engine minimizes: the sum
// over vehicles of the cumulative time at the route's return-to-depot node.
const ObjectiveMinTerminalTimes = "min_terminal_times"

// DefaultHorizonSlack matches the slack the reference formulation adds on
// top of half the depot ready time when sizing the time dimension.
const DefaultHorizonSlack = 100000

// ConstraintSpec describes one constraint family for an engine adapter.
type ConstraintSpec struct {
	Kind string `json:"kind"`
	Note string `json:"note,omitempty"`
}

// Formulation is the canonical constraint set for a Problem, expressed as
// data: what a satisfying assignment must look like, not how to search for
// it. It is handed to a solving engine together with the Problem.
type Formulation struct {
	Problem     *Problem
	Horizon     int
	Constraints []ConstraintSpec
	Objective   string
}

// NewFormulation derives the constraint set and time horizon for p and runs
// the static satisfiability pre-checks. horizonSlack <= 0 selects
// DefaultHorizonSlack.
func NewFormulation(p *Problem, horizonSlack int) (*Formulation, error) {
	if horizonSlack <= 0 {
		horizonSlack = DefaultHorizonSlack
	}
	depot := p.Depot()
	horizon := int(math.Ceil(float64(depot.ReadyTime)/2)) + horizonSlack

	for i := 0; i < p.NumCustomers(); i++ {
		if i == p.DepotIndex() {
			continue
		}
		c := p.Customer(i)
		if c.Demand > maxVehicleCapacity(p) {
			return nil, fmt.Errorf("%w: customer %d demand %d exceeds every vehicle capacity", ErrUnformulatable, c.ID, c.Demand)
		}
		// earliest possible arrival leaves the depot at its ready time
		earliest := float64(depot.ReadyTime) + p.TravelTime(p.DepotIndex(), i)
		if earliest > float64(c.DueDate) {
			return nil, fmt.Errorf("%w: customer %d unreachable before due date %d (earliest arrival %.1f)", ErrUnformulatable, c.ID, c.DueDate, earliest)
		}
		// The horizon caps cumulative time; a due date past it only narrows
		// the effective window. Reject only when that window is empty.
		if c.ReadyTime > horizon {
			return nil, fmt.Errorf("%w: customer %d ready time %d beyond horizon %d", ErrUnformulatable, c.ID, c.ReadyTime, horizon)
		}
		if earliest > float64(horizon) {
			return nil, fmt.Errorf("%w: customer %d unreachable within horizon %d (earliest arrival %.1f)", ErrUnformulatable, c.ID, horizon, earliest)
		}
	}
	if p.TotalDemand() > p.FleetCapacity() {
		return nil, fmt.Errorf("%w: total demand %d exceeds fleet capacity %d", ErrUnformulatable, p.TotalDemand(), p.FleetCapacity())
	}

	return &Formulation{
		Problem: p,
		Horizon: horizon,
		Constraints: []ConstraintSpec{
			{Kind: ConstraintAssignment},
			{Kind: ConstraintFlow},
			{Kind: ConstraintDepotAnchor, Note: "depot carries no demand or window in the assignment constraint"},
			{Kind: ConstraintCapacity},
			{Kind: ConstraintTimeWindow, Note: "arrival(j) >= arrival(i) + travel(i,j); early arrival waits"},
			{Kind: ConstraintDepotTime},
		},
		Objective: ObjectiveMinTerminalTimes,
	}, nil
}

func maxVehicleCapacity(p *Problem) int {
	max := 0
	for v := 0; v < p.NumVehicles(); v++ {
		if c := p.Vehicle(v).Capacity; c > max {
			max = c
		}
	}
	return max
}
