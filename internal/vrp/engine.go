package vrp

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInfeasible is returned by an engine that proved or gave up on
	// finding a satisfying assignment.
	ErrInfeasible = errors.New("no feasible assignment")
	// ErrTimedOut is returned by an engine whose wall-clock budget expired
	// before a complete assignment existed.
	ErrTimedOut = errors.New("solve timed out")
)

// Engine is the solving-engine contract. Implementations consume a Problem
// and its Formulation and produce a raw Assignment, or ErrInfeasible /
// ErrTimedOut. The ctx deadline is the wall-clock budget; an engine must
// return rather than block past it. How the search runs (exact, local
// search, metaheuristic) is the engine's business.
type Engine interface {
	Solve(ctx context.Context, p *Problem, f *Formulation) (*Assignment, error)
}

// RoutePlan is one vehicle's raw route: depot-anchored node indices and the
// realized cumulative time at each visited position. A vehicle serving no
// customers has empty Nodes and Arrivals.
type RoutePlan struct {
	Vehicle  int
	Nodes    []int
	Arrivals []float64
}

// Terminal returns the cumulative time at the route's final node, 0 for an
// empty route.
func (pl RoutePlan) Terminal() float64 {
	if len(pl.Arrivals) == 0 {
		return 0
	}
	return pl.Arrivals[len(pl.Arrivals)-1]
}

// Assignment is an engine's raw output: one RoutePlan per vehicle, in
// vehicle order.
type Assignment struct {
	Plans []RoutePlan
}

// WellFormed checks the structural contract on an assignment against p:
// one plan per vehicle in vehicle order, each carrying that vehicle's ID,
// parallel Nodes/Arrivals, non-empty routes anchored at the depot on both
// ends, node indices in range. It does not check capacity or time windows;
// that is Validate's job.
func (a *Assignment) WellFormed(p *Problem) error {
	if len(a.Plans) != p.NumVehicles() {
		return fmt.Errorf("assignment has %d plans for %d vehicles", len(a.Plans), p.NumVehicles())
	}
	for i, pl := range a.Plans {
		if want := p.Vehicle(i).ID; pl.Vehicle != want {
			return fmt.Errorf("plan %d carries vehicle %d, want %d", i, pl.Vehicle, want)
		}
		if len(pl.Nodes) != len(pl.Arrivals) {
			return fmt.Errorf("vehicle %d: %d nodes but %d arrival times", pl.Vehicle, len(pl.Nodes), len(pl.Arrivals))
		}
		if len(pl.Nodes) == 0 {
			continue
		}
		if len(pl.Nodes) < 2 || pl.Nodes[0] != p.DepotIndex() || pl.Nodes[len(pl.Nodes)-1] != p.DepotIndex() {
			return fmt.Errorf("vehicle %d: route not depot-anchored", pl.Vehicle)
		}
		for _, n := range pl.Nodes {
			if n < 0 || n >= p.NumCustomers() {
				return fmt.Errorf("vehicle %d: node index %d out of range", pl.Vehicle, n)
			}
		}
	}
	return nil
}

// Progress is a snapshot emitted by engines that report search progress.
type Progress struct {
	Iteration int     `json:"iteration"`
	BestCost  float64 `json:"bestCost"`
	Assigned  int     `json:"assigned"`
}

// ProgressFunc receives engine progress snapshots. Implementations must be
// fast and must not retain the Progress value's backing state.
type ProgressFunc func(Progress)
