package vrp

import (
	"context"
	"math"
	"sort"
	"time"
)

// HeuristicEngine is the built-in Engine: cheapest feasible insertion to
// construct an assignment, then 2-opt and relocate improvement passes until
// the ctx deadline. It is deterministic for a given problem. External
// engines can replace it behind the Engine interface without the rest of
// the system noticing.
type HeuristicEngine struct {
	// Progress, when set, receives a snapshot after construction and after
	// every improvement round.
	Progress ProgressFunc
}

func NewHeuristicEngine() *HeuristicEngine { return &HeuristicEngine{} }

func (e *HeuristicEngine) Solve(ctx context.Context, p *Problem, f *Formulation) (*Assignment, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(300 * time.Second)
	}

	routes := make([][]int, p.NumVehicles()) // interior customer orders, no depot anchors
	loads := make([]int, p.NumVehicles())

	// insert customers most urgent first so tight windows claim positions early
	pending := make([]int, 0, p.NumCustomers()-1)
	for i := 0; i < p.NumCustomers(); i++ {
		if i != p.DepotIndex() {
			pending = append(pending, i)
		}
	}
	sort.Slice(pending, func(a, b int) bool {
		ca, cb := p.Customer(pending[a]), p.Customer(pending[b])
		if ca.DueDate != cb.DueDate {
			return ca.DueDate < cb.DueDate
		}
		return pending[a] < pending[b]
	})

	assigned := 0
	for _, node := range pending {
		if timedOut(ctx, deadline) {
			return nil, ErrTimedOut
		}
		vi, pos, found := cheapestInsertion(p, f, routes, loads, node)
		if !found {
			return nil, ErrInfeasible
		}
		routes[vi] = insertAt(routes[vi], pos, node)
		loads[vi] += p.Customer(node).Demand
		assigned++
	}
	e.report(1, p, routes, assigned)

	// improvement: intra-route 2-opt plus single-node relocate across routes
	iter := 1
	improved := true
	for improved && !timedOut(ctx, deadline) {
		improved = false
		for vi := range routes {
			if next, ok := twoOptRoute(p, f, routes[vi]); ok {
				routes[vi] = next
				improved = true
			}
		}
		if relocateOnce(p, f, routes, loads) {
			improved = true
		}
		iter++
		e.report(iter, p, routes, assigned)
	}

	return buildAssignment(p, routes), nil
}

func (e *HeuristicEngine) report(iter int, p *Problem, routes [][]int, assigned int) {
	if e.Progress == nil {
		return
	}
	e.Progress(Progress{Iteration: iter, BestCost: routesCost(p, routes), Assigned: assigned})
}

func timedOut(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !time.Now().Before(deadline)
}

// scheduleRoute propagates cumulative time over the depot-anchored route
// implied by the interior order. The vehicle leaves the depot at its ready
// time, waits when early, and the route is infeasible when any arrival
// passes its due date or the return passes the depot window or horizon.
func scheduleRoute(p *Problem, f *Formulation, order []int) ([]float64, bool) {
	depot := p.DepotIndex()
	t := float64(p.Depot().ReadyTime)
	arrivals := make([]float64, 0, len(order)+2)
	arrivals = append(arrivals, t)
	cur := depot
	for _, n := range order {
		t += p.TravelTime(cur, n)
		c := p.Customer(n)
		if t < float64(c.ReadyTime) {
			t = float64(c.ReadyTime)
		}
		if t > float64(c.DueDate) {
			return nil, false
		}
		arrivals = append(arrivals, t)
		cur = n
	}
	t += p.TravelTime(cur, depot)
	if t > float64(p.Depot().DueDate) || (f != nil && t > float64(f.Horizon)) {
		return nil, false
	}
	arrivals = append(arrivals, t)
	return arrivals, true
}

func cheapestInsertion(p *Problem, f *Formulation, routes [][]int, loads []int, node int) (vi, pos int, found bool) {
	bestCost := math.MaxFloat64
	demand := p.Customer(node).Demand
	for v := range routes {
		if loads[v]+demand > p.Vehicle(v).Capacity {
			continue
		}
		base := routeTerminal(p, f, routes[v])
		for i := 0; i <= len(routes[v]); i++ {
			cand := insertAt(append([]int(nil), routes[v]...), i, node)
			arr, ok := scheduleRoute(p, f, cand)
			if !ok {
				continue
			}
			delta := arr[len(arr)-1] - base
			if delta < bestCost {
				bestCost = delta
				vi, pos, found = v, i, true
			}
		}
	}
	return vi, pos, found
}

func insertAt(order []int, pos, node int) []int {
	order = append(order, 0)
	copy(order[pos+1:], order[pos:])
	order[pos] = node
	return order
}

func routeTerminal(p *Problem, f *Formulation, order []int) float64 {
	if len(order) == 0 {
		return 0
	}
	arr, ok := scheduleRoute(p, f, order)
	if !ok {
		return math.MaxFloat64
	}
	return arr[len(arr)-1]
}

func routesCost(p *Problem, routes [][]int) float64 {
	total := 0.0
	for _, r := range routes {
		if len(r) == 0 {
			continue
		}
		total += routeTerminal(p, nil, r)
	}
	return total
}

// twoOptRoute reverses interior segments when that shortens the route and
// keeps the schedule feasible. Returns the improved order and whether any
// reversal was applied.
func twoOptRoute(p *Problem, f *Formulation, order []int) ([]int, bool) {
	if len(order) < 3 {
		return order, false
	}
	base := routeTerminal(p, f, order)
	applied := false
	for i := 0; i < len(order)-1; i++ {
		for k := i + 1; k < len(order); k++ {
			cand := append([]int(nil), order...)
			for a, b := i, k; a < b; a, b = a+1, b-1 {
				cand[a], cand[b] = cand[b], cand[a]
			}
			arr, ok := scheduleRoute(p, f, cand)
			if !ok {
				continue
			}
			if arr[len(arr)-1]+1e-9 < base {
				order = cand
				base = arr[len(arr)-1]
				applied = true
			}
		}
	}
	return order, applied
}

// relocateOnce moves a single customer between routes when the move lowers
// total terminal time and stays feasible. First improving move wins.
func relocateOnce(p *Problem, f *Formulation, routes [][]int, loads []int) bool {
	for from := range routes {
		for i := 0; i < len(routes[from]); i++ {
			node := routes[from][i]
			demand := p.Customer(node).Demand
			without := append(append([]int(nil), routes[from][:i]...), routes[from][i+1:]...)
			if _, ok := scheduleRoute(p, f, without); !ok {
				continue
			}
			before := routeTerminal(p, f, routes[from])
			for to := range routes {
				if to == from || loads[to]+demand > p.Vehicle(to).Capacity {
					continue
				}
				for j := 0; j <= len(routes[to]); j++ {
					cand := insertAt(append([]int(nil), routes[to]...), j, node)
					if _, ok := scheduleRoute(p, f, cand); !ok {
						continue
					}
					gain := before + routeTerminal(p, f, routes[to]) -
						routeTerminal(p, f, without) - routeTerminal(p, f, cand)
					if gain > 1e-9 {
						routes[from] = without
						routes[to] = cand
						loads[from] -= demand
						loads[to] += demand
						return true
					}
				}
			}
		}
	}
	return false
}

func buildAssignment(p *Problem, routes [][]int) *Assignment {
	a := &Assignment{Plans: make([]RoutePlan, p.NumVehicles())}
	depot := p.DepotIndex()
	for v := range routes {
		pl := RoutePlan{Vehicle: p.Vehicle(v).ID}
		if len(routes[v]) > 0 {
			arr, _ := scheduleRoute(p, nil, routes[v])
			pl.Nodes = append(append([]int{depot}, routes[v]...), depot)
			pl.Arrivals = arr
		}
		a.Plans[v] = pl
	}
	return a
}
