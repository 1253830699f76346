package vrp

import "fmt"

// CapacityViolation reports a route whose accumulated demand exceeds the
// owning vehicle's capacity.
type CapacityViolation struct {
	Vehicle     int
	TotalDemand int
	Capacity    int
}

func (e CapacityViolation) Error() string {
	return fmt.Sprintf("capacity violation: vehicle %d carries %d over capacity %d", e.Vehicle, e.TotalDemand, e.Capacity)
}

// TimeWindowViolation reports an arrival outside a customer's window.
type TimeWindowViolation struct {
	Customer  int
	Arrival   float64
	ReadyTime int
	DueDate   int
}

func (e TimeWindowViolation) Error() string {
	return fmt.Sprintf("time window violation: customer %d arrival %.1f outside [%d,%d]", e.Customer, e.Arrival, e.ReadyTime, e.DueDate)
}

// Diagnostic is one audit-trace entry: a single check on a single route.
// The trace is plain data; callers decide whether to log or persist it.
type Diagnostic struct {
	Vehicle int    `json:"vehicle"`
	Check   string `json:"check"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
}

// Report is the validator's verdict plus its per-route trace.
type Report struct {
	Feasible bool         `json:"feasible"`
	Trace    []Diagnostic `json:"trace"`
}

// Validate independently certifies a raw assignment against the capacity
// and time-window constraints. It never trusts the engine's own claim of
// feasibility. Checks run in a fixed order — all routes for capacity in
// vehicle order, then all routes for time windows in visit order — and stop
// at the first violation, so repeated runs on the same assignment report
// the same violation. The depot is exempt from the window check; its
// cumulative times still bound the route through the engine's propagation.
func Validate(p *Problem, a *Assignment) (Report, error) {
	rep := Report{}
	if err := a.WellFormed(p); err != nil {
		rep.Trace = append(rep.Trace, Diagnostic{Check: "structure", OK: false, Detail: err.Error()})
		return rep, err
	}

	for vi, pl := range a.Plans {
		capacity := p.Vehicle(vi).Capacity
		total := 0
		for _, n := range pl.Nodes {
			total += p.Customer(n).Demand
		}
		d := Diagnostic{Vehicle: pl.Vehicle, Check: ConstraintCapacity, OK: total <= capacity,
			Detail: fmt.Sprintf("demand %d of %d", total, capacity)}
		rep.Trace = append(rep.Trace, d)
		if !d.OK {
			return rep, CapacityViolation{Vehicle: pl.Vehicle, TotalDemand: total, Capacity: capacity}
		}
	}

	for _, pl := range a.Plans {
		for k, n := range pl.Nodes {
			if n == p.DepotIndex() {
				continue
			}
			c := p.Customer(n)
			arrival := pl.Arrivals[k]
			if arrival < float64(c.ReadyTime) || arrival > float64(c.DueDate) {
				rep.Trace = append(rep.Trace, Diagnostic{Vehicle: pl.Vehicle, Check: ConstraintTimeWindow, OK: false,
					Detail: fmt.Sprintf("customer %d arrival %.1f outside [%d,%d]", c.ID, arrival, c.ReadyTime, c.DueDate)})
				return rep, TimeWindowViolation{Customer: c.ID, Arrival: arrival, ReadyTime: c.ReadyTime, DueDate: c.DueDate}
			}
		}
		rep.Trace = append(rep.Trace, Diagnostic{Vehicle: pl.Vehicle, Check: ConstraintTimeWindow, OK: true,
			Detail: fmt.Sprintf("%d visits in window", interiorLen(pl))})
	}

	rep.Feasible = true
	return rep, nil
}

func interiorLen(pl RoutePlan) int {
	if len(pl.Nodes) < 2 {
		return 0
	}
	return len(pl.Nodes) - 2
}
