package vrp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProblem marks malformed input data. Solving must not proceed.
var ErrInvalidProblem = errors.New("invalid problem")

// Customer is a single stop in the plane with a demand and an allowed
// arrival window. Index 0 of a Problem's customer list is the depot.
type Customer struct {
	ID          int `json:"id"`
	X           int `json:"x"`
	Y           int `json:"y"`
	Demand      int `json:"demand"`
	ReadyTime   int `json:"ready_time"`
	DueDate     int `json:"due_date"`
	ServiceTime int `json:"service_time"`
}

// Window returns the allowed arrival interval [ready, due].
func (c Customer) Window() (int, int) { return c.ReadyTime, c.DueDate }

type Vehicle struct {
	ID       int `json:"id"`
	Capacity int `json:"capacity"`
}

// Problem is the immutable VRPTW instance: customers (depot at the depot
// index), the fleet, and the derived travel-time matrix. Construct with
// NewProblem; a constructed Problem is never mutated and is safe for
// concurrent reads.
type Problem struct {
	customers []Customer
	vehicles  []Vehicle
	depot     int
	travel    [][]float64
}

// NewProblem validates the input data and precomputes the travel-time
// matrix: travel[i][j] = dist(i,j) + serviceTime(i) for i != j, 0 otherwise.
// Service time is folded into every outgoing edge of its node, so it is paid
// exactly once per visit, on departure.
func NewProblem(customers []Customer, vehicles []Vehicle, depot int) (*Problem, error) {
	if len(customers) < 1 {
		return nil, fmt.Errorf("%w: no customers", ErrInvalidProblem)
	}
	if len(vehicles) < 1 {
		return nil, fmt.Errorf("%w: no vehicles", ErrInvalidProblem)
	}
	if depot < 0 || depot >= len(customers) {
		return nil, fmt.Errorf("%w: depot index %d out of range [0,%d)", ErrInvalidProblem, depot, len(customers))
	}
	for _, v := range vehicles {
		if v.Capacity <= 0 {
			return nil, fmt.Errorf("%w: vehicle %d capacity %d must be positive", ErrInvalidProblem, v.ID, v.Capacity)
		}
	}
	for _, c := range customers {
		if c.ReadyTime > c.DueDate {
			return nil, fmt.Errorf("%w: customer %d window [%d,%d] inverted", ErrInvalidProblem, c.ID, c.ReadyTime, c.DueDate)
		}
		if c.Demand < 0 {
			return nil, fmt.Errorf("%w: customer %d demand %d negative", ErrInvalidProblem, c.ID, c.Demand)
		}
		if c.ServiceTime < 0 {
			return nil, fmt.Errorf("%w: customer %d service time %d negative", ErrInvalidProblem, c.ID, c.ServiceTime)
		}
	}
	p := &Problem{
		customers: append([]Customer(nil), customers...),
		vehicles:  append([]Vehicle(nil), vehicles...),
		depot:     depot,
	}
	p.travel = make([][]float64, len(p.customers))
	for i := range p.customers {
		p.travel[i] = make([]float64, len(p.customers))
		for j := range p.customers {
			if i == j {
				continue
			}
			p.travel[i][j] = p.Distance(i, j) + float64(p.customers[i].ServiceTime)
		}
	}
	return p, nil
}

func (p *Problem) NumCustomers() int { return len(p.customers) }
func (p *Problem) NumVehicles() int  { return len(p.vehicles) }
func (p *Problem) DepotIndex() int   { return p.depot }

// Customer returns the customer at index i.
func (p *Problem) Customer(i int) Customer { return p.customers[i] }

// Vehicle returns the vehicle at index v.
func (p *Problem) Vehicle(v int) Vehicle { return p.vehicles[v] }

// Depot returns the depot customer record.
func (p *Problem) Depot() Customer { return p.customers[p.depot] }

// Distance is the Euclidean distance between customers i and j.
func (p *Problem) Distance(i, j int) float64 {
	a, b := p.customers[i], p.customers[j]
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// TravelTime is the edge cost from i to j: Euclidean distance plus the
// service time of the origin node. TravelTime(i,i) is 0.
func (p *Problem) TravelTime(i, j int) float64 { return p.travel[i][j] }

// TotalDemand sums demand over all non-depot customers.
func (p *Problem) TotalDemand() int {
	total := 0
	for i, c := range p.customers {
		if i == p.depot {
			continue
		}
		total += c.Demand
	}
	return total
}

// FleetCapacity sums capacity over all vehicles.
func (p *Problem) FleetCapacity() int {
	total := 0
	for _, v := range p.vehicles {
		total += v.Capacity
	}
	return total
}
