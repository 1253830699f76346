package vrp

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoStopProblem is the reference scenario: depot 0 with window [0,1000],
// C1 demand 10 window [10,50] service 5, C2 demand 10 window [60,100]
// service 5, one vehicle.
func twoStopProblem(t *testing.T, capacity int, c2Ready, c2Due int) *Problem {
	t.Helper()
	customers := []Customer{
		{ID: 0, X: 0, Y: 0, ReadyTime: 0, DueDate: 1000},
		{ID: 1, X: 20, Y: 0, Demand: 10, ReadyTime: 10, DueDate: 50, ServiceTime: 5},
		{ID: 2, X: 45, Y: 0, Demand: 10, ReadyTime: c2Ready, DueDate: c2Due, ServiceTime: 5},
	}
	p, err := NewProblem(customers, []Vehicle{{ID: 0, Capacity: capacity}}, 0)
	require.NoError(t, err)
	return p
}

func twoStopAssignment() *Assignment {
	return &Assignment{Plans: []RoutePlan{{
		Vehicle:  0,
		Nodes:    []int{0, 1, 2, 0},
		Arrivals: []float64{0, 20, 70, 80},
	}}}
}

func TestValidate_FeasibleRoute(t *testing.T) {
	p := twoStopProblem(t, 20, 60, 100)
	rep, err := Validate(p, twoStopAssignment())
	require.NoError(t, err)
	assert.True(t, rep.Feasible)
	// one capacity entry plus one time-window entry for the single route
	require.Len(t, rep.Trace, 2)
	assert.Equal(t, ConstraintCapacity, rep.Trace[0].Check)
	assert.True(t, rep.Trace[0].OK)
	assert.Equal(t, ConstraintTimeWindow, rep.Trace[1].Check)
	assert.True(t, rep.Trace[1].OK)
}

func TestValidate_CapacityViolation(t *testing.T) {
	p := twoStopProblem(t, 15, 60, 100)
	rep, err := Validate(p, twoStopAssignment())
	assert.False(t, rep.Feasible)

	var cv CapacityViolation
	require.True(t, errors.As(err, &cv), "got %v", err)
	assert.Equal(t, 0, cv.Vehicle)
	assert.Equal(t, 20, cv.TotalDemand)
	assert.Equal(t, 15, cv.Capacity)
}

func TestValidate_TimeWindowViolation(t *testing.T) {
	p := twoStopProblem(t, 20, 10, 50) // C2 window tightened
	rep, err := Validate(p, twoStopAssignment())
	assert.False(t, rep.Feasible)

	var tw TimeWindowViolation
	require.True(t, errors.As(err, &tw), "got %v", err)
	assert.Equal(t, 2, tw.Customer)
	assert.Equal(t, 70.0, tw.Arrival)
	assert.Equal(t, 10, tw.ReadyTime)
	assert.Equal(t, 50, tw.DueDate)
}

func TestValidate_DepotExemptFromWindow(t *testing.T) {
	p := twoStopProblem(t, 20, 60, 100)
	a := twoStopAssignment()
	// depot arrival before its own ready time would violate a window check;
	// the depot must be exempt
	a.Plans[0].Arrivals[0] = 0
	rep, err := Validate(p, a)
	require.NoError(t, err)
	assert.True(t, rep.Feasible)
}

func TestValidate_Deterministic(t *testing.T) {
	p := twoStopProblem(t, 15, 10, 50) // both capacity and window violated
	a := twoStopAssignment()
	first, errFirst := Validate(p, a)
	for i := 0; i < 5; i++ {
		rep, err := Validate(p, a)
		assert.Equal(t, first, rep)
		assert.Equal(t, errFirst, err)
	}
	// capacity is always checked before time windows
	var cv CapacityViolation
	assert.True(t, errors.As(errFirst, &cv))
}

func TestValidate_MalformedAssignment(t *testing.T) {
	p := twoStopProblem(t, 20, 60, 100)

	t.Run("not depot anchored", func(t *testing.T) {
		a := &Assignment{Plans: []RoutePlan{{Nodes: []int{1, 2}, Arrivals: []float64{20, 70}}}}
		rep, err := Validate(p, a)
		require.Error(t, err)
		assert.False(t, rep.Feasible)
	})
	t.Run("arrival count mismatch", func(t *testing.T) {
		a := &Assignment{Plans: []RoutePlan{{Nodes: []int{0, 1, 0}, Arrivals: []float64{0, 20}}}}
		_, err := Validate(p, a)
		require.Error(t, err)
	})
	t.Run("wrong plan count", func(t *testing.T) {
		_, err := Validate(p, &Assignment{})
		require.Error(t, err)
	})
	t.Run("vehicle id does not match slot", func(t *testing.T) {
		a := twoStopAssignment()
		a.Plans[0].Vehicle = 7
		rep, err := Validate(p, a)
		require.Error(t, err)
		assert.False(t, rep.Feasible)
		require.Len(t, rep.Trace, 1)
		assert.Equal(t, "structure", rep.Trace[0].Check)
	})
}

// Randomized agreement check: the validator's capacity verdict must match a
// direct demand sum for arbitrary demands and capacities.
func TestValidate_CapacityAgreesWithDirectSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(6)
		customers := make([]Customer, n+1)
		customers[0] = Customer{ID: 0, DueDate: 1 << 20}
		total := 0
		for i := 1; i <= n; i++ {
			d := rng.Intn(30)
			total += d
			customers[i] = Customer{ID: i, X: i, Demand: d, DueDate: 1 << 20}
		}
		capacity := 1 + rng.Intn(120)
		p, err := NewProblem(customers, []Vehicle{{ID: 0, Capacity: capacity}}, 0)
		require.NoError(t, err)

		nodes := []int{0}
		arrivals := []float64{0}
		tcur := 0.0
		cur := 0
		for i := 1; i <= n; i++ {
			tcur += p.TravelTime(cur, i)
			nodes = append(nodes, i)
			arrivals = append(arrivals, tcur)
			cur = i
		}
		tcur += p.TravelTime(cur, 0)
		nodes = append(nodes, 0)
		arrivals = append(arrivals, tcur)

		a := &Assignment{Plans: []RoutePlan{{Vehicle: 0, Nodes: nodes, Arrivals: arrivals}}}
		rep, err := Validate(p, a)
		if total <= capacity {
			assert.NoError(t, err, "trial %d: demand %d capacity %d", trial, total, capacity)
			assert.True(t, rep.Feasible)
		} else {
			var cv CapacityViolation
			require.True(t, errors.As(err, &cv), "trial %d: want capacity violation, got %v", trial, err)
			assert.Equal(t, total, cv.TotalDemand)
			assert.Equal(t, capacity, cv.Capacity)
		}
	}
}
