package vrp

// EvaluateCost computes the total cost of an assignment: the sum over
// vehicles of the cumulative time at the route's return-to-depot node.
// Driving, waiting, and service time are already folded into that
// cumulative time by the schedule propagation, so nothing else needs to be
// added. Pure and idempotent; callable on an infeasible assignment for
// diagnostics, and an empty route contributes 0.
func EvaluateCost(a *Assignment) float64 {
	total := 0.0
	for _, pl := range a.Plans {
		total += pl.Terminal()
	}
	return total
}
