package vrp

import "math"

// VehicleRoute is one vehicle's persisted route: depot-anchored node
// indices, or an empty sequence when the vehicle serves no customers.
type VehicleRoute struct {
	Vehicle int   `json:"vehicle"`
	Route   []int `json:"route"`
}

// Result is the sole externally visible artifact of a solve: the routes and
// the evaluated integer cost. It is persisted and served as-is.
type Result struct {
	Routes []VehicleRoute `json:"routes"`
	Cost   int            `json:"cost"`
}

// ExtractRoutes converts a raw assignment into per-vehicle route sequences.
// A vehicle with no customers yields an empty (non-nil) route so it still
// serializes explicitly as [].
func ExtractRoutes(a *Assignment) []VehicleRoute {
	out := make([]VehicleRoute, len(a.Plans))
	for i, pl := range a.Plans {
		route := make([]int, len(pl.Nodes))
		copy(route, pl.Nodes)
		out[i] = VehicleRoute{Vehicle: pl.Vehicle, Route: route}
	}
	return out
}

// BuildResult packages the extracted routes with the evaluated cost. It
// reads only the assignment; the engine is never re-invoked.
func BuildResult(a *Assignment) Result {
	return Result{
		Routes: ExtractRoutes(a),
		Cost:   int(math.Round(EvaluateCost(a))),
	}
}
