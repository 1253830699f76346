package model

// Request/response types for the solve API.

// CustomerIn mirrors one Solomon customer row. Field names match the
// persisted instance format.
type CustomerIn struct {
	ID          int `json:"id"`
	X           int `json:"x"`
	Y           int `json:"y"`
	Demand      int `json:"demand"`
	ReadyTime   int `json:"ready_time"`
	DueDate     int `json:"due_date"`
	ServiceTime int `json:"service_time"`
}

type VehicleIn struct {
	ID       int `json:"id"`
	Capacity int `json:"capacity"`
}

// ProblemIn is a full problem instance as uploaded or parsed from a
// Solomon dataset. Index 0 of Customers is the depot by convention.
type ProblemIn struct {
	Customers []CustomerIn `json:"customers"`
	Vehicles  []VehicleIn  `json:"vehicles"`
	Depot     int          `json:"depot"`
}

// Instance is a stored problem instance.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Customers int       `json:"customers"`
	Vehicles  int       `json:"vehicles"`
	CreatedAt string    `json:"createdAt"`
	Problem   ProblemIn `json:"problem,omitempty"`
}

// SolveRequest triggers a solve of a stored instance.
type SolveRequest struct {
	InstanceID   string `json:"instanceId"`
	TimeBudgetMs int    `json:"timeBudgetMs,omitempty"`
	HorizonSlack int    `json:"horizonSlack,omitempty"`
}

// Solve statuses. Terminal statuses other than completed carry a detail
// message categorizing the failure.
const (
	SolveCompleted        = "completed"
	SolveInvalid          = "invalid_problem"
	SolveUnformulatable   = "unformulatable"
	SolveInfeasible       = "infeasible"
	SolveTimedOut         = "timed_out"
	SolveValidationFailed = "validation_failed"
)

// Solve is the record of one solve attempt over an instance.
type Solve struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
