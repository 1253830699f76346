package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts solve attempts by terminal outcome
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrptw_solves_total", Help: "Solve attempts by outcome."},
		[]string{"outcome"},
	)
	// SolveDuration tracks wall-clock solve durations in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrptw_solve_duration_seconds", Help: "Solve duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300}},
		[]string{"outcome"},
	)
	// ValidationViolations counts validator-detected defects in returned assignments
	ValidationViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrptw_validation_violations_total", Help: "Validator-detected constraint violations by kind."},
		[]string{"kind"},
	)
)

// RegisterDefault registers collectors to the registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(ValidationViolations)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
