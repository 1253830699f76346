package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"vrptw/internal/buildinfo"
	"vrptw/internal/metrics"
	"vrptw/internal/model"
	"vrptw/internal/solomon"
	"vrptw/internal/store"
	"vrptw/internal/vrp"
	"vrptw/internal/webhooks"
)

const defaultPageLimit = 50

func pageLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return defaultPageLimit
}

// InstancesHandler serves POST /v1/instances and GET /v1/instances.
// Uploads accept either a JSON problem body or a raw Solomon dataset
// as text/plain.
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var name string
		var pin model.ProblemIn
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "text/plain") {
			parsed, err := solomon.Parse(r.Body)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "bad_request", err.Error())
				return
			}
			pin = parsed
			name = r.URL.Query().Get("name")
		} else {
			var body struct {
				Name    string          `json:"name"`
				Problem model.ProblemIn `json:"problem"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
				return
			}
			name = body.Name
			pin = body.Problem
		}
		if name == "" {
			name = "instance"
		}
		if len(pin.Customers) == 0 || len(pin.Vehicles) == 0 {
			writeProblem(w, http.StatusBadRequest, "bad_request", "problem needs customers and vehicles")
			return
		}
		inst, err := s.Store.CreateInstance(r.Context(), name, pin)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, inst)
	case http.MethodGet:
		items, next, err := s.Store.ListInstances(r.Context(), r.URL.Query().Get("cursor"), pageLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

// InstanceByIDHandler serves GET /v1/instances/{id}.
func (s *Server) InstanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/instances/")
	inst, err := s.Store.GetInstance(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "not_found", "instance not found")
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// SolveHandler serves POST /v1/solve. It runs the whole pipeline
// synchronously: build the problem, formulate, solve, validate, and
// persist the extracted routes.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	inst, err := s.Store.GetInstance(r.Context(), req.InstanceID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "not_found", "instance not found")
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	solve, err := s.Store.CreateSolve(r.Context(), inst.ID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	start := time.Now()

	finish := func(status, detail string) {
		durMs := int(time.Since(start).Milliseconds())
		if err := s.Store.CompleteSolve(r.Context(), solve.ID, status, detail, durMs); err != nil {
			logrus.WithError(err).WithField("solve", solve.ID).Error("complete solve failed")
		}
		metrics.Solves.WithLabelValues(status).Inc()
		metrics.SolveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		s.Broker.Publish(solve.ID, SolveEvent{Type: EventDone, Status: status})
		if status != model.SolveCompleted {
			s.Pub.Emit(r.Context(), webhooks.EventSolveFailed, map[string]any{
				"solveId":    solve.ID,
				"instanceId": inst.ID,
				"status":     status,
				"detail":     detail,
			})
		}
	}

	p, err := buildProblem(inst.Problem)
	if err != nil {
		finish(model.SolveInvalid, err.Error())
		writeProblem(w, http.StatusBadRequest, model.SolveInvalid, err.Error())
		return
	}
	slack := req.HorizonSlack
	if slack <= 0 {
		slack = s.Cfg.HorizonSlack
	}
	f, err := vrp.NewFormulation(p, slack)
	if err != nil {
		finish(model.SolveUnformulatable, err.Error())
		writeProblem(w, http.StatusUnprocessableEntity, model.SolveUnformulatable, err.Error())
		return
	}

	budget := time.Duration(s.Cfg.SolveTimeLimitSec) * time.Second
	if req.TimeBudgetMs > 0 {
		budget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(r.Context(), budget)
	defer cancel()

	a, err := s.solveWithProgress(ctx, solve.ID, p, f)
	switch {
	case errors.Is(err, vrp.ErrInfeasible):
		finish(model.SolveInfeasible, err.Error())
		writeProblem(w, http.StatusUnprocessableEntity, model.SolveInfeasible, err.Error())
		return
	case errors.Is(err, vrp.ErrTimedOut):
		finish(model.SolveTimedOut, err.Error())
		writeProblem(w, http.StatusGatewayTimeout, model.SolveTimedOut, err.Error())
		return
	case err != nil:
		finish(model.SolveInvalid, err.Error())
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	report, verr := vrp.Validate(p, a)
	if verr != nil {
		kind := "structure"
		var cv vrp.CapacityViolation
		var tw vrp.TimeWindowViolation
		switch {
		case errors.As(verr, &cv):
			kind = "capacity"
		case errors.As(verr, &tw):
			kind = "time_window"
		}
		metrics.ValidationViolations.WithLabelValues(kind).Inc()
		finish(model.SolveValidationFailed, verr.Error())
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"title":  model.SolveValidationFailed,
			"status": http.StatusUnprocessableEntity,
			"detail": verr.Error(),
			"trace":  report.Trace,
		})
		return
	}

	res := vrp.BuildResult(a)
	if err := s.Store.SaveResult(r.Context(), solve.ID, res); err != nil && !errors.Is(err, store.ErrResultExists) {
		finish(model.SolveInvalid, err.Error())
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	finish(model.SolveCompleted, "")
	s.Pub.Emit(r.Context(), webhooks.EventSolutionCompleted, map[string]any{
		"solveId":    solve.ID,
		"instanceId": inst.ID,
		"cost":       res.Cost,
		"routes":     res.Routes,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"solveId": solve.ID,
		"routes":  res.Routes,
		"cost":    res.Cost,
	})
}

// solveWithProgress runs the engine with broker progress events when the
// configured engine supports reporting.
func (s *Server) solveWithProgress(ctx context.Context, solveID string, p *vrp.Problem, f *vrp.Formulation) (*vrp.Assignment, error) {
	eng := s.Engine
	if _, ok := eng.(*vrp.HeuristicEngine); ok {
		eng = &vrp.HeuristicEngine{Progress: func(pr vrp.Progress) {
			s.Broker.Publish(solveID, SolveEvent{
				Type:      EventProgress,
				Iteration: pr.Iteration,
				BestCost:  pr.BestCost,
				Assigned:  pr.Assigned,
			})
		}}
	}
	return eng.Solve(ctx, p, f)
}

func buildProblem(pin model.ProblemIn) (*vrp.Problem, error) {
	customers := make([]vrp.Customer, len(pin.Customers))
	for i, c := range pin.Customers {
		customers[i] = vrp.Customer{
			ID: c.ID, X: c.X, Y: c.Y,
			Demand:      c.Demand,
			ReadyTime:   c.ReadyTime,
			DueDate:     c.DueDate,
			ServiceTime: c.ServiceTime,
		}
	}
	vehicles := make([]vrp.Vehicle, len(pin.Vehicles))
	for i, v := range pin.Vehicles {
		vehicles[i] = vrp.Vehicle{ID: v.ID, Capacity: v.Capacity}
	}
	return vrp.NewProblem(customers, vehicles, pin.Depot)
}

// SolvesHandler serves GET /v1/solves, optionally filtered by instanceId.
func (s *Server) SolvesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	items, next, err := s.Store.ListSolves(r.Context(), r.URL.Query().Get("instanceId"), r.URL.Query().Get("cursor"), pageLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// SolveByIDHandler serves GET /v1/solves/{id}, /v1/solves/{id}/result,
// and the websocket event stream at /v1/solves/{id}/events/ws.
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/solves/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) >= 2 && parts[1] == "events" {
		s.solveEventsWS(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if len(parts) == 2 && parts[1] == "result" {
		res, err := s.Store.GetResult(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "not_found", "no result for solve")
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	solve, err := s.Store.GetSolve(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "not_found", "solve not found")
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, solve)
}

// SubscriptionsHandler serves POST and GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			writeProblem(w, http.StatusBadRequest, "bad_request", "url must be http(s)")
			return
		}
		if len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "bad_request", "at least one event type required")
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		sub.Secret = ""
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), r.URL.Query().Get("cursor"), pageLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		for i := range items {
			items[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

// SubscriptionByIDHandler serves DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "not_found", "subscription not found")
		return
	} else if err != nil {
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// AdminDebugHandler exposes build info behind the admin token.
func (s *Server) AdminDebugHandler() http.HandlerFunc {
	return s.requireAdmin(s.debugHandler)
}

func (s *Server) debugHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build":  buildinfo.Info(),
		"config": map[string]any{"timeLimitSec": s.Cfg.SolveTimeLimitSec, "horizonSlack": s.Cfg.HorizonSlack},
	})
}

// MetricsHandler serves the Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}
