package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vrptw/internal/config"
	"vrptw/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.SolveTimeLimitSec = 5
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func uploadInstance(t *testing.T, s *Server, body string) model.Instance {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/instances", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.InstancesHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: got %d: %s", rr.Code, rr.Body.String())
	}
	var inst model.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatalf("decode instance: %v", err)
	}
	return inst
}

const smallInstance = `{"name":"small","problem":{"customers":[
	{"id":0,"x":35,"y":35,"demand":0,"ready_time":0,"due_date":1000,"service_time":0},
	{"id":1,"x":41,"y":49,"demand":10,"ready_time":0,"due_date":900,"service_time":10},
	{"id":2,"x":35,"y":17,"demand":7,"ready_time":0,"due_date":900,"service_time":10}],
	"vehicles":[{"id":0,"capacity":200}],"depot":0}}`

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestInstanceUploadAndGet(t *testing.T) {
	s := newTestServer(t)
	inst := uploadInstance(t, s, smallInstance)
	if inst.ID == "" || inst.Name != "small" || inst.Customers != 3 || inst.Vehicles != 1 {
		t.Fatalf("bad instance: %+v", inst)
	}

	rr := httptest.NewRecorder()
	s.InstanceByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/instances/"+inst.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("get: got %d", rr.Code)
	}
	var got model.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Problem.Customers) != 3 {
		t.Fatalf("problem body missing: %+v", got)
	}

	rr = httptest.NewRecorder()
	s.InstancesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/instances", nil))
	if rr.Code != 200 {
		t.Fatalf("list: got %d", rr.Code)
	}
	var list struct {
		Items []model.Instance `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("want 1 instance, got %d", len(list.Items))
	}
	if len(list.Items[0].Problem.Customers) != 0 {
		t.Fatal("list should not include problem bodies")
	}
}

func TestInstanceUploadSolomon(t *testing.T) {
	s := newTestServer(t)
	text := "C101\n\nVEHICLE\nNUMBER     CAPACITY\n  2          200\n\nCUSTOMER\nCUST NO.  XCOORD.   YCOORD.   DEMAND    READY TIME  DUE DATE   SERVICE TIME\n\n    0      35         35          0          0       1000          0\n    1      41         49         10          0        900         10\n"
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/instances?name=c101", strings.NewReader(text))
	req.Header.Set("Content-Type", "text/plain")
	s.InstancesHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("solomon upload: got %d: %s", rr.Code, rr.Body.String())
	}
	var inst model.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inst.Name != "c101" || inst.Customers != 2 || inst.Vehicles != 2 {
		t.Fatalf("bad instance: %+v", inst)
	}
}

func TestSolveHappyPath(t *testing.T) {
	s := newTestServer(t)
	inst := uploadInstance(t, s, smallInstance)

	rr := httptest.NewRecorder()
	body := fmt.Sprintf(`{"instanceId":%q}`, inst.ID)
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(body)))
	s.SolveHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("solve: got %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		SolveID string `json:"solveId"`
		Cost    int    `json:"cost"`
		Routes  []struct {
			Vehicle int   `json:"vehicle"`
			Route   []int `json:"route"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SolveID == "" || out.Cost <= 0 || len(out.Routes) != 1 {
		t.Fatalf("bad result: %+v", out)
	}
	if out.Routes[0].Route[0] != 0 || out.Routes[0].Route[len(out.Routes[0].Route)-1] != 0 {
		t.Fatalf("route not depot-anchored: %v", out.Routes[0].Route)
	}

	rr = httptest.NewRecorder()
	s.SolveByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves/"+out.SolveID, nil))
	if rr.Code != 200 {
		t.Fatalf("get solve: got %d", rr.Code)
	}
	var solve model.Solve
	if err := json.Unmarshal(rr.Body.Bytes(), &solve); err != nil {
		t.Fatalf("decode solve: %v", err)
	}
	if solve.Status != model.SolveCompleted {
		t.Fatalf("status: got %s", solve.Status)
	}

	rr = httptest.NewRecorder()
	s.SolveByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves/"+out.SolveID+"/result", nil))
	if rr.Code != 200 {
		t.Fatalf("get result: got %d", rr.Code)
	}
	var res struct {
		Cost int `json:"cost"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Cost != out.Cost {
		t.Fatalf("persisted cost %d != returned cost %d", res.Cost, out.Cost)
	}
}

func TestSolveInstanceNotFound(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"instanceId":"nope"}`))
	s.SolveHandler(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestSolveInvalidProblem(t *testing.T) {
	s := newTestServer(t)
	// ready time after due date
	inst := uploadInstance(t, s, `{"name":"bad","problem":{"customers":[
		{"id":0,"x":0,"y":0,"demand":0,"ready_time":0,"due_date":1000,"service_time":0},
		{"id":1,"x":1,"y":1,"demand":5,"ready_time":100,"due_date":50,"service_time":0}],
		"vehicles":[{"id":0,"capacity":50}],"depot":0}}`)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(fmt.Sprintf(`{"instanceId":%q}`, inst.ID)))
	s.SolveHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), model.SolveInvalid) {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestSolveUnformulatable(t *testing.T) {
	s := newTestServer(t)
	// demand exceeds every vehicle capacity
	inst := uploadInstance(t, s, `{"name":"heavy","problem":{"customers":[
		{"id":0,"x":0,"y":0,"demand":0,"ready_time":0,"due_date":1000,"service_time":0},
		{"id":1,"x":1,"y":1,"demand":500,"ready_time":0,"due_date":900,"service_time":0}],
		"vehicles":[{"id":0,"capacity":50}],"depot":0}}`)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(fmt.Sprintf(`{"instanceId":%q}`, inst.ID)))
	s.SolveHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), model.SolveUnformulatable) {
		t.Fatalf("body: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.SolvesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves?instanceId="+inst.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("list solves: got %d", rr.Code)
	}
	var list struct {
		Items []model.Solve `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Status != model.SolveUnformulatable {
		t.Fatalf("solves: %+v", list.Items)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(`{"url":"ftp://x","events":["solution.completed"],"secret":"s"}`))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad url accepted: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(`{"url":"https://example.com/hook","events":["solution.completed"],"secret":"s3cret"}`))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	if err := json.Unmarshal(rr.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.ID == "" || sub.Secret != "" {
		t.Fatalf("secret leaked or missing id: %+v", sub)
	}

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rr.Code != 200 {
		t.Fatalf("list: got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "s3cret") {
		t.Fatal("list leaked secret")
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d", rr.Code)
	}
}

func TestAdminDebugToken(t *testing.T) {
	s := newTestServer(t)
	s.Cfg.AdminToken = "hunter2"
	h := s.AdminDebugHandler()

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/debug", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/debug", nil)
	req.Header.Set("X-Admin-Token", "hunter2")
	h(rr, req)
	if rr.Code != 200 {
		t.Fatalf("with token: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "version") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}
