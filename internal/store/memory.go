package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vrptw/internal/model"
	"vrptw/internal/vrp"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	instances  map[string]model.Instance
	instOrder  []string
	solves     map[string]model.Solve
	solveOrder []string
	results    map[string]vrp.Result
	subs       map[string]model.Subscription
	subOrder   []string
	deliveries map[string]*memDelivery
	delOrder   []string
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

func NewMemory() *Memory {
	return &Memory{
		instances:  map[string]model.Instance{},
		solves:     map[string]model.Solve{},
		results:    map[string]vrp.Result{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) CreateInstance(_ context.Context, name string, p model.ProblemIn) (model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := model.Instance{
		ID:        uuid.NewString(),
		Name:      name,
		Customers: len(p.Customers),
		Vehicles:  len(p.Vehicles),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Problem:   p,
	}
	m.instances[inst.ID] = inst
	m.instOrder = append(m.instOrder, inst.ID)
	return inst, nil
}

func (m *Memory) GetInstance(_ context.Context, id string) (model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return model.Instance{}, ErrNotFound
	}
	return inst, nil
}

func (m *Memory) ListInstances(_ context.Context, cursor string, limit int) ([]model.Instance, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, next := pageIDs(m.instOrder, cursor, limit)
	out := make([]model.Instance, 0, len(ids))
	for _, id := range ids {
		inst := m.instances[id]
		inst.Problem = model.ProblemIn{} // listings stay light
		out = append(out, inst)
	}
	return out, next, nil
}

func (m *Memory) CreateSolve(_ context.Context, instanceID string) (model.Solve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[instanceID]; !ok {
		return model.Solve{}, ErrNotFound
	}
	s := model.Solve{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Status:     "running",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	m.solves[s.ID] = s
	m.solveOrder = append(m.solveOrder, s.ID)
	return s, nil
}

func (m *Memory) CompleteSolve(_ context.Context, id, status, detail string, durationMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solves[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.Detail = detail
	s.DurationMs = durationMs
	m.solves[id] = s
	return nil
}

func (m *Memory) GetSolve(_ context.Context, id string) (model.Solve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solves[id]
	if !ok {
		return model.Solve{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSolves(_ context.Context, instanceID, cursor string, limit int) ([]model.Solve, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := make([]string, 0, len(m.solveOrder))
	for _, id := range m.solveOrder {
		if instanceID == "" || m.solves[id].InstanceID == instanceID {
			filtered = append(filtered, id)
		}
	}
	ids, next := pageIDs(filtered, cursor, limit)
	out := make([]model.Solve, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.solves[id])
	}
	return out, next, nil
}

func (m *Memory) SaveResult(_ context.Context, solveID string, res vrp.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.solves[solveID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.results[solveID]; ok {
		return ErrResultExists
	}
	m.results[solveID] = res
	return nil
}

func (m *Memory) GetResult(_ context.Context, solveID string) (vrp.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[solveID]
	if !ok {
		return vrp.Result{}, ErrNotFound
	}
	return res, nil
}

func (m *Memory) CreateSubscription(_ context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{ID: uuid.NewString(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[sub.ID] = sub
	m.subOrder = append(m.subOrder, sub.ID)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(_ context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, id := range m.subOrder {
		sub := m.subs[id]
		for _, e := range sub.Events {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, next := pageIDs(m.subOrder, cursor, limit)
	out := make([]model.Subscription, 0, len(ids))
	for _, id := range ids {
		sub := m.subs[id]
		sub.Secret = ""
		out = append(out, sub)
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	for i, sid := range m.subOrder {
		if sid == id {
			m.subOrder = append(m.subOrder[:i], m.subOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) EnqueueWebhook(_ context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		URL:            url,
		Secret:         secret,
		Payload:        payload,
		Status:         "pending",
	}}
	m.deliveries[d.ID] = d
	m.delOrder = append(m.delOrder, d.ID)
	return d.ID, nil
}

func (m *Memory) FetchDueWebhookDeliveries(_ context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []WebhookDelivery
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if d.Status != "pending" || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(_ context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
	} else if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(_ context.Context, id string, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

// pageIDs applies cursor pagination over an insertion-ordered id list. The
// cursor is the last id of the previous page.
func pageIDs(order []string, cursor string, limit int) ([]string, string) {
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, id := range order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(order) {
		end = len(order)
	}
	page := append([]string(nil), order[start:end]...)
	next := ""
	if end < len(order) && len(page) > 0 {
		next = page[len(page)-1]
	}
	return page, next
}
