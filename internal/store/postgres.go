package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vrptw/internal/model"
	"vrptw/internal/vrp"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the schema if missing. Dev helper; production deploys run
// migrations out of band.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS instances (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    problem JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS solves (
    id UUID PRIMARY KEY,
    instance_id UUID NOT NULL REFERENCES instances(id),
    status TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    duration_ms INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS results (
    solve_id UUID PRIMARY KEY REFERENCES solves(id),
    body JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS subscriptions (
    id UUID PRIMARY KEY,
    url TEXT NOT NULL,
    events TEXT NOT NULL,
    secret TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id UUID PRIMARY KEY,
    subscription_id UUID,
    event_type TEXT NOT NULL,
    url TEXT NOT NULL,
    secret TEXT NOT NULL DEFAULT '',
    payload BYTEA NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INT NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_error TEXT NOT NULL DEFAULT '',
    response_code INT NOT NULL DEFAULT 0,
    latency_ms INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (p *Postgres) CreateInstance(ctx context.Context, name string, in model.ProblemIn) (model.Instance, error) {
	id := uuid.New()
	body, err := json.Marshal(in)
	if err != nil {
		return model.Instance{}, err
	}
	var created time.Time
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO instances (id, name, problem) VALUES ($1,$2,$3) RETURNING created_at`,
		id, name, body).Scan(&created)
	if err != nil {
		return model.Instance{}, fmt.Errorf("create instance: %w", err)
	}
	return model.Instance{
		ID: id.String(), Name: name,
		Customers: len(in.Customers), Vehicles: len(in.Vehicles),
		CreatedAt: created.UTC().Format(time.RFC3339), Problem: in,
	}, nil
}

func (p *Postgres) GetInstance(ctx context.Context, id string) (model.Instance, error) {
	var inst model.Instance
	var body []byte
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, name, problem, created_at FROM instances WHERE id=$1`, id).
		Scan(&inst.ID, &inst.Name, &body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}
	if err := json.Unmarshal(body, &inst.Problem); err != nil {
		return model.Instance{}, err
	}
	inst.Customers = len(inst.Problem.Customers)
	inst.Vehicles = len(inst.Problem.Vehicles)
	inst.CreatedAt = created.UTC().Format(time.RFC3339)
	return inst, nil
}

func (p *Postgres) ListInstances(ctx context.Context, cursor string, limit int) ([]model.Instance, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, name, jsonb_array_length(problem->'customers'), jsonb_array_length(problem->'vehicles'), created_at
		 FROM instances WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Instance
	for rows.Next() {
		var inst model.Instance
		var created time.Time
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Customers, &inst.Vehicles, &created); err != nil {
			return nil, "", err
		}
		inst.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, inst)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateSolve(ctx context.Context, instanceID string) (model.Solve, error) {
	if _, err := p.GetInstance(ctx, instanceID); err != nil {
		return model.Solve{}, err
	}
	id := uuid.New()
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO solves (id, instance_id, status) VALUES ($1,$2,'running') RETURNING created_at`,
		id, instanceID).Scan(&created)
	if err != nil {
		return model.Solve{}, fmt.Errorf("create solve: %w", err)
	}
	return model.Solve{ID: id.String(), InstanceID: instanceID, Status: "running",
		CreatedAt: created.UTC().Format(time.RFC3339)}, nil
}

func (p *Postgres) CompleteSolve(ctx context.Context, id, status, detail string, durationMs int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE solves SET status=$2, detail=$3, duration_ms=$4 WHERE id=$1`,
		id, status, detail, durationMs)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSolve(ctx context.Context, id string) (model.Solve, error) {
	var s model.Solve
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, instance_id::text, status, detail, duration_ms, created_at FROM solves WHERE id=$1`, id).
		Scan(&s.ID, &s.InstanceID, &s.Status, &s.Detail, &s.DurationMs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Solve{}, ErrNotFound
	}
	if err != nil {
		return model.Solve{}, err
	}
	s.CreatedAt = created.UTC().Format(time.RFC3339)
	return s, nil
}

func (p *Postgres) ListSolves(ctx context.Context, instanceID, cursor string, limit int) ([]model.Solve, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, instance_id::text, status, detail, duration_ms, created_at FROM solves
		 WHERE ($1='' OR instance_id::text=$1) AND ($2='' OR id::text > $2) ORDER BY id LIMIT $3`,
		instanceID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Solve
	for rows.Next() {
		var s model.Solve
		var created time.Time
		if err := rows.Scan(&s.ID, &s.InstanceID, &s.Status, &s.Detail, &s.DurationMs, &created); err != nil {
			return nil, "", err
		}
		s.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, s)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) SaveResult(ctx context.Context, solveID string, res vrp.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}
	r, err := p.db.ExecContext(ctx,
		`INSERT INTO results (solve_id, body) VALUES ($1,$2) ON CONFLICT (solve_id) DO NOTHING`,
		solveID, body)
	if err != nil {
		return err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return ErrResultExists
	}
	return nil
}

func (p *Postgres) GetResult(ctx context.Context, solveID string) (vrp.Result, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM results WHERE solve_id=$1`, solveID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return vrp.Result{}, ErrNotFound
	}
	if err != nil {
		return vrp.Result{}, err
	}
	var res vrp.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return vrp.Result{}, err
	}
	return res, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, strings.Join(req.Events, ","), req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id.String(), URL: req.URL, Events: req.Events}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var events string
		if err := rows.Scan(&sub.ID, &sub.URL, &events, &sub.Secret); err != nil {
			return nil, err
		}
		sub.Events = splitEvents(events)
		for _, e := range sub.Events {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events FROM subscriptions WHERE ($1='' OR id::text > $1) ORDER BY id LIMIT $2`,
		cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var events string
		if err := rows.Scan(&sub.ID, &sub.URL, &events); err != nil {
			return nil, "", err
		}
		sub.Events = splitEvents(events)
		out = append(out, sub)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New()
	var subID any
	if subscriptionID != "" {
		subID = subscriptionID
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, subID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, secret, payload, status, attempts
		 FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	status := "pending"
	if success {
		status = "delivered"
	}
	next := time.Now()
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status=$2, attempts=attempts+1, next_attempt_at=$3, last_error=$4, response_code=$5, latency_ms=$6 WHERE id=$1`,
		id, status, next, lastError, responseCode, latencyMs)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode, latencyMs int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, lastError, responseCode, latencyMs)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func splitEvents(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
