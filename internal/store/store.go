package store

import (
	"context"
	"errors"
	"time"

	"vrptw/internal/model"
	"vrptw/internal/vrp"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Instances
	CreateInstance(ctx context.Context, name string, p model.ProblemIn) (model.Instance, error)
	GetInstance(ctx context.Context, id string) (model.Instance, error)
	ListInstances(ctx context.Context, cursor string, limit int) ([]model.Instance, string, error)

	// Solves
	CreateSolve(ctx context.Context, instanceID string) (model.Solve, error)
	CompleteSolve(ctx context.Context, id, status, detail string, durationMs int) error
	GetSolve(ctx context.Context, id string) (model.Solve, error)
	ListSolves(ctx context.Context, instanceID, cursor string, limit int) ([]model.Solve, string, error)

	// Results are write-once per solve; a second save fails.
	SaveResult(ctx context.Context, solveID string, res vrp.Result) error
	GetResult(ctx context.Context, solveID string) (vrp.Result, error)

	// Webhook subscriptions and the delivery queue
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode, latencyMs int) error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrResultExists guards the write-once rule for persisted results.
	ErrResultExists = errors.New("result already persisted")
)

// WebhookDelivery is one queued outbound delivery.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
