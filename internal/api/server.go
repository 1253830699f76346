package api

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"vrptw/internal/config"
	"vrptw/internal/store"
	"vrptw/internal/vrp"
	"vrptw/internal/webhooks"
)

type Server struct {
	Cfg     config.Config
	Store   store.Store
	Engine  vrp.Engine
	Broker  EventBroker
	Pub     *webhooks.Publisher
	limiter *rate.Limiter
}

// NewServer wires the store, event broker, and solving engine from config.
// An empty DatabaseURL selects the in-memory store; an empty RedisURL the
// in-memory broker.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.Migrate(context.Background()); err != nil {
			return nil, err
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{
		Cfg:     cfg,
		Store:   s,
		Engine:  vrp.NewHeuristicEngine(),
		Broker:  broker,
		Pub:     webhooks.NewPublisher(s),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}, nil
}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}
