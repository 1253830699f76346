package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"vrptw/internal/api"
	"vrptw/internal/buildinfo"
	"vrptw/internal/config"
	"vrptw/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("init server")
	}

	mux := http.NewServeMux()

	// Instances
	mux.HandleFunc("/v1/instances", srv.InstancesHandler)
	mux.HandleFunc("/v1/instances/", srv.InstanceByIDHandler)

	// Solving
	mux.HandleFunc("/v1/solve", srv.SolveHandler)
	mux.HandleFunc("/v1/solves", srv.SolvesHandler)
	mux.HandleFunc("/v1/solves/", srv.SolveByIDHandler) // includes /result, /events/ws

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

	// Health and ops
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/v1/admin/debug", srv.AdminDebugHandler())
	mux.Handle("/metrics", srv.MetricsHandler())

	worker := srv.NewWebhookWorker()
	worker.Start()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.Addr,
		"version": buildinfo.Version,
	}).Info("API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Fatal("server error")
	}
}
