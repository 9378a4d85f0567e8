// Package api implements the HTTP surface of the truck dispatch
// planner: plan runs, dataset browsing, webhook subscriptions, and
// live run event streams over SSE and WebSocket.
package api

import (
	"golang.org/x/time/rate"

	"truckplan/internal/auth"
	"truckplan/internal/config"
	"truckplan/internal/opt"
	"truckplan/internal/store"
	"truckplan/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Runner *opt.Runner
	Cfg    config.Config

	limiter *rate.Limiter
}

// NewServer wires the server from configuration: Postgres when a
// database URL is set (with dev migrations), Redis-backed events when
// a Redis URL is set, in-memory fallbacks otherwise.
func NewServer(cfg config.Config, runner *opt.Runner) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		_ = sp.MigrateDir("db/migrations")
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	rps := cfg.RateLimit.RPS
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Auth:    auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.Secret),
		Broker:  broker,
		Runner:  runner,
		Cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts)
}
