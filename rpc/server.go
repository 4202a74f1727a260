package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hgigs/native/marketplace"
	"hgigs/services/eventlog"
)

// Journal lists journaled events after a cursor.
type Journal interface {
	List(ctx context.Context, after uint64, limit int) ([]eventlog.Entry, error)
}

// Config wires the HTTP API to the engine and its supporting services.
type Config struct {
	ServiceName string
	Engine      *marketplace.Engine
	// Journal is optional; without it /v1/events answers 503.
	Journal Journal
	// Hub is optional; without it /v1/events/ws answers 503.
	Hub         *Hub
	Idempotency IdempotencyStore
	Auth        AuthConfig
	RateLimit   RateLimit
	// OriginPatterns restricts websocket origins; nil allows same-origin only.
	OriginPatterns []string
	Logger         *slog.Logger
}

// Server exposes the marketplace over HTTP.
type Server struct {
	engine         *marketplace.Engine
	journal        Journal
	hub            *Hub
	auth           *Authenticator
	limiter        *RateLimiter
	idempotency    *idempotency
	originPatterns []string
	serviceName    string
	logger         *slog.Logger
}

// NewServer validates cfg and builds the server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("rpc: engine required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "hgigsd"
	}
	store := cfg.Idempotency
	if store == nil {
		store = eventlog.NewMemoryIdempotency()
	}
	return &Server{
		engine:         cfg.Engine,
		journal:        cfg.Journal,
		hub:            cfg.Hub,
		auth:           NewAuthenticator(cfg.Auth, logger),
		limiter:        NewRateLimiter(cfg.RateLimit),
		idempotency:    newIdempotency(store, logger),
		originPatterns: cfg.OriginPatterns,
		serviceName:    serviceName,
		logger:         logger,
	}, nil
}

// Router builds the chi route tree without the otel wrapper.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(instrument(s.serviceName, s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Reads are public.
		v1.Group(func(pub chi.Router) {
			pub.Use(s.limiter.Middleware)
			pub.Get("/status", s.handleStatus)
			pub.Get("/custody", s.handleCustody)
			pub.Get("/gigs/{gigID}", s.handleGetGig)
			pub.Get("/orders/{orderID}", s.handleGetOrder)
			pub.Get("/accounts/{addr}/balance", s.handleBalance)
			pub.Get("/events", s.handleListEvents)
			pub.Get("/events/ws", s.handleEventsWS)
		})
		v1.Group(func(priv chi.Router) {
			priv.Use(s.auth.Middleware)
			priv.Use(s.limiter.Middleware)
			priv.Use(s.idempotency.Middleware)
			priv.Post("/gigs", s.handleCreateGig)
			priv.Post("/gigs/{gigID}/deactivate", s.handleDeactivateGig)
			priv.Post("/gigs/{gigID}/orders", s.handleOrderGig)
			priv.Post("/orders/{orderID}/pay", s.handlePayOrder)
			priv.Post("/orders/{orderID}/complete", s.handleCompleteOrder)
			priv.Post("/orders/{orderID}/release", s.handleReleasePayment)
			priv.Post("/admin/pause", s.handlePause)
			priv.Post("/admin/unpause", s.handleUnpause)
			priv.Post("/admin/owner", s.handleTransferOwner)
			priv.Post("/admin/fee", s.handleSetFee)
			priv.Post("/accounts/{addr}/deposit", s.handleDeposit)
			priv.Get("/exports/settlements", s.handleExportSettlements)
		})
	})
	return r
}

// Handler returns the full HTTP handler wrapped with OpenTelemetry.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router(), s.serviceName)
}
