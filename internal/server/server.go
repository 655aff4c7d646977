package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/chat"
	"github.com/brokerline/broker-be/internal/config"
	"github.com/brokerline/broker-be/internal/http/handlers"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/middleware"
	"github.com/brokerline/broker-be/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, store),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// NewRouter builds the full route tree. Split out from New so tests can
// mount it on httptest servers.
func NewRouter(cfg config.Config, store storage.Store) http.Handler {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	engine := lifecycle.NewEngine(store, store)
	hub := chat.NewHub(store)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	health := handlers.NewHealthHandler(time.Now())
	health.Register(r)

	authHandler := handlers.NewAuthHandler(store, tokens)
	requestHandler := handlers.NewRequestHandler(engine)
	paymentHandler := handlers.NewPaymentHandler(store, store)
	messageHandler := handlers.NewMessageHandler(engine, store)
	chatHandler := handlers.NewChatHandler(hub, engine, tokens, cfg.CORSOrigins)

	r.Route("/api", func(api chi.Router) {
		authHandler.Register(api)
		api.Group(func(private chi.Router) {
			private.Use(middleware.RequireAuth(tokens))
			requestHandler.Register(private)
			paymentHandler.Register(private)
			messageHandler.Register(private)
		})
	})
	chatHandler.Register(r)

	return middleware.CORS(cfg.CORSOrigins, r)
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
