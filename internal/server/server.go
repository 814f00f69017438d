package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/postlens/postlens/internal/config"
	apperrors "github.com/postlens/postlens/internal/errors"
	"github.com/postlens/postlens/internal/observability"
	"github.com/postlens/postlens/internal/ratelimit"
	"github.com/postlens/postlens/internal/server/handlers"
	servermw "github.com/postlens/postlens/internal/server/middleware"
)

// Deps collects the collaborators the server routes onto. Everything is
// constructed and injected at startup; the server holds no hidden singletons.
type Deps struct {
	// Posts backs the CRUD handlers.
	Posts handlers.PostStore

	// Limiter throttles routes; nil disables throttling entirely.
	Limiter *ratelimit.Limiter

	// Policies are the per-route budgets attached during route registration.
	Policies ratelimit.RoutePolicies

	// Health serves the probe endpoints when HealthEnabled.
	Health        *handlers.HealthManager
	HealthEnabled bool

	// MetricsEnabled exposes /metrics on the main port.
	MetricsEnabled bool
}

// Server represents the HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     config.ServerConfig
	limiter *ratelimit.Limiter
}

// New creates a new HTTP server instance. Policy registration happens here,
// before the listener accepts traffic, so an invalid or duplicate route
// policy fails startup instead of a request.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	r := chi.NewRouter()

	// RealIP must run before the limiter derives client keys.
	r.Use(middleware.RealIP)

	// Custom middleware in order: RequestID → Metrics → Recovery.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		cfg:     cfg,
		limiter: deps.Limiter,
	}

	// Ensure handlers use the centralized error responder.
	handlers.SetHTTPErrorResponder(HandleError)

	if err := s.registerRoutes(deps); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 120 * time.Second
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation.
func (s *Server) Handler() http.Handler {
	return s.router
}
