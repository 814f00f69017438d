package server

import (
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/postlens/postlens/internal/config"
	"github.com/postlens/postlens/internal/observability"
	"github.com/postlens/postlens/internal/ratelimit"
	"github.com/postlens/postlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes. Every posts route carries its own
// budget; the limiter keys on the route pattern, so /posts/1 and /posts/2
// share the "GET /posts/{id}" budget.
func (s *Server) registerRoutes(deps Deps) error {
	posts := handlers.NewPosts(deps.Posts)
	pol := deps.Policies

	routes := []struct {
		method  string
		pattern string
		policy  ratelimit.Policy
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/", pol.Root, handlers.Root},
		{http.MethodGet, "/posts", pol.List, posts.List},
		{http.MethodPost, "/posts", pol.Create, posts.Create},
		{http.MethodGet, "/posts/{id}", pol.Read, posts.Get},
		{http.MethodPut, "/posts/{id}", pol.Update, posts.Update},
		{http.MethodDelete, "/posts/{id}", pol.Delete, posts.Delete},
	}
	for _, rt := range routes {
		handler, err := s.throttled(rt.method, rt.pattern, rt.policy, rt.handler)
		if err != nil {
			return err
		}
		s.router.Method(rt.method, rt.pattern, handler)
	}

	// Standard health endpoints
	if deps.HealthEnabled && deps.Health != nil {
		s.router.Get("/health", deps.Health.HealthHandler)
		s.router.Get("/health/live", deps.Health.LivenessHandler)
		s.router.Get("/health/ready", deps.Health.ReadinessHandler)
		s.router.Get("/health/startup", deps.Health.StartupHandler)
	}

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	if deps.MetricsEnabled {
		s.router.Get("/metrics", MetricsHandler)
	}

	// Admin signal endpoint (optional, requires POSTLENS_ADMIN_TOKEN)
	s.registerAdminEndpoint()

	return nil
}

// throttled wraps a handler with the route's rate limit policy. Unlimited
// deployments (nil limiter) get the bare handler.
func (s *Server) throttled(method, pattern string, policy ratelimit.Policy, h http.HandlerFunc) (http.Handler, error) {
	if s.limiter == nil {
		return h, nil
	}
	mw, err := s.limiter.Limit(method, pattern, policy)
	if err != nil {
		return nil, err
	}
	return mw(h), nil
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	adminToken := os.Getenv(config.EnvPrefix + "_ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + config.EnvPrefix + "_ADMIN_TOKEN set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoint
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
