package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/postlens/postlens/internal/config"
	errwrap "github.com/postlens/postlens/internal/errors"
	"github.com/postlens/postlens/internal/observability"
	"github.com/postlens/postlens/internal/ratelimit"
	"github.com/postlens/postlens/internal/server"
	"github.com/postlens/postlens/internal/server/handlers"
	"github.com/postlens/postlens/internal/store"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server, close the posts store and
rate limit counter store, and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to load configuration", err)
		}

		// Initialize server logger
		observability.InitServerLogger(appName, cfg.Logging.Level)
		logger := observability.ServerLogger

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}

		if err := observability.InitMetrics(appName, metricsPort); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("service", appName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", metricsPort))

		ctx := cmd.Context()

		// Open and migrate the posts store. A missing database is a startup
		// failure, not something to limp along without.
		db, err := store.Open(ctx, cfg.Store)
		if err != nil {
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Failed to open posts store", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Failed to migrate posts store", err)
		}

		// Build the rate limit counter store. When the backend is redis, an
		// unreachable server fails startup: a limiter that cannot count is
		// not a limiter.
		var limiter *ratelimit.Limiter
		if cfg.RateLimit.Enabled {
			counter, err := buildCounterStore(ctx, cfg)
			if err != nil {
				_ = db.Close()
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Rate limit counter store unavailable", err)
			}
			limiter, err = ratelimit.New(counter, ratelimit.Options{
				Timeout:  cfg.RateLimit.Timeout,
				FailOpen: cfg.RateLimit.FailOpen,
				Prefix:   appName,
				Logger:   logger,
			})
			if err != nil {
				_ = counter.Close()
				_ = db.Close()
				ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to construct rate limiter", err)
			}
		} else {
			logger.Warn("Rate limiting disabled; all routes are unthrottled")
		}

		policies, err := routePolicies(cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid rate limit route policy", err)
		}

		// Health manager with checkers for every backend the server leans on.
		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("posts_store", handlers.HealthCheckerFunc(db.CheckHealth))
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		if limiter != nil {
			hm.RegisterChecker("ratelimit_store", handlers.HealthCheckerFunc(limiter.Ping))
		}

		srv, err := server.New(cfg.Server, server.Deps{
			Posts:          db,
			Limiter:        limiter,
			Policies:       policies,
			Health:         hm,
			HealthEnabled:  cfg.Health.Enabled,
			MetricsEnabled: cfg.Metrics.Enabled,
		})
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to construct server", err)
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close backing stores
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Closing backing stores...")
			if limiter != nil {
				if err := limiter.Close(); err != nil {
					logger.Warn("Failed to close rate limit counter store", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close posts store", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			logger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// Route policies and server wiring are fixed at startup; a
			// restart is required for those to change.
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// buildCounterStore constructs the configured rate limit counter backend.
func buildCounterStore(ctx context.Context, cfg *config.Config) (ratelimit.CounterStore, error) {
	switch cfg.RateLimit.Driver {
	case "", "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		return ratelimit.NewRedisCounter(ctx, client)
	case "memory":
		return ratelimit.NewMemoryCounter(), nil
	default:
		return nil, fmt.Errorf("unknown rate limit driver %q", cfg.RateLimit.Driver)
	}
}

// routePolicies merges configured overrides onto the default route budgets.
func routePolicies(cfg *config.Config) (ratelimit.RoutePolicies, error) {
	overrides := make(map[string]ratelimit.Policy, len(cfg.RateLimit.Routes))
	for route, pc := range cfg.RateLimit.Routes {
		overrides[route] = ratelimit.Policy{Requests: pc.Requests, Window: pc.Window}
	}
	return ratelimit.DefaultRoutePolicies().Override(overrides)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
