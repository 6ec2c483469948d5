// Package main is the entry point for the snipbox execution service.
//
// Snipbox takes code snippets submitted by chat users and runs them in
// short-lived, locked-down Docker containers: no network, a nobody user,
// hard CPU, memory, pid, and time limits, and bounded captured output.
// Requests pass a per-user rate limit and an admission controller before
// any container resources are allocated, and every container is torn
// down whatever the outcome.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/config"
	"github.com/snipbox/snipbox/httpserver"
	"github.com/snipbox/snipbox/logger"
	"github.com/snipbox/snipbox/orchestrator"
	"github.com/snipbox/snipbox/profile"
	"github.com/snipbox/snipbox/ratelimit"
	"github.com/snipbox/snipbox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Language profile registry (builtins plus YAML overrides)
			profile.NewFromConfig,

			// Rate limiting backed by redis
			ratelimit.NewClient,
			ratelimit.NewFromConfig,
			func(l *ratelimit.RedisLimiter) ratelimit.Limiter { return l },

			// Admission control ahead of the container runtime
			admission.NewFromConfig,

			// Container runtime and session lifecycle
			sandbox.NewDockerRuntimeFromConfig,
			func(r *sandbox.DockerRuntime) sandbox.Runtime { return r },
			sandbox.NewManagerFromConfig,
			func(m *sandbox.Manager) orchestrator.Runner { return m },

			// Orchestrator ties admission to execution
			orchestrator.New,
			func(o *orchestrator.Orchestrator) httpserver.Submitter { return o },

			// HTTP front
			httpserver.New,
		),

		fx.Invoke(registerLifecycle),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

// registerLifecycle starts the HTTP server and drains the service in
// reverse order on shutdown: stop intake, cancel in-flight sessions,
// then close the rate-limit store.
func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	log *zap.Logger,
	server *httpserver.Server,
	orch *orchestrator.Orchestrator,
	client *redis.Client,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					log.Error("http server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				log.Warn("http server shutdown", zap.Error(err))
			}
			if err := orch.Shutdown(ctx); err != nil {
				log.Warn("orchestrator shutdown", zap.Error(err))
			}
			return client.Close()
		},
	})
}
