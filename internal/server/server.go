// Package server holds the application container: configuration, loggers,
// the joke store, the optional Redis client and job service, and the HTTP
// server. It owns their startup and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/config"
	"github.com/deppfellow/jokes-api/internal/database"
	"github.com/deppfellow/jokes-api/internal/lib/job"
	loggerPkg "github.com/deppfellow/jokes-api/internal/logger"
)

// Server is not the HTTP server itself; it carries the shared resources
// every layer is built from.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService
	DB            *database.Database

	// Redis is nil unless redis.address is configured.
	Redis *redis.Client

	// Job is nil unless jobs.enabled is set. Its handlers are wired and it
	// is started after the services exist.
	Job *job.JobService

	httpServer *http.Server
}

// New opens the store and, when configured, Redis and the job service.
// A Redis ping failure is logged but does not stop startup.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	server := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
	}

	if cfg.Redis.Address != "" {
		server.Redis = newRedis(cfg, logger, loggerService)
	}

	if cfg.Jobs.Enabled {
		server.Job = job.NewJobService(logger, cfg)
	}

	return server, nil
}

func newRedis(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})

	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("redis unreachable at startup, /status will report it")
	}

	return redisClient
}

// SetupHTTPServer configures the listener around handler. Config timeouts
// are seconds.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Str("database", string(s.DB.Dialect)).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then stops the job service and closes
// Redis and the store. Every step runs even if an earlier one fails; the
// failures are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"http server", func() error {
			if s.httpServer == nil {
				return nil
			}
			return s.httpServer.Shutdown(ctx)
		}},
		{"job service", func() error {
			if s.Job != nil {
				s.Job.Stop()
			}
			return nil
		}},
		{"redis client", func() error {
			if s.Redis == nil {
				return nil
			}
			return s.Redis.Close()
		}},
		{"database", s.DB.Close},
	}

	var failures []error
	for _, step := range steps {
		if err := step.run(); err != nil {
			failures = append(failures, fmt.Errorf("shutdown %s: %w", step.name, err))
		}
	}
	return errors.Join(failures...)
}
