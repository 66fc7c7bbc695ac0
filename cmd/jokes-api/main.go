package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/config"
	"github.com/deppfellow/jokes-api/internal/database"
	"github.com/deppfellow/jokes-api/internal/handler"
	"github.com/deppfellow/jokes-api/internal/logger"
	"github.com/deppfellow/jokes-api/internal/repository"
	"github.com/deppfellow/jokes-api/internal/router"
	"github.com/deppfellow/jokes-api/internal/server"
	"github.com/deppfellow/jokes-api/internal/service"
)

const DefaultContextTimeout = 30

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	err = database.Migrate(migrateCtx, &log, srv.DB)
	cancelMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	repos := repository.NewRepositories(srv)
	services := service.NewServices(srv, repos)
	handlers := handler.NewHandlers(srv, services)

	r := router.NewRouter(srv, handlers)
	srv.SetupHTTPServer(r)

	if services.Job != nil {
		services.Job.InitHandlers(func(ctx context.Context) error {
			_, err := services.Joke.FetchAndStore(ctx)
			return err
		})
		if err := services.Job.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start job service")
		}
		warmUp(&log, repos, services)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

// warmUp queues one fetch when the store is empty so the first list
// request has something to serve.
func warmUp(log *zerolog.Logger, repos *repository.Repositories, services *service.Services) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	total, err := repos.Joke.Count(ctx)
	if err != nil || total > 0 {
		return
	}

	if info, err := services.Job.EnqueueFetch(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to queue warm-up fetch")
	} else {
		log.Info().Str("task_id", info.ID).Msg("queued warm-up fetch for empty store")
	}
}
