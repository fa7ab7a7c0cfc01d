package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaelcosta/dunning/internal/bootstrap"
	"github.com/rafaelcosta/dunning/internal/controller"
	infraRedis "github.com/rafaelcosta/dunning/internal/infrastructure/redis"
	"github.com/rafaelcosta/dunning/internal/repository/postgres"
	"github.com/rafaelcosta/dunning/internal/rowsource"
	"github.com/rafaelcosta/dunning/internal/service"
	"github.com/rafaelcosta/dunning/internal/transport"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "dunning-api", "dunning")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	itemRepo := postgres.NewItemRepository(app.MetaPool)
	blockRepo := postgres.NewBlockRepository(app.MetaPool)
	dupRepo := postgres.NewDuplicateLogRepository(app.MetaPool)
	configRepo := postgres.NewConfigRepository(app.MetaPool)
	mappingRepo := postgres.NewMappingRepository(app.MetaPool)
	queryRepo := postgres.NewSavedQueryRepository(app.MetaPool)
	eventRepo := postgres.NewEventLogRepository(app.MetaPool)
	source := rowsource.NewPostgresSource(app.SourcePool)

	// --- Services ---
	queueSvc := service.NewQueueService(itemRepo, blockRepo, dupRepo, eventRepo, app.Metrics, app.Logger)
	generator := service.NewGeneratorService(source, queryRepo, configRepo, mappingRepo,
		queueSvc, eventRepo, app.Metrics, app.Logger)
	sender := service.NewSendService(itemRepo, configRepo, buildTransport(app),
		eventRepo, app.Metrics, app.Logger)
	settings := service.NewSettingsService(configRepo, mappingRepo, queryRepo,
		eventRepo, app.Logger)

	// Manual sends go over the dispatch stream; the worker delivers them.
	producer := infraRedis.NewStreamProducer(app.Redis)

	router := controller.NewRouter(controller.RouterDeps{
		MetaPool:        app.MetaPool,
		SourcePool:      app.SourcePool,
		RedisClient:     app.Redis,
		QueueService:    queueSvc,
		Generator:       generator,
		Sender:          sender,
		SettingsService: settings,
		Producer:        producer,
		Metrics:         app.Metrics,
		ServerConfig:    app.Config.Server,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

func buildTransport(app *bootstrap.App) transport.Transport {
	client := transport.NewWAPIClient(transport.WAPIConfig{
		BaseURL:    app.Config.WAPI.BaseURL,
		InstanceID: app.Config.WAPI.InstanceID,
		Token:      app.Config.WAPI.Token,
		Timeout:    app.Config.WAPI.Timeout,
	}, app.Logger)
	if client.Configured() {
		return client
	}
	app.Logger.Warn().Msg("WhatsApp gateway not configured, using mock transport")
	return transport.NewMockTransport()
}
