package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rafaelcosta/dunning/internal/bootstrap"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	infraRedis "github.com/rafaelcosta/dunning/internal/infrastructure/redis"
	"github.com/rafaelcosta/dunning/internal/repository/postgres"
	"github.com/rafaelcosta/dunning/internal/rowsource"
	"github.com/rafaelcosta/dunning/internal/service"
	"github.com/rafaelcosta/dunning/internal/transport"
)

const (
	dispatchGroup = "dunning-workers"
	dispatchBatch = 10
	dispatchBlock = 5 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "dunning-worker", "dunning_worker")
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
	scheduler := service.NewSchedulerService(configRepo, generator, sender, app.Redis,
		eventRepo, app.Metrics, app.Logger, app.Config.Scheduler.LockTTL)
	janitor := service.NewJanitorService(eventRepo, dupRepo,
		app.Config.Scheduler.EventRetention, app.Config.Scheduler.DuplicateLogKeep, app.Logger)

	// --- Dispatch stream consumer ---
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.DispatchStream,
		dispatchGroup,
		app.Config.InstanceID,
		dispatchBatch,
		dispatchBlock,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
	}

	app.Logger.Info().
		Str("stream", infraRedis.DispatchStream).
		Str("group", dispatchGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Daily scheduler gate.
	g.Go(func() error {
		return scheduler.Run(gCtx, app.Config.Scheduler.TickInterval)
	})

	// 2. Retention sweeps.
	g.Go(func() error {
		return janitor.Run(gCtx, app.Config.Scheduler.JanitorInterval)
	})

	// 3. Manual dispatch requests from the API.
	g.Go(func() error {
		return runDispatchConsumer(gCtx, app.Logger, consumer, sender)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runDispatchConsumer(
	ctx context.Context,
	logger zerolog.Logger,
	consumer *infraRedis.StreamConsumer,
	sender *service.SendService,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read from dispatch stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				req, err := infraRedis.ParseDispatchRequest(msg)
				if err != nil {
					logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Invalid dispatch request")
					consumer.Ack(ctx, msg.ID)
					continue
				}

				result, err := handleDispatch(ctx, sender, req)
				if err != nil {
					logger.Error().Err(err).
						Str("request_id", req.RequestID).
						Msg("Dispatch failed")
				} else {
					logger.Info().
						Str("request_id", req.RequestID).
						Int("sent", result.Sent).
						Int("failed", result.Failed).
						Msg("Dispatch finished")
				}
				consumer.Ack(ctx, msg.ID)
			}
		}
	}
}

func handleDispatch(
	ctx context.Context,
	sender *service.SendService,
	req *infraRedis.DispatchRequest,
) (*service.DispatchResult, error) {
	mode := queue.SendMode(req.Mode)
	if mode != queue.SendModeManual && mode != queue.SendModeAutomatic {
		mode = queue.SendModeManual
	}

	if len(req.ItemIDs) > 0 {
		ids, err := parseIDs(req.ItemIDs)
		if err != nil {
			return nil, err
		}
		return sender.DispatchByIDs(ctx, mode, ids)
	}

	var typ *message.MessageType
	if req.Type != "" {
		t := message.MessageType(req.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown message type %q", req.Type)
		}
		typ = &t
	}
	return sender.DispatchAll(ctx, mode, typ)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
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
