package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rafaelcosta/dunning/internal/infrastructure/config"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
	infraRedis "github.com/rafaelcosta/dunning/internal/infrastructure/redis"
	"github.com/rafaelcosta/dunning/internal/repository/postgres"
)

// App holds the process-wide infrastructure shared by the API and the
// worker: configuration, logging, the metadata store, the read-only
// accounts receivable source and Redis.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	MetaPool   *pgxpool.Pool
	SourcePool *pgxpool.Pool
	Redis      *goredis.Client
	Metrics    *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				if err := observability.ShutdownTracer(tp); err != nil {
					logger.Warn().Err(err).Msg("Tracer shutdown failed")
				}
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	metaPool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to metadata database: %w", err)
	}
	logger.Info().Msg("Connected to metadata PostgreSQL")

	// The source database runs the operator's accounts receivable system.
	// Its being down only blocks generation, so startup tolerates it.
	sourcePool, err := postgres.NewPool(ctx, &cfg.Source)
	if err != nil {
		logger.Warn().Err(err).Msg("Accounts receivable source unreachable, generation disabled until it returns")
		sourcePool = nil
	} else {
		logger.Info().Msg("Connected to accounts receivable source")
	}

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		metaPool.Close()
		if sourcePool != nil {
			sourcePool.Close()
		}
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:     cfg,
		Logger:     logger,
		MetaPool:   metaPool,
		SourcePool: sourcePool,
		Redis:      redisClient,
		Metrics:    metrics,
	}, nil
}

func (a *App) Close() {
	a.Redis.Close()
	if a.SourcePool != nil {
		a.SourcePool.Close()
	}
	a.MetaPool.Close()
}
