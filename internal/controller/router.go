package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rafaelcosta/dunning/internal/infrastructure/config"
	"github.com/rafaelcosta/dunning/internal/infrastructure/observability"
	"github.com/rafaelcosta/dunning/internal/infrastructure/redis"
	customMW "github.com/rafaelcosta/dunning/internal/middleware"
	"github.com/rafaelcosta/dunning/internal/service"
)

type RouterDeps struct {
	MetaPool        *pgxpool.Pool
	SourcePool      *pgxpool.Pool
	RedisClient     *goredis.Client
	QueueService    *service.QueueService
	Generator       *service.GeneratorService
	Sender          *service.SendService
	SettingsService *service.SettingsService
	Producer        *redis.StreamProducer
	Metrics         *observability.Metrics
	ServerConfig    config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	if deps.ServerConfig.RateLimitPerMinute > 0 {
		r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMinute))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.MetaPool, deps.SourcePool, deps.RedisClient)
	queueH := NewQueueController(deps.QueueService, deps.Generator, deps.Sender, deps.Producer)
	settingsH := NewSettingsController(deps.SettingsService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Queue
		r.Get("/queue", queueH.List)
		r.Get("/queue/{id}", queueH.Get)
		r.Put("/queue/selection", queueH.Select)
		r.Delete("/queue", queueH.Delete)
		r.Post("/queue/clear", queueH.Clear)
		r.Post("/queue/generate", queueH.Generate)
		r.Post("/queue/preview", queueH.Preview)
		r.Post("/queue/send", queueH.Send)

		// Block list
		r.Get("/blocks", queueH.ListBlocks)
		r.Post("/blocks", queueH.CreateBlock)
		r.Delete("/blocks/{id}", queueH.DeleteBlock)

		// Duplicate log
		r.Get("/duplicates", queueH.ListDuplicates)

		// Settings
		r.Get("/config", settingsH.GetConfig)
		r.Put("/config", settingsH.PutConfig)
		r.Get("/mappings", settingsH.GetMappings)
		r.Put("/mappings", settingsH.PutMappings)
		r.Get("/queries", settingsH.ListQueries)
		r.Post("/queries", settingsH.SaveQuery)
		r.Delete("/queries/{id}", settingsH.DeleteQuery)
		r.Get("/events", settingsH.ListEvents)
	})

	return r
}
