package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthController reports liveness and readiness. The metadata store and
// Redis gate readiness; the accounts receivable source is reported but does
// not fail the probe, reads from it only happen during generation.
type HealthController struct {
	metaPool   *pgxpool.Pool
	sourcePool *pgxpool.Pool
	redis      *redis.Client
}

func NewHealthController(metaPool, sourcePool *pgxpool.Pool, redis *redis.Client) *HealthController {
	return &HealthController{metaPool: metaPool, sourcePool: sourcePool, redis: redis}
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.metaPool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "redis unavailable",
		})
		return
	}

	source := "ok"
	if h.sourcePool == nil {
		source = "unconfigured"
	} else if err := h.sourcePool.Ping(ctx); err != nil {
		source = "unavailable"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"source": source,
	})
}
