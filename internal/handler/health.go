package handler

import (
	"net/http"
	"time"

	"github.com/absher-demo/portal-server-go/internal/database"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	redisclient "github.com/absher-demo/portal-server-go/internal/redis"
)

type HealthHandler struct {
	db      *database.DB
	redis   *redisclient.Client
	backend *gateway.Client
}

func NewHealthHandler(db *database.DB, redisClient *redisclient.Client, backend *gateway.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, backend: backend}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
		"backend":  "ok",
	}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "down"
		healthy = false
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "down"
		healthy = false
	}
	if !h.backend.Health(ctx) {
		checks["backend"] = "down"
		healthy = false
	}

	status := http.StatusOK
	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
