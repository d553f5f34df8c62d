package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/adshield/fraud-service/internal/client"
)

var startTime = time.Now()

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version,omitempty"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]CheckResult `json:"checks"`
}

// HealthHandler reports the health of the engine's dependencies. Redis is
// load-bearing for scoring, so a Redis failure marks the service unhealthy;
// Postgres only stores the activity log, so a Postgres failure is degraded.
type HealthHandler struct {
	env     string
	version string
	rdb     *client.RedisClient
	db      *sql.DB
}

func NewHealthHandler(env, version string, rdb *client.RedisClient, db *sql.DB) *HealthHandler {
	return &HealthHandler{env: env, version: version, rdb: rdb, db: db}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		Environment: h.env,
		Uptime:      time.Since(startTime).Round(time.Second).String(),
		Checks:      make(map[string]CheckResult),
	}

	if h.rdb != nil {
		start := time.Now()
		check := CheckResult{Status: HealthStatusHealthy}
		if err := h.rdb.HealthCheck(ctx); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Error = err.Error()
			resp.Status = HealthStatusUnhealthy
		}
		check.Latency = time.Since(start).String()
		resp.Checks["redis"] = check
	}

	if h.db != nil {
		start := time.Now()
		check := CheckResult{Status: HealthStatusHealthy}
		if err := h.db.PingContext(ctx); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Error = err.Error()
			if resp.Status == HealthStatusHealthy {
				resp.Status = HealthStatusDegraded
			}
		}
		check.Latency = time.Since(start).String()
		resp.Checks["postgres"] = check
	}

	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// LivenessHandler answers as long as the process is running.
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler gates traffic on the scoring path being usable.
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.rdb != nil {
		if err := h.rdb.HealthCheck(ctx); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
