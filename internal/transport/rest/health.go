package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/proxy"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

// HealthHandler reports gateway readiness: the optional staff database and
// the commerce backend the proxy fronts.
type HealthHandler struct {
	db       *sql.DB
	cfg      *internal.Config
	upstream *upstream.Client
}

func NewHealthHandler(db *sql.DB, cfg *internal.Config, client *upstream.Client) *HealthHandler {
	return &HealthHandler{db: db, cfg: cfg, upstream: client}
}

// HandleLiveness → just says service is up
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReadiness → checks the staff DB (when configured) and the backend
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{}
	overall := HealthHealthy

	if h.db != nil {
		entry := h.runCheck(func() error { return h.db.PingContext(ctx) })
		components["postgres"] = entry
		if entry.Status == HealthUnhealthy {
			overall = HealthUnhealthy
		}
	}

	if h.upstream != nil {
		root := proxy.NormalizeRoot(proxy.ResolveUpstreamRoot(h.cfg, r))
		entry := h.runCheck(func() error { return h.upstream.Health(ctx, root) })
		components["backend"] = entry
		if entry.Status == HealthUnhealthy {
			overall = HealthUnhealthy
		}
	}

	resp := HealthResponse{
		Status:     overall,
		CheckedAt:  time.Now(),
		Components: components,
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) runCheck(check func() error) CheckEntry {
	start := time.Now()
	err := check()

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}
