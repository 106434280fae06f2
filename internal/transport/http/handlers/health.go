package http_handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/holdfast/auth-service/internal/logger"
	"github.com/holdfast/auth-service/internal/transport/http/response"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthHandler takes the readiness checks by dependency name ("postgres", "redis").
// Dependencies running on memory fallbacks are simply not registered.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.WithCtx(r.Context()).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		response.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "unavailable",
			"dependencies": failed,
		})
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
