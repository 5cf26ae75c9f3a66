package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/dtroode/memberpass/internal/api/http/response"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// Health reports whether the registry and photo backends are reachable.
type Health struct {
	checkers map[string]model.HealthChecker
	logger   *logger.Logger
}

// NewHealth creates a Health handler over named dependencies.
func NewHealth(checkers map[string]model.HealthChecker, logger *logger.Logger) *Health {
	return &Health{checkers: checkers, logger: logger}
}

// Check pings every dependency and answers 503 if any is down.
func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var failed []string
	for name, checker := range h.checkers {
		if err := checker.PingContext(ctx); err != nil {
			h.logger.Warn("HealthHandler: dependency unavailable", "dependency", name, "error", err)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		slices.Sort(failed)
		response.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Failed: failed})
		return
	}
	response.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
