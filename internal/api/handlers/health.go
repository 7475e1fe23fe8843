package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/wonny/fleetcast/pkg/logger"
)

// Probe checks one dependency (postgres, redis, ...)
type Probe func(ctx context.Context) error

// HealthHandler serves /healthz
type HealthHandler struct {
	probes  map[string]Probe
	timeout time.Duration
	logger  *logger.Logger
}

// NewHealthHandler creates a health handler over named probes
func NewHealthHandler(probes map[string]Probe, log *logger.Logger) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second, logger: log}
}

// HealthResponse /healthz 응답
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Check runs every probe; 하나라도 실패하면 503
// GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.probes))}

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.probes[name](ctx)
		cancel()

		if err != nil {
			h.logger.WithError(err).WithField("probe", name).Warn("Health probe failed")
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
