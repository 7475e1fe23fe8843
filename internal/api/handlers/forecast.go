package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/logger"
)

// ForecastReader reads published forecasts (forecast.Repository)
type ForecastReader interface {
	LatestRunDate(ctx context.Context, tenantID int64) (*time.Time, error)
	LoadRun(ctx context.Context, tenantID int64, runDate time.Time) ([]contracts.ForecastRecord, error)
}

// RunHistory reads training run audit rows (forecast.RunTracker)
type RunHistory interface {
	LatestResults(ctx context.Context, tenantID int64, limit int) ([]contracts.TrainingResult, error)
}

// ForecastHandler read-only forecast endpoints for the pricing layer
type ForecastHandler struct {
	forecasts ForecastReader
	runs      RunHistory
	logger    *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecasts ForecastReader, runs RunHistory, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{forecasts: forecasts, runs: runs, logger: log}
}

// ForecastResponse one published run
type ForecastResponse struct {
	TenantID  int64                      `json:"tenant_id"`
	RunDate   string                     `json:"run_date"`
	Forecasts []contracts.ForecastRecord `json:"forecasts"`
}

// GetForecasts returns a run's forecasts (기본: 최신 run)
// GET /api/tenants/{tenant}/forecasts?run_date=YYYY-MM-DD
func (h *ForecastHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := tenantParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid tenant id")
		return
	}

	var runDate time.Time
	if s := r.URL.Query().Get("run_date"); s != "" {
		d, err := time.Parse(contracts.DateLayout, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid run_date format (use YYYY-MM-DD)")
			return
		}
		runDate = d
	} else {
		latest, err := h.forecasts.LatestRunDate(ctx, tenantID)
		if err != nil {
			h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to get latest run date")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve forecasts")
			return
		}
		if latest == nil {
			respondError(w, http.StatusNotFound, "No forecasts published")
			return
		}
		runDate = *latest
	}

	rows, err := h.forecasts.LoadRun(ctx, tenantID, runDate)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to load forecast run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve forecasts")
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "No forecasts for run date")
		return
	}

	respondJSON(w, http.StatusOK, ForecastResponse{
		TenantID:  tenantID,
		RunDate:   runDate.Format(contracts.DateLayout),
		Forecasts: rows,
	})
}

// GetRuns returns recent training runs
// GET /api/tenants/{tenant}/runs?limit=10
func (h *ForecastHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid tenant id")
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	results, err := h.runs.LatestResults(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to get training runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve training runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tenant_id": tenantID, "runs": results})
}
