package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/fleetcast/internal/audit"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/logger"
)

// AccuracyAnalyzer scores a published run against realized demand (audit.Analyzer)
type AccuracyAnalyzer interface {
	Analyze(ctx context.Context, tenantID int64, runDate time.Time) (*audit.AccuracyReport, error)
}

// AccuracyHandler 사후 예측 정확도 엔드포인트
type AccuracyHandler struct {
	analyzer AccuracyAnalyzer
	logger   *logger.Logger
}

// NewAccuracyHandler creates a new accuracy handler
func NewAccuracyHandler(analyzer AccuracyAnalyzer, log *logger.Logger) *AccuracyHandler {
	return &AccuracyHandler{analyzer: analyzer, logger: log}
}

// GetAccuracy returns the accuracy report of a run (기본: 최신 run)
// GET /api/tenants/{tenant}/accuracy?run_date=YYYY-MM-DD
func (h *AccuracyHandler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
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
	}

	report, err := h.analyzer.Analyze(r.Context(), tenantID, runDate)
	if errors.Is(err, audit.ErrNoForecasts) {
		respondError(w, http.StatusNotFound, "No forecasts published")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to analyze forecast accuracy")
		respondError(w, http.StatusInternalServerError, "Failed to analyze forecast accuracy")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
