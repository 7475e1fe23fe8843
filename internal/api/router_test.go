package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/api/handlers"
	"github.com/wonny/fleetcast/internal/audit"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/memstore"
	"github.com/wonny/fleetcast/internal/scheduler"
	"github.com/wonny/fleetcast/pkg/logger"
)

type noopJob struct{ name string }

func (j noopJob) Name() string                  { return j.name }
func (j noopJob) Schedule() string              { return "0 0 2 * * *" }
func (j noopJob) Run(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T, probe handlers.Probe) (http.Handler, *memstore.Store, *scheduler.Scheduler) {
	t.Helper()
	log := logger.Nop()

	sched := scheduler.New(log, time.UTC, scheduler.WithRetry(0, 0))
	require.NoError(t, sched.AddJob(noopJob{name: "feature_store_build"}))
	t.Cleanup(sched.Stop)

	store := memstore.New()
	router := NewRouter(Handlers{
		Health:   handlers.NewHealthHandler(map[string]handlers.Probe{"postgres": probe}, log),
		Jobs:     handlers.NewJobsHandler(sched, log),
		Forecast: handlers.NewForecastHandler(store, store, log),
		Accuracy: handlers.NewAccuracyHandler(audit.NewAnalyzer(store, store, log), log),
	}, log)
	return router, store, sched
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _, _ := newTestRouter(t, func(ctx context.Context) error { return nil })

		rec := serve(router, http.MethodGet, "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)

		var body handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "ok", body.Checks["postgres"])
	})

	t.Run("degraded", func(t *testing.T) {
		router, _, _ := newTestRouter(t, func(ctx context.Context) error { return errors.New("connection refused") })

		rec := serve(router, http.MethodGet, "/healthz")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connection refused", body.Checks["postgres"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, func(ctx context.Context) error { return nil })

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestJobsEndpoints(t *testing.T) {
	router, _, sched := newTestRouter(t, func(ctx context.Context) error { return nil })
	require.NoError(t, sched.RunNow(context.Background(), "feature_store_build"))

	rec := serve(router, http.MethodGet, "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs []handlers.JobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, "feature_store_build", list.Jobs[0].Name)
	assert.Equal(t, 1, list.Jobs[0].Stats.SuccessCount)

	rec = serve(router, http.MethodGet, "/jobs/feature_store_build/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var history scheduler.JobHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Results, 1)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/jobs/nope/history").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/jobs/nope/run").Code)
	assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/jobs/feature_store_build/run").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodGet, "/jobs/feature_store_build/run").Code)
}

func TestForecastEndpoints(t *testing.T) {
	router, store, _ := newTestRouter(t, func(ctx context.Context) error { return nil })

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/tenants/1/forecasts").Code)

	runDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []contracts.ForecastRecord{
		{TenantID: 1, RunDate: runDate, HorizonDay: 1, BranchID: 101, CategoryID: 11, ForecastDate: runDate.AddDate(0, 0, 1), ForecastDemand: 12, ModelName: "ridge_regression"},
		{TenantID: 1, RunDate: runDate, HorizonDay: 2, BranchID: 101, CategoryID: 11, ForecastDate: runDate.AddDate(0, 0, 2), ForecastDemand: 14, ModelName: "ridge_regression"},
	}
	require.NoError(t, store.ReplaceRun(context.Background(), 1, runDate, rows))
	require.NoError(t, store.SaveTrainingResult(context.Background(), &contracts.TrainingResult{TenantID: 1, RunDate: runDate, Champion: "ridge_regression"}))

	rec := serve(router, http.MethodGet, "/api/tenants/1/forecasts")
	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-03-01", body.RunDate)
	require.Len(t, body.Forecasts, 2)
	assert.Equal(t, 14.0, body.Forecasts[1].ForecastDemand)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/tenants/1/forecasts?run_date=2025-03-01").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/tenants/1/forecasts?run_date=2025-02-01").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/tenants/1/forecasts?run_date=03-01").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/tenants/0/forecasts").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/tenants/abc/forecasts").Code)

	rec = serve(router, http.MethodGet, "/api/tenants/1/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []contracts.TrainingResult `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "ridge_regression", runs.Runs[0].Champion)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/tenants/1/runs?limit=0").Code)
}

func TestAccuracyEndpoint(t *testing.T) {
	router, store, _ := newTestRouter(t, func(ctx context.Context) error { return nil })
	ctx := context.Background()

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/tenants/1/accuracy").Code)

	runDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ReplaceRun(ctx, 1, runDate, []contracts.ForecastRecord{
		{TenantID: 1, RunDate: runDate, HorizonDay: 1, BranchID: 101, CategoryID: 11, ForecastDate: runDate.AddDate(0, 0, 1), ForecastDemand: 12, ModelName: "ridge_regression"},
		{TenantID: 1, RunDate: runDate, HorizonDay: 2, BranchID: 101, CategoryID: 11, ForecastDate: runDate.AddDate(0, 0, 2), ForecastDemand: 14, ModelName: "ridge_regression"},
	}))
	_, err := store.UpsertBatch(ctx, []contracts.DemandRecord{
		{TenantID: 1, DemandDate: runDate.AddDate(0, 0, 1), BranchID: 101, CategoryID: 11, RentalsCount: 10},
	})
	require.NoError(t, err)

	rec := serve(router, http.MethodGet, "/api/tenants/1/accuracy?run_date=2025-03-01")
	require.Equal(t, http.StatusOK, rec.Code)
	var report audit.AccuracyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Pending)
	require.NotNil(t, report.Metrics)
	assert.InDelta(t, 2.0, report.Metrics.MAE, 1e-9)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/tenants/1/accuracy?run_date=bad").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
