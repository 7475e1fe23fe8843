package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/fleetcast/internal/api/handlers"
	"github.com/wonny/fleetcast/pkg/logger"
	"github.com/wonny/fleetcast/pkg/metrics"
)

// Handlers 라우터에 연결할 핸들러 묶음. nil 이면 해당 경로 미등록.
type Handlers struct {
	Health   *handlers.HealthHandler
	Jobs     *handlers.JobsHandler
	Forecast *handlers.ForecastHandler
	Accuracy *handlers.AccuracyHandler
}

// NewRouter creates and configures the ops HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	if h.Health != nil {
		r.HandleFunc("/healthz", h.Health.Check).Methods(http.MethodGet)
	}
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if h.Jobs != nil {
		r.HandleFunc("/jobs", h.Jobs.List).Methods(http.MethodGet)
		r.HandleFunc("/jobs/{name}/history", h.Jobs.History).Methods(http.MethodGet)
		r.HandleFunc("/jobs/{name}/run", h.Jobs.Run).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	if h.Forecast != nil {
		api.HandleFunc("/tenants/{tenant:[0-9]+}/forecasts", h.Forecast.GetForecasts).Methods(http.MethodGet)
		api.HandleFunc("/tenants/{tenant:[0-9]+}/runs", h.Forecast.GetRuns).Methods(http.MethodGet)
	}
	if h.Accuracy != nil {
		api.HandleFunc("/tenants/{tenant:[0-9]+}/accuracy", h.Accuracy.GetAccuracy).Methods(http.MethodGet)
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
