// Package metrics exposes Prometheus instrumentation for the demand pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ⭐ SSOT: 메트릭 정의는 여기서만

var (
	// Feature Store
	BuildRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_feature_build_runs_total",
			Help: "Feature store builds by outcome",
		},
		[]string{"outcome"}, // success, failed
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetcast_feature_build_duration_seconds",
			Help:    "Duration of feature store builds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_feature_rows_written_total",
			Help: "Demand fact rows written by operation",
		},
		[]string{"op"}, // inserted, updated
	)

	SignalWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_signal_unavailable_total",
			Help: "Signal lookups that could not be joined",
		},
		[]string{"signal"},
	)

	// Training / Publishing
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_training_runs_total",
			Help: "Forecast training runs by outcome",
		},
		[]string{"outcome"},
	)

	ModelValidationMAE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetcast_model_validation_mae",
			Help: "Validation MAE of the last evaluation per candidate",
		},
		[]string{"model"},
	)

	ModelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_model_failures_total",
			Help: "Candidate models that failed to train or evaluate",
		},
		[]string{"model"},
	)

	ForecastsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetcast_forecasts_published_total",
			Help: "Forecast rows published",
		},
	)

	PublishRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_publish_rejected_total",
			Help: "Forecast runs rejected by the quality gate",
		},
		[]string{"kind"},
	)

	// External signals
	WeatherRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_weather_requests_total",
			Help: "Weather lookups by result",
		},
		[]string{"result"}, // cache_hit, fetched, error, breaker_open
	)

	// Scheduler
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetcast_job_runs_total",
			Help: "Scheduled job executions",
		},
		[]string{"job", "status"},
	)
)

// ObserveBuild records one finished feature store build
func ObserveBuild(ok bool, d time.Duration, inserted, updated int) {
	BuildRuns.WithLabelValues(outcome(ok)).Inc()
	BuildDuration.Observe(d.Seconds())
	RowsWritten.WithLabelValues("inserted").Add(float64(inserted))
	RowsWritten.WithLabelValues("updated").Add(float64(updated))
}

// ObserveTraining records one finished training run
func ObserveTraining(ok bool) {
	TrainingRuns.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
