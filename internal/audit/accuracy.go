// Package audit measures published forecasts against the demand that was
// later observed in the feature store.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/pkg/logger"
)

// ErrNoForecasts 감사할 발행 예측 없음
var ErrNoForecasts = errors.New("no published forecasts")

// ActualsReader 실측 수요 조회 (피처 스토어)
type ActualsReader interface {
	LoadRange(ctx context.Context, tenantID int64, from, to time.Time) ([]contracts.DemandRecord, error)
}

// ForecastReader 발행 예측 조회
type ForecastReader interface {
	LatestRunDate(ctx context.Context, tenantID int64) (*time.Time, error)
	LoadRun(ctx context.Context, tenantID int64, runDate time.Time) ([]contracts.ForecastRecord, error)
}

// Analyzer compares a forecast run with realized demand
// ⭐ SSOT: 사후 예측 정확도 계산은 여기서만
type Analyzer struct {
	actuals   ActualsReader
	forecasts ForecastReader
	logger    *logger.Logger
}

// NewAnalyzer creates a new accuracy analyzer
func NewAnalyzer(actuals ActualsReader, forecasts ForecastReader, log *logger.Logger) *Analyzer {
	return &Analyzer{actuals: actuals, forecasts: forecasts, logger: log}
}

// HorizonAccuracy horizon_day 별 오차
type HorizonAccuracy struct {
	HorizonDay int     `json:"horizon_day"`
	Rows       int     `json:"rows"`
	MAE        float64 `json:"mae"`
	Bias       float64 `json:"bias"`
}

// SeriesAccuracy 지점×차종 별 오차
type SeriesAccuracy struct {
	BranchID   int64   `json:"branch_id"`
	CategoryID int64   `json:"category_id"`
	Rows       int     `json:"rows"`
	MAE        float64 `json:"mae"`
	Bias       float64 `json:"bias"`
}

// AccuracyReport 발행 run 하나의 사후 정확도
type AccuracyReport struct {
	TenantID  int64     `json:"tenant_id"`
	RunDate   time.Time `json:"run_date"`
	ModelName string    `json:"model_name"`

	Forecasts int `json:"forecasts"`
	Evaluated int `json:"evaluated"`
	// Pending 실측이 아직 적재되지 않은 예측
	Pending int `json:"pending"`

	Metrics *contracts.ModelMetrics `json:"metrics,omitempty"`
	// Bias 평균 (예측 - 실측), 양수면 과대 예측
	Bias float64 `json:"bias"`
	// IntervalCoverage 실측이 [lower, upper] 안에 든 비율 (구간 있는 행만)
	IntervalCoverage *float64 `json:"interval_coverage,omitempty"`

	ByHorizon []HorizonAccuracy `json:"by_horizon"`
	BySeries  []SeriesAccuracy  `json:"by_series"`
}

// Complete reports whether every forecast date has an actual
func (r *AccuracyReport) Complete() bool {
	return r.Pending == 0 && r.Evaluated > 0
}

// Analyze scores the run of runDate (zero → 최신 run)
func (a *Analyzer) Analyze(ctx context.Context, tenantID int64, runDate time.Time) (*AccuracyReport, error) {
	if runDate.IsZero() {
		latest, err := a.forecasts.LatestRunDate(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest run date: %w", err)
		}
		if latest == nil {
			return nil, ErrNoForecasts
		}
		runDate = *latest
	}
	runDate = contracts.DateOf(runDate)

	rows, err := a.forecasts.LoadRun(ctx, tenantID, runDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast run: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w for run %s", ErrNoForecasts, runDate.Format(contracts.DateLayout))
	}

	from, to := rows[0].ForecastDate, rows[0].ForecastDate
	for _, f := range rows {
		if f.ForecastDate.Before(from) {
			from = f.ForecastDate
		}
		if f.ForecastDate.After(to) {
			to = f.ForecastDate
		}
	}
	actual, err := a.actuals.LoadRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load actual demand: %w", err)
	}
	observed := make(map[contracts.CellKey]int, len(actual))
	for _, r := range actual {
		observed[r.Cell()] = r.RentalsCount
	}

	report := &AccuracyReport{
		TenantID:  tenantID,
		RunDate:   runDate,
		ModelName: rows[0].ModelName,
		Forecasts: len(rows),
	}

	var all forecast.Residuals
	byHorizon := make(map[int]*forecast.Residuals)
	bySeries := make(map[contracts.SeriesKey]*forecast.Residuals)
	var inside, withInterval int

	for _, f := range rows {
		n, ok := observed[contracts.CellKey{Date: contracts.DateOf(f.ForecastDate), Series: f.Series()}]
		if !ok {
			report.Pending++
			continue
		}
		y := float64(n)
		pair := []float64{y}
		pred := []float64{f.ForecastDemand}
		all.Add(pair, pred)
		residualsFor(byHorizon, f.HorizonDay).Add(pair, pred)
		residualsFor(bySeries, f.Series()).Add(pair, pred)

		if f.LowerBound != nil && f.UpperBound != nil {
			withInterval++
			if y >= *f.LowerBound && y <= *f.UpperBound {
				inside++
			}
		}
	}
	report.Evaluated = len(all.Actual)

	if report.Evaluated == 0 {
		a.logger.WithFields(map[string]interface{}{
			"tenant_id": tenantID,
			"run_date":  runDate.Format(contracts.DateLayout),
			"pending":   report.Pending,
		}).Warn("No realized demand yet for forecast run")
		return report, nil
	}

	report.Metrics, err = forecast.Score(all)
	if err != nil {
		return nil, fmt.Errorf("score forecast run: %w", err)
	}
	report.Bias = bias(all)
	if withInterval > 0 {
		c := float64(inside) / float64(withInterval)
		report.IntervalCoverage = &c
	}

	for h, r := range byHorizon {
		report.ByHorizon = append(report.ByHorizon, HorizonAccuracy{HorizonDay: h, Rows: len(r.Actual), MAE: mae(*r), Bias: bias(*r)})
	}
	sort.Slice(report.ByHorizon, func(i, j int) bool { return report.ByHorizon[i].HorizonDay < report.ByHorizon[j].HorizonDay })

	for k, r := range bySeries {
		report.BySeries = append(report.BySeries, SeriesAccuracy{
			BranchID: k.BranchID, CategoryID: k.CategoryID, Rows: len(r.Actual), MAE: mae(*r), Bias: bias(*r),
		})
	}
	sort.Slice(report.BySeries, func(i, j int) bool {
		a, b := report.BySeries[i], report.BySeries[j]
		return contracts.SeriesKey{BranchID: a.BranchID, CategoryID: a.CategoryID}.
			Less(contracts.SeriesKey{BranchID: b.BranchID, CategoryID: b.CategoryID})
	})

	a.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"run_date":  runDate.Format(contracts.DateLayout),
		"model":     report.ModelName,
		"evaluated": report.Evaluated,
		"pending":   report.Pending,
		"mae":       report.Metrics.MAE,
		"bias":      report.Bias,
	}).Info("Forecast accuracy audit completed")

	return report, nil
}

func residualsFor[K comparable](m map[K]*forecast.Residuals, k K) *forecast.Residuals {
	r, ok := m[k]
	if !ok {
		r = &forecast.Residuals{}
		m[k] = r
	}
	return r
}

func mae(r forecast.Residuals) float64 {
	var sum float64
	for i := range r.Actual {
		d := r.Predicted[i] - r.Actual[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(r.Actual))
}

func bias(r forecast.Residuals) float64 {
	errs := make([]float64, len(r.Actual))
	for i := range r.Actual {
		errs[i] = r.Predicted[i] - r.Actual[i]
	}
	return stat.Mean(errs, nil)
}
