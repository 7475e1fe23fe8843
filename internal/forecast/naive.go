package forecast

import (
	"context"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// SeasonalNaive repeats the value one period earlier (baseline)
type SeasonalNaive struct {
	period int
}

// NewSeasonalNaive creates the baseline model
func NewSeasonalNaive(p pipelineconfig.SeasonalNaiveParams) *SeasonalNaive {
	period := p.Period
	if period < 1 {
		period = 7
	}
	return &SeasonalNaive{period: period}
}

func (m *SeasonalNaive) Name() string              { return ModelSeasonalNaive }
func (m *SeasonalNaive) Kind() contracts.ModelKind { return contracts.ModelKindBaseline }

// Fit has nothing to estimate
func (m *SeasonalNaive) Fit(ctx context.Context, data *Dataset) error {
	return ctx.Err()
}

// Forecast y[t] = y[t-period], 이력이 한 주기보다 짧으면 직전 값
func (m *SeasonalNaive) Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error) {
	return recursive(ctx, history, future, func(values []float64, t int, _ Covariates) float64 {
		switch {
		case t-m.period >= 0:
			return values[t-m.period]
		case t > 0:
			return values[t-1]
		default:
			return 0
		}
	})
}
