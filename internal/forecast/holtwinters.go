package forecast

import (
	"context"
	"errors"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// HoltWinters additive level/trend/season exponential smoothing
type HoltWinters struct {
	p pipelineconfig.HoltWintersParams
}

// NewHoltWinters creates the model with fixed smoothing parameters
func NewHoltWinters(p pipelineconfig.HoltWintersParams) *HoltWinters {
	if p.Season < 2 {
		p.Season = 7
	}
	return &HoltWinters{p: p}
}

func (m *HoltWinters) Name() string              { return ModelHoltWinters }
func (m *HoltWinters) Kind() contracts.ModelKind { return contracts.ModelKindLearned }

// Fit requires at least one series with two full seasons
func (m *HoltWinters) Fit(ctx context.Context, data *Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range data.Series {
		if s.Len() >= 2*m.p.Season {
			return nil
		}
	}
	return errors.New("holt_winters needs two full seasons of history")
}

// hwState 평활 종료 시점 상태
type hwState struct {
	level, trend float64
	season       []float64 // index = t mod m
	n            int
}

// smooth runs the additive recursions over y.
// 두 주기 미만이면 ok=false (호출측에서 직전 주기 반복으로 대체).
func (m *HoltWinters) smooth(y []float64) (hwState, bool) {
	p := m.p
	sl := p.Season
	if len(y) < 2*sl {
		return hwState{}, false
	}

	first, second := 0.0, 0.0
	for i := 0; i < sl; i++ {
		first += y[i]
		second += y[sl+i]
	}
	first /= float64(sl)
	second /= float64(sl)

	st := hwState{
		level:  first,
		trend:  (second - first) / float64(sl),
		season: make([]float64, sl),
		n:      len(y),
	}
	for i := 0; i < sl; i++ {
		st.season[i] = y[i] - first
	}

	for t := sl; t < len(y); t++ {
		idx := t % sl
		prevLevel := st.level
		st.level = p.Alpha*(y[t]-st.season[idx]) + (1-p.Alpha)*(st.level+st.trend)
		st.trend = p.Beta*(st.level-prevLevel) + (1-p.Beta)*st.trend
		st.season[idx] = p.Gamma*(y[t]-st.level) + (1-p.Gamma)*st.season[idx]
	}
	return st, true
}

// Forecast level + h·trend + season. 공변량은 사용하지 않음.
func (m *HoltWinters) Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error) {
	st, ok := m.smooth(history.Values)
	if !ok {
		naive := &SeasonalNaive{period: m.p.Season}
		return naive.Forecast(ctx, history, future)
	}

	sl := m.p.Season
	return recursive(ctx, history, future, func(_ []float64, t int, _ Covariates) float64 {
		h := float64(t - st.n + 1)
		return st.level + h*st.trend + st.season[t%sl]
	})
}
