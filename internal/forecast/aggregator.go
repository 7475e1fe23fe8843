package forecast

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fleetcast/internal/contracts"
)

// Residuals 후보 하나의 검증셋 실측/예측 누적
type Residuals struct {
	Actual    []float64
	Predicted []float64
}

// Add appends aligned actual/predicted values
func (r *Residuals) Add(actual, predicted []float64) {
	r.Actual = append(r.Actual, actual...)
	r.Predicted = append(r.Predicted, predicted...)
}

// AddObserved appends the predictions of target's stored days only.
// 0 으로 채운 날짜는 실측이 아니므로 평가에서 제외.
func (r *Residuals) AddObserved(target SeriesHistory, predicted []float64) {
	for i, v := range target.Values {
		if target.IsObserved(i) {
			r.Actual = append(r.Actual, v)
			r.Predicted = append(r.Predicted, predicted[i])
		}
	}
}

// ErrNonFinite 예측에 NaN/Inf 포함
var ErrNonFinite = errors.New("non-finite validation error")

// Score aggregates residuals into MAE, MAPE (실측 0 제외), sMAPE, RMSE
func Score(r Residuals) (*contracts.ModelMetrics, error) {
	n := len(r.Actual)
	if n == 0 || n != len(r.Predicted) {
		return nil, errors.New("no aligned validation rows")
	}

	errs := make([]float64, n)
	floats.SubTo(errs, r.Predicted, r.Actual)

	var absSum, sqSum, pctSum, symSum float64
	pctN := 0
	for i, e := range errs {
		a, p := r.Actual[i], r.Predicted[i]
		absSum += math.Abs(e)
		sqSum += e * e
		if a != 0 {
			pctSum += math.Abs(e / a)
			pctN++
		}
		if denom := math.Abs(a) + math.Abs(p); denom > 0 {
			symSum += 2 * math.Abs(e) / denom
		}
	}

	m := &contracts.ModelMetrics{
		MAE:   absSum / float64(n),
		SMAPE: 100 * symSum / float64(n),
		RMSE:  math.Sqrt(sqSum / float64(n)),
		Rows:  n,
	}
	if pctN > 0 {
		m.MAPE = 100 * pctSum / float64(pctN)
	}
	if n > 1 {
		m.ResidualStd = stat.StdDev(errs, nil)
	}

	if math.IsNaN(m.MAE) || math.IsInf(m.MAE, 0) {
		return nil, ErrNonFinite
	}
	return m, nil
}
