package forecast

import (
	"context"
	"fmt"
)

// stepFunc predicts index t given values[:t] (실측 + 이전 예측)
type stepFunc func(values []float64, t int, cov Covariates) float64

// recursive runs step over future, feeding each prediction back into the history.
// 예측값은 0 이상으로 clip (NaN 은 그대로 두어 평가에서 실패 처리).
func recursive(ctx context.Context, history SeriesHistory, future []Covariates, step stepFunc) ([]float64, error) {
	n := history.Len()
	values := make([]float64, n, n+len(future))
	copy(values, history.Values)

	out := make([]float64, len(future))
	for i, cov := range future {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v := clip(step(values, n+i, cov))
		values = append(values, v)
		out[i] = v
	}
	return out, nil
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// PredictValidation predicts the dates of target recursively from train history.
// train 이 target 보다 먼저 끝나지 않으면 target 시작 전까지로 자름.
// 반환: target.Values 와 같은 길이
func PredictValidation(ctx context.Context, m Model, train, target SeriesHistory) ([]float64, error) {
	if target.Len() == 0 {
		return nil, nil
	}
	history := train.Truncate(target.Start.AddDate(0, 0, -1))
	if history.Len() == 0 {
		history = SeriesHistory{Key: target.Key, Start: target.Start}
	}

	// train 끝과 target 시작 사이 빈 날짜는 warm-up 으로 예측 후 버림
	gap := history.Index(target.Start) - history.Len()
	if gap < 0 {
		gap = 0
	}
	future := make([]Covariates, 0, gap+target.Len())
	for i := 0; i < gap; i++ {
		d := history.End().AddDate(0, 0, i+1)
		future = append(future, Covariates{DayOfWeek: int(d.Weekday()), Month: int(d.Month())})
	}
	// 실제 예측과 같게 검증 날짜도 달력 변수만 사용
	for _, c := range target.Covariates {
		future = append(future, c.CalendarOnly())
	}

	preds, err := m.Forecast(ctx, history, future)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(future) {
		return nil, fmt.Errorf("%s returned %d predictions for %d days", m.Name(), len(preds), len(future))
	}
	return preds[gap:], nil
}
