package forecast

import (
	"fmt"
	"math"

	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// Design builds the engineered feature vector of learned models.
// 래그/이동평균은 values[:t] 에서만 계산 (인과성).
type Design struct {
	lags       []int
	windows    []int
	minPeriods int

	// 학습 데이터에서 추정한 결측 대체값
	tempFill float64
}

// NewDesign creates a design from the feature store lag configuration
func NewDesign(f pipelineconfig.Features) *Design {
	minPeriods := f.RollingMinPeriods
	if minPeriods < 1 {
		minPeriods = 1
	}
	return &Design{
		lags:       append([]int(nil), f.LagDays...),
		windows:    append([]int(nil), f.RollingWindows...),
		minPeriods: minPeriods,
	}
}

// Names returns feature names in vector order
func (d *Design) Names() []string {
	names := []string{"series_level"}
	for _, l := range d.lags {
		names = append(names, pipelineconfig.LagName(l))
	}
	for _, w := range d.windows {
		names = append(names, pipelineconfig.RollingName(w))
	}
	for dow := 1; dow <= 6; dow++ {
		names = append(names, fmt.Sprintf("dow_%d", dow))
	}
	return append(names,
		"is_weekend", "is_holiday", "month_sin", "month_cos",
		"temperature", "precipitation", "event_score",
	)
}

// Width returns the vector length
func (d *Design) Width() int {
	return 1 + len(d.lags) + len(d.windows) + 6 + 7
}

// FitImputation estimates fill values from the training histories
func (d *Design) FitImputation(data *Dataset) {
	sum, n := 0.0, 0
	for _, s := range data.Series {
		for _, c := range s.Covariates {
			if c.Temperature != nil && !math.IsNaN(*c.Temperature) {
				sum += *c.Temperature
				n++
			}
		}
	}
	if n > 0 {
		d.tempFill = sum / float64(n)
	}
}

// Row fills x with the features of index t. level = values[:t] 의 평균 (결측 래그 대체값).
func (d *Design) Row(x []float64, values []float64, t int, cov Covariates, level float64) {
	i := 0
	x[i] = level
	i++

	for _, l := range d.lags {
		if t-l >= 0 {
			x[i] = values[t-l]
		} else {
			x[i] = level
		}
		i++
	}

	for _, w := range d.windows {
		sum, n := 0.0, 0
		for k := t - w; k < t; k++ {
			if k >= 0 {
				sum += values[k]
				n++
			}
		}
		if n >= d.minPeriods {
			x[i] = sum / float64(n)
		} else {
			x[i] = level
		}
		i++
	}

	for dow := 1; dow <= 6; dow++ {
		x[i] = indicator(cov.DayOfWeek == dow)
		i++
	}

	x[i] = indicator(cov.IsWeekend)
	x[i+1] = indicator(cov.IsHoliday)
	angle := 2 * math.Pi * float64(cov.Month-1) / 12
	x[i+2] = math.Sin(angle)
	x[i+3] = math.Cos(angle)
	x[i+4] = valueOr(cov.Temperature, d.tempFill)
	x[i+5] = valueOr(cov.Precipitation, 0)
	x[i+6] = valueOr(cov.EventScore, 0)
}

// Matrix returns the training rows (row-major) and targets of every series.
// 각 series 의 첫 날은 이력이 없어 제외, 0 으로 채운 날짜는 target 으로 쓰지 않음.
func (d *Design) Matrix(data *Dataset) (rows []float64, y []float64) {
	width := d.Width()
	for _, s := range data.Series {
		// level 은 t 이전 관측값의 확장 평균
		sum, n := 0.0, 0
		for t := 0; t < s.Len(); t++ {
			if t > 0 && s.IsObserved(t) {
				level := 0.0
				if n > 0 {
					level = sum / float64(n)
				}
				x := make([]float64, width)
				d.Row(x, s.Values, t, s.Covariates[t], level)
				rows = append(rows, x...)
				y = append(y, s.Values[t])
			}
			if s.IsObserved(t) {
				sum += s.Values[t]
				n++
			}
		}
	}
	return rows, y
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func valueOr(v *float64, fill float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fill
	}
	return *v
}
