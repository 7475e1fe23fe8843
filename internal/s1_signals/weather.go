package s1_signals

import (
	"math"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// WeatherIndex branch → date → observation
type WeatherIndex map[int64]map[time.Time]contracts.WeatherObservation

// Add indexes observations (later entries win)
func (ix WeatherIndex) Add(obs []contracts.WeatherObservation) {
	for _, o := range obs {
		byDate, ok := ix[o.BranchID]
		if !ok {
			byDate = make(map[time.Time]contracts.WeatherObservation)
			ix[o.BranchID] = byDate
		}
		byDate[contracts.DateOf(o.Date)] = o
	}
}

// Attrs returns the weather attributes of (date, branch); all nil when missing
func (ix WeatherIndex) Attrs(date time.Time, branchID int64, extremeHeatC float64) contracts.WeatherAttrs {
	o, ok := ix[branchID][contracts.DateOf(date)]
	if !ok {
		return contracts.WeatherAttrs{}
	}

	attrs := contracts.WeatherAttrs{
		TemperatureAvg:  o.TemperatureAvg,
		TemperatureMax:  o.TemperatureMax,
		TemperatureMin:  o.TemperatureMin,
		PrecipitationMM: o.PrecipitationMM,
		WindMaxKMH:      o.WindMaxKMH,
		WeatherCode:     o.WeatherCode,
		BadWeatherScore: BadWeatherScore(o.PrecipitationMM, o.WindMaxKMH, o.WeatherCode),
	}
	if o.TemperatureMax != nil {
		hot := *o.TemperatureMax > extremeHeatC
		attrs.ExtremeHeat = &hot
	}
	return attrs
}

// BadWeatherScore 0..1 점수 (강수 0.4 + 풍속 0.3 + 날씨코드 0.3, 상한 1)
// 입력이 모두 nil 이면 nil
func BadWeatherScore(precipMM, windKMH *float64, code *int) *float64 {
	if precipMM == nil && windKMH == nil && code == nil {
		return nil
	}

	score := 0.0
	if precipMM != nil && *precipMM > 0 {
		switch p := *precipMM; {
		case p > 20:
			score += 0.4
		case p > 10:
			score += 0.3
		case p > 5:
			score += 0.2
		default:
			score += 0.1
		}
	}

	if windKMH != nil {
		switch w := *windKMH; {
		case w > 50:
			score += 0.3
		case w > 30:
			score += 0.2
		case w > 20:
			score += 0.1
		}
	}

	if code != nil {
		switch c := *code; {
		case c >= 95: // thunderstorm
			score += 0.3
		case c >= 61: // rain, snow
			score += 0.2
		case c >= 45: // fog, drizzle
			score += 0.1
		}
	}

	// 부동소수 누적 오차 제거 (0.1 단위)
	score = math.Round(math.Min(score, 1.0)*10) / 10
	return &score
}
