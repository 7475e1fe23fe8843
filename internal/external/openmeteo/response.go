package openmeteo

import (
	"fmt"

	"github.com/wonny/fleetcast/internal/contracts"
)

// DailyResponse Open-Meteo daily 응답 (값은 null 가능)
type DailyResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Daily     struct {
		Time             []string   `json:"time"`
		TemperatureMean  []*float64 `json:"temperature_2m_mean"`
		TemperatureMax   []*float64 `json:"temperature_2m_max"`
		TemperatureMin   []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
		WeatherCode      []*float64 `json:"weather_code"`
	} `json:"daily"`
}

// Observations converts the column-oriented payload into one observation per day
func (r DailyResponse) Observations() ([]contracts.WeatherObservation, error) {
	d := r.Daily
	out := make([]contracts.WeatherObservation, 0, len(d.Time))
	for i, ts := range d.Time {
		date, err := contracts.ParseDate(ts)
		if err != nil {
			return nil, fmt.Errorf("parse daily.time[%d]: %w", i, err)
		}

		obs := contracts.WeatherObservation{
			Date:            date,
			TemperatureAvg:  at(d.TemperatureMean, i),
			TemperatureMax:  at(d.TemperatureMax, i),
			TemperatureMin:  at(d.TemperatureMin, i),
			PrecipitationMM: at(d.PrecipitationSum, i),
			WindMaxKMH:      at(d.WindSpeedMax, i),
		}
		if code := at(d.WeatherCode, i); code != nil {
			c := int(*code)
			obs.WeatherCode = &c
		}
		out = append(out, obs)
	}
	return out, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	v := *values[i]
	return &v
}
