package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalendarAttrs 달력 속성 (날짜 + 휴일 조회로 결정)
type CalendarAttrs struct {
	DayOfWeek          int    `json:"day_of_week"` // 0=Sunday
	DayOfMonth         int    `json:"day_of_month"`
	WeekOfYear         int    `json:"week_of_year"` // ISO week
	Month              int    `json:"month"`
	Quarter            int    `json:"quarter"`
	IsWeekend          bool   `json:"is_weekend"`
	IsPublicHoliday    bool   `json:"is_public_holiday"`
	IsReligiousHoliday bool   `json:"is_religious_holiday"`
	HolidayName        string `json:"holiday_name,omitempty"`
}

// IsHoliday reports either holiday flag
func (c CalendarAttrs) IsHoliday() bool {
	return c.IsPublicHoliday || c.IsReligiousHoliday
}

// WeatherAttrs 날씨 속성 (없으면 nil)
type WeatherAttrs struct {
	TemperatureAvg  *float64 `json:"temperature_avg"`
	TemperatureMax  *float64 `json:"temperature_max"`
	TemperatureMin  *float64 `json:"temperature_min"`
	PrecipitationMM *float64 `json:"precipitation_mm"`
	WindMaxKMH      *float64 `json:"wind_max_kmh"`
	WeatherCode     *int     `json:"weather_code"`
	BadWeatherScore *float64 `json:"bad_weather_score"`
	ExtremeHeat     *bool    `json:"extreme_heat"`
}

// HasAny reports whether any weather value is present
func (w WeatherAttrs) HasAny() bool {
	return w.TemperatureAvg != nil || w.TemperatureMax != nil || w.TemperatureMin != nil ||
		w.PrecipitationMM != nil || w.WindMaxKMH != nil || w.WeatherCode != nil
}

// EventAttrs 지역 이벤트 속성 (없으면 nil)
type EventAttrs struct {
	EventScore    *float64 `json:"event_score"`
	HasMajorEvent *bool    `json:"has_major_event"`
}

// HasAny reports whether an event value is present
func (e EventAttrs) HasAny() bool {
	return e.EventScore != nil
}

// Holiday 휴일 조회 결과
type Holiday struct {
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // national, religious, observance
	IsPublic  bool      `json:"is_public"`
	Religious bool      `json:"religious"`
}

// WeatherObservation 일별 날씨 관측 (지점 기준)
type WeatherObservation struct {
	Date            time.Time `json:"date"`
	BranchID        int64     `json:"branch_id"`
	TemperatureAvg  *float64  `json:"t_mean"`
	TemperatureMax  *float64  `json:"t_max"`
	TemperatureMin  *float64  `json:"t_min"`
	PrecipitationMM *float64  `json:"precipitation_sum"`
	WindMaxKMH      *float64  `json:"wind_max"`
	WeatherCode     *int      `json:"weather_code"`
}

// EventSignal 일별 이벤트 강도 (도시/지점 기준)
type EventSignal struct {
	Date     time.Time `json:"date"`
	BranchID int64     `json:"branch_id"`
	City     string    `json:"city"`
	Score    float64   `json:"score"`
}

// BranchLocation 지점 위치 (날씨/이벤트 조회 키)
type BranchLocation struct {
	BranchID  int64   `json:"branch_id"`
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Scope 테넌트의 활성 지점/카테고리 선택
type Scope struct {
	TenantID   int64            `json:"tenant_id"`
	Branches   []BranchLocation `json:"branches"`
	Categories []int64          `json:"categories"`
}

// IsEmpty reports whether the scope has no grid cells
func (s *Scope) IsEmpty() bool {
	return s == nil || len(s.Branches) == 0 || len(s.Categories) == 0
}

// Series returns every (branch, category) pair in branch-then-category order
func (s *Scope) Series() []SeriesKey {
	if s.IsEmpty() {
		return nil
	}
	out := make([]SeriesKey, 0, len(s.Branches)*len(s.Categories))
	for _, b := range s.Branches {
		for _, c := range s.Categories {
			out = append(out, SeriesKey{BranchID: b.BranchID, CategoryID: c})
		}
	}
	return out
}

// BranchIDs returns the branch ids in scope order
func (s *Scope) BranchIDs() []int64 {
	ids := make([]int64, 0, len(s.Branches))
	for _, b := range s.Branches {
		ids = append(ids, b.BranchID)
	}
	return ids
}

// DemandAggregate 원천 계약 집계 (일 × 지점 × 카테고리)
type DemandAggregate struct {
	Date         time.Time
	BranchID     int64
	CategoryID   int64
	Rentals      int
	AvgDailyRate decimal.NullDecimal
}
