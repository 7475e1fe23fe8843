package forecast

import (
	"sort"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/s1_signals"
)

// Covariates 모델 입력용 외생 변수 (한 날짜)
type Covariates struct {
	DayOfWeek     int
	Month         int
	IsWeekend     bool
	IsHoliday     bool
	Temperature   *float64
	Precipitation *float64
	EventScore    *float64
}

// CovariatesOf extracts covariates from a stored record
func CovariatesOf(rec *contracts.DemandRecord) Covariates {
	c := CalendarCovariates(rec.Calendar)
	c.Temperature = rec.Weather.TemperatureAvg
	c.Precipitation = rec.Weather.PrecipitationMM
	c.EventScore = rec.Event.EventScore
	return c
}

// CalendarCovariates covariates known in advance (미래 날짜: 날씨/이벤트 없음)
func CalendarCovariates(cal contracts.CalendarAttrs) Covariates {
	return Covariates{
		DayOfWeek: cal.DayOfWeek,
		Month:     cal.Month,
		IsWeekend: cal.IsWeekend,
		IsHoliday: cal.IsHoliday(),
	}
}

// FutureCovariates returns calendar-only covariates for n days after last
func FutureCovariates(cal *s1_signals.CalendarJoiner, last time.Time, n int) []Covariates {
	out := make([]Covariates, n)
	for i := range out {
		out[i] = CalendarCovariates(cal.Attrs(last.AddDate(0, 0, i+1)))
	}
	return out
}

// CalendarOnly drops the covariates not known before the date (날씨/이벤트)
func (c Covariates) CalendarOnly() Covariates {
	c.Temperature, c.Precipitation, c.EventScore = nil, nil, nil
	return c
}

// SeriesHistory 한 (branch, category) 의 연속 일별 이력
// Values[i] 는 Start + i 일의 rentals_count
type SeriesHistory struct {
	Key        contracts.SeriesKey
	Start      time.Time
	Values     []float64
	Covariates []Covariates
	// Observed[i] false = 저장된 행이 없어 0 으로 채운 날짜. nil 이면 전부 관측.
	Observed []bool
}

// Len returns the number of days
func (s SeriesHistory) Len() int {
	return len(s.Values)
}

// End returns the last date, or the day before Start when empty
func (s SeriesHistory) End() time.Time {
	return s.Start.AddDate(0, 0, len(s.Values)-1)
}

// Index returns the position of date in Values (may be out of range)
func (s SeriesHistory) Index(date time.Time) int {
	return contracts.DaysBetween(s.Start, date) - 1
}

// Truncate keeps dates <= end
func (s SeriesHistory) Truncate(end time.Time) SeriesHistory {
	n := s.Index(end) + 1
	if n >= len(s.Values) {
		return s
	}
	if n < 0 {
		n = 0
	}
	s.Values = s.Values[:n]
	s.Covariates = s.Covariates[:n]
	if s.Observed != nil {
		s.Observed = s.Observed[:n]
	}
	return s
}

// IsObserved reports whether day i came from a stored record
func (s SeriesHistory) IsObserved(i int) bool {
	return s.Observed == nil || s.Observed[i]
}

// ObservedCount returns the number of stored days
func (s SeriesHistory) ObservedCount() int {
	if s.Observed == nil {
		return len(s.Values)
	}
	n := 0
	for _, ok := range s.Observed {
		if ok {
			n++
		}
	}
	return n
}

// Mean returns the mean observed demand, 0 when nothing is observed
func (s SeriesHistory) Mean() float64 {
	sum, n := 0.0, 0
	for i, v := range s.Values {
		if s.IsObserved(i) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// IsConstant reports whether every observed value is equal (빈 이력 포함)
func (s SeriesHistory) IsConstant() bool {
	first, seen := 0.0, false
	for i, v := range s.Values {
		if !s.IsObserved(i) {
			continue
		}
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

// SeriesFromRecords groups records per series into contiguous daily histories.
// 중간에 빠진 날짜는 그리드 규칙과 같이 수요 0 으로 채움.
func SeriesFromRecords(records []contracts.DemandRecord) []SeriesHistory {
	bySeries := make(map[contracts.SeriesKey][]*contracts.DemandRecord)
	for i := range records {
		k := records[i].Series()
		bySeries[k] = append(bySeries[k], &records[i])
	}

	keys := make([]contracts.SeriesKey, 0, len(bySeries))
	for k := range bySeries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]SeriesHistory, 0, len(keys))
	for _, k := range keys {
		recs := bySeries[k]
		sort.Slice(recs, func(i, j int) bool { return recs[i].DemandDate.Before(recs[j].DemandDate) })

		start := contracts.DateOf(recs[0].DemandDate)
		days := contracts.DaysBetween(start, recs[len(recs)-1].DemandDate)
		h := SeriesHistory{
			Key:        k,
			Start:      start,
			Values:     make([]float64, days),
			Covariates: make([]Covariates, days),
		}
		filled := make([]bool, days)
		for _, r := range recs {
			i := h.Index(r.DemandDate)
			h.Values[i] = float64(r.RentalsCount)
			h.Covariates[i] = CovariatesOf(r)
			filled[i] = true
		}
		for i, ok := range filled {
			if !ok {
				d := start.AddDate(0, 0, i)
				h.Covariates[i] = Covariates{DayOfWeek: int(d.Weekday()), Month: int(d.Month())}
			}
		}
		h.Observed = filled
		out = append(out, h)
	}
	return out
}

// Dataset 학습 입력 (series 별 이력, 읽기 전용으로 공유)
type Dataset struct {
	Series []SeriesHistory
}

// Rows returns the total number of observed days
func (d *Dataset) Rows() int {
	n := 0
	for _, s := range d.Series {
		n += s.ObservedCount()
	}
	return n
}
