package s1_signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func TestCalendarJoiner_Attrs(t *testing.T) {
	j := NewCalendarJoiner([]int{int(time.Friday), int(time.Saturday)}, []contracts.Holiday{
		{Date: day(2025, 2, 22), Name: "Founding Day", IsPublic: true},
		{Date: day(2025, 3, 30), Name: "Eid al-Fitr", IsPublic: true, Religious: true},
		{Date: day(2025, 3, 30), Name: "Eid Holiday", IsPublic: false},
	})

	// 2025-02-22 is a Saturday
	sat := j.Attrs(day(2025, 2, 22))
	assert.Equal(t, 6, sat.DayOfWeek)
	assert.True(t, sat.IsWeekend)
	assert.True(t, sat.IsPublicHoliday)
	assert.False(t, sat.IsReligiousHoliday)
	assert.Equal(t, "Founding Day", sat.HolidayName)
	assert.Equal(t, 1, sat.Quarter)
	assert.Equal(t, 8, sat.WeekOfYear)

	eid := j.Attrs(day(2025, 3, 30))
	assert.True(t, eid.IsReligiousHoliday)
	assert.Equal(t, "Eid al-Fitr / Eid Holiday", eid.HolidayName)

	mon := j.Attrs(day(2025, 2, 24))
	assert.False(t, mon.IsWeekend)
	assert.False(t, mon.IsHoliday())
	assert.Empty(t, mon.HolidayName)
}

func TestBadWeatherScore(t *testing.T) {
	tests := []struct {
		name   string
		precip *float64
		wind   *float64
		code   *int
		want   *float64
	}{
		{"all missing", nil, nil, nil, nil},
		{"clear", contracts.Float(0), contracts.Float(10), intp(0), contracts.Float(0)},
		{"light rain", contracts.Float(2), nil, intp(51), contracts.Float(0.2)},
		{"heavy storm capped", contracts.Float(25), contracts.Float(60), intp(95), contracts.Float(1.0)},
		{"windy", nil, contracts.Float(35), nil, contracts.Float(0.2)},
		{"fog", nil, nil, intp(45), contracts.Float(0.1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BadWeatherScore(tt.precip, tt.wind, tt.code)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestWeatherIndex_Attrs(t *testing.T) {
	ix := make(WeatherIndex)
	ix.Add([]contracts.WeatherObservation{
		{Date: day(2025, 7, 1), BranchID: 1, TemperatureMax: contracts.Float(45), PrecipitationMM: contracts.Float(0)},
		{Date: day(2025, 7, 2), BranchID: 1, TemperatureAvg: contracts.Float(30)},
	})

	hot := ix.Attrs(day(2025, 7, 1), 1, 43)
	require.NotNil(t, hot.ExtremeHeat)
	assert.True(t, *hot.ExtremeHeat)
	assert.True(t, hot.HasAny())

	mild := ix.Attrs(day(2025, 7, 2), 1, 43)
	assert.Nil(t, mild.ExtremeHeat, "no t_max means unknown heat")

	missing := ix.Attrs(day(2025, 7, 3), 1, 43)
	assert.False(t, missing.HasAny())
	assert.Nil(t, missing.BadWeatherScore)

	otherBranch := ix.Attrs(day(2025, 7, 1), 2, 43)
	assert.False(t, otherBranch.HasAny())
}

func TestEventIndex_Attrs(t *testing.T) {
	ix := make(EventIndex)
	ix.Add([]contracts.EventSignal{
		{Date: day(2025, 1, 1), BranchID: 1, Score: 2},
		{Date: day(2025, 1, 1), BranchID: 1, Score: 4},
	})

	a := ix.Attrs(day(2025, 1, 1), 1, 3)
	require.NotNil(t, a.EventScore)
	assert.Equal(t, 4.0, *a.EventScore)
	assert.True(t, *a.HasMajorEvent)

	assert.False(t, ix.Attrs(day(2025, 1, 2), 1, 3).HasAny())
}

type stubHolidays struct {
	hs  []contracts.Holiday
	err error
}

func (s stubHolidays) HolidaysBetween(ctx context.Context, from, to time.Time) ([]contracts.Holiday, error) {
	return s.hs, s.err
}

type stubWeather struct {
	failBranch int64
}

func (s stubWeather) WeatherBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.WeatherObservation, error) {
	if loc.BranchID == s.failBranch {
		return nil, errors.New("upstream 502")
	}
	var out []contracts.WeatherObservation
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, contracts.WeatherObservation{Date: d, TemperatureAvg: contracts.Float(25)})
	}
	return out, nil
}

func TestJoiner_LoadWarnsAndContinues(t *testing.T) {
	scope := &contracts.Scope{
		TenantID:   1,
		Branches:   []contracts.BranchLocation{{BranchID: 1}, {BranchID: 2}},
		Categories: []int64{10, 20},
	}
	from, to := day(2025, 1, 1), day(2025, 1, 3)

	j := NewJoiner(stubHolidays{}, stubWeather{failBranch: 2}, nil, pipelineconfig.Default().Features, logger.Nop().Zerolog())
	s := j.Load(context.Background(), scope, from, to)

	require.Len(t, s.Warnings, 1)
	w := s.Warnings[0]
	assert.Equal(t, contracts.KindSignalUnavailable, w.Kind)
	assert.Equal(t, SignalWeather, w.Signal)
	assert.Equal(t, int64(2), w.BranchID)
	assert.Equal(t, 6, w.CellsAffected) // 3 days × 2 categories

	records := []contracts.DemandRecord{
		{DemandDate: from, BranchID: 1, CategoryID: 10},
		{DemandDate: from, BranchID: 2, CategoryID: 10},
	}
	st := s.ApplyAll(records)
	assert.Equal(t, 2, st.Calendar)
	assert.Equal(t, 1, st.Weather, "only the healthy branch gets weather")
	assert.Zero(t, st.Events)
	assert.Nil(t, records[1].Weather.TemperatureAvg)
}

func TestJoiner_HolidayFailureKeepsCalendar(t *testing.T) {
	scope := &contracts.Scope{TenantID: 1, Branches: []contracts.BranchLocation{{BranchID: 1}}, Categories: []int64{10}}

	j := NewJoiner(stubHolidays{err: errors.New("timeout")}, nil, nil, pipelineconfig.Default().Features, logger.Nop().Zerolog())
	s := j.Load(context.Background(), scope, day(2025, 1, 1), day(2025, 1, 2))

	require.Len(t, s.Warnings, 1)
	assert.Equal(t, SignalCalendar, s.Warnings[0].Signal)

	rec := contracts.DemandRecord{DemandDate: day(2025, 1, 3)} // Friday
	s.Apply(&rec)
	assert.True(t, rec.Calendar.IsWeekend)
}
