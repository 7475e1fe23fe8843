package forecast

import (
	"context"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

var epoch = time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC) // Sunday

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

// weeklyDemand 요일 패턴 + 지점/카테고리 오프셋 + 결정적 잡음 (-2..2)
func weeklyDemand(i int, key contracts.SeriesKey, noise bool) int {
	d := day(i)
	v := 10 + 3*int(d.Weekday()) + int(key.BranchID) + int(key.CategoryID)
	if noise {
		v += (i*37+int(key.BranchID)*11+int(key.CategoryID)*5)%5 - 2
	}
	return v
}

func covariatesFor(d time.Time) Covariates {
	wd := d.Weekday()
	return Covariates{
		DayOfWeek: int(wd),
		Month:     int(d.Month()),
		IsWeekend: wd == time.Friday || wd == time.Saturday,
	}
}

func weeklyHistory(key contracts.SeriesKey, from, n int) SeriesHistory {
	h := SeriesHistory{Key: key, Start: day(from)}
	for i := from; i < from+n; i++ {
		h.Values = append(h.Values, float64(weeklyDemand(i, key, false)))
		h.Covariates = append(h.Covariates, covariatesFor(day(i)))
	}
	return h
}

var testPairs = []contracts.SeriesKey{
	{BranchID: 1, CategoryID: 1},
	{BranchID: 1, CategoryID: 2},
	{BranchID: 2, CategoryID: 1},
	{BranchID: 2, CategoryID: 2},
}

func testScope() *contracts.Scope {
	return &contracts.Scope{
		TenantID:   1,
		Branches:   []contracts.BranchLocation{{BranchID: 1}, {BranchID: 2}},
		Categories: []int64{1, 2},
	}
}

// weeklyRecords days 일치 feature store 행. 마지막 validationDays 일은 VALIDATION.
func weeklyRecords(days, validationDays int, noise bool) []contracts.DemandRecord {
	var out []contracts.DemandRecord
	for i := 0; i < days; i++ {
		d := day(i)
		split := contracts.SplitTrain
		if i >= days-validationDays {
			split = contracts.SplitValidation
		}
		for _, k := range testPairs {
			cov := covariatesFor(d)
			out = append(out, contracts.DemandRecord{
				TenantID:     1,
				DemandDate:   d,
				BranchID:     k.BranchID,
				CategoryID:   k.CategoryID,
				RentalsCount: weeklyDemand(i, k, noise),
				Calendar: contracts.CalendarAttrs{
					DayOfWeek:  cov.DayOfWeek,
					DayOfMonth: d.Day(),
					Month:      cov.Month,
					IsWeekend:  cov.IsWeekend,
				},
				Lags:  contracts.LagFeatures{},
				Split: split,
			})
		}
	}
	return out
}

func meanAbs(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(a))
}

type fakeScopes struct {
	scope *contracts.Scope
	err   error
}

func (f *fakeScopes) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	return f.scope, f.err
}

func (f *fakeScopes) ActiveTenants(ctx context.Context) ([]int64, error) {
	return []int64{1}, nil
}

// stubModel 테스트용 후보 (고정값 예측 / panic / 오류)
type stubModel struct {
	name     string
	kind     contracts.ModelKind
	value    float64
	fitErr   error
	panicFit bool
}

func (m *stubModel) Name() string              { return m.name }
func (m *stubModel) Kind() contracts.ModelKind { return m.kind }

func (m *stubModel) Fit(ctx context.Context, data *Dataset) error {
	if m.panicFit {
		var nilMap map[string]int
		nilMap["boom"]++
	}
	return m.fitErr
}

func (m *stubModel) Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error) {
	out := make([]float64, len(future))
	for i := range out {
		out[i] = m.value
	}
	return out, nil
}
