// Package simulation generates deterministic synthetic rental tenants and runs
// the pipeline against the in-memory store.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/wonny/fleetcast/internal/contracts"
)

// Options 합성 테넌트 설정
type Options struct {
	TenantID   int64
	Branches   int
	Categories int
	Days       int
	Start      time.Time
	Seed       int64
	// TrendPerYear 1년 동안의 수요 증가율 (0.1 = +10%)
	TrendPerYear float64
	// Noise 일별 잡음 표준편차 (건수)
	Noise float64
}

// DefaultOptions 2 branches × 2 categories × 400 days
func DefaultOptions() Options {
	return Options{
		TenantID:     1,
		Branches:     2,
		Categories:   2,
		Days:         400,
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:         42,
		TrendPerYear: 0.08,
		Noise:        1.5,
	}
}

// weekdayFactor 요일 패턴 (금/토 주말 수요 증가)
var weekdayFactor = [7]float64{
	time.Sunday:    1.00,
	time.Monday:    0.90,
	time.Tuesday:   0.88,
	time.Wednesday: 0.95,
	time.Thursday:  1.20,
	time.Friday:    1.40,
	time.Saturday:  1.30,
}

var cities = []string{"Riyadh", "Jeddah", "Dammam", "Mecca", "Medina", "Khobar"}

// Generator implements every source the pipeline reads (scope, rentals,
// holidays, weather, events). 같은 Options 면 항상 같은 데이터.
type Generator struct {
	opts     Options
	scope    *contracts.Scope
	holidays []contracts.Holiday
	demand   map[contracts.CellKey]int
}

// NewGenerator precomputes the synthetic history
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Branches <= 0 || opts.Categories <= 0 || opts.Days <= 0 {
		return nil, fmt.Errorf("simulation needs positive branches, categories and days, got %d/%d/%d",
			opts.Branches, opts.Categories, opts.Days)
	}
	if opts.TenantID <= 0 {
		opts.TenantID = 1
	}
	opts.Start = contracts.DateOf(opts.Start)

	g := &Generator{opts: opts, demand: make(map[contracts.CellKey]int)}
	g.scope = &contracts.Scope{TenantID: opts.TenantID}
	for b := 0; b < opts.Branches; b++ {
		g.scope.Branches = append(g.scope.Branches, contracts.BranchLocation{
			BranchID:  int64(101 + b),
			Name:      fmt.Sprintf("Branch %d", b+1),
			City:      cities[b%len(cities)],
			Latitude:  24.7 + float64(b)*0.5,
			Longitude: 46.7 - float64(b)*0.5,
		})
	}
	for c := 0; c < opts.Categories; c++ {
		g.scope.Categories = append(g.scope.Categories, int64(11+c))
	}
	g.holidays = fixedHolidays(opts.Start, g.End())

	rng := rand.New(rand.NewSource(opts.Seed))
	for i := 0; i < opts.Days; i++ {
		d := opts.Start.AddDate(0, 0, i)
		for bi, b := range g.scope.Branches {
			for ci, c := range g.scope.Categories {
				key := contracts.SeriesKey{BranchID: b.BranchID, CategoryID: c}
				v := g.expected(i, d, bi, ci) + rng.NormFloat64()*opts.Noise
				g.demand[contracts.CellKey{Date: d, Series: key}] = int(math.Max(0, math.Round(v)))
			}
		}
	}
	return g, nil
}

// expected 잡음 없는 수요
func (g *Generator) expected(i int, d time.Time, branchIdx, catIdx int) float64 {
	base := 18 + 6*float64(branchIdx) + 4*float64(catIdx)
	v := base * weekdayFactor[d.Weekday()]
	v *= 1 + g.opts.TrendPerYear*float64(i)/365
	if g.isHoliday(d) {
		v *= 1.35
	}
	if g.precipitation(i, branchIdx) > 0 {
		v *= 0.8
	}
	if g.eventScore(i, branchIdx) >= 3 {
		v *= 1.25
	}
	return v
}

// Options returns the generator options
func (g *Generator) Options() Options {
	return g.opts
}

// Scope returns the synthetic tenant scope
func (g *Generator) Scope() *contracts.Scope {
	return g.scope
}

// Start returns the first simulated date
func (g *Generator) Start() time.Time {
	return g.opts.Start
}

// End returns the last simulated date
func (g *Generator) End() time.Time {
	return g.opts.Start.AddDate(0, 0, g.opts.Days-1)
}

// Demand returns the simulated rentals of one cell (범위 밖이면 false)
func (g *Generator) Demand(date time.Time, key contracts.SeriesKey) (int, bool) {
	v, ok := g.demand[contracts.CellKey{Date: contracts.DateOf(date), Series: key}]
	return v, ok
}

func (g *Generator) dayIndex(d time.Time) int {
	return contracts.DaysBetween(g.opts.Start, d) - 1
}

func (g *Generator) branchIndex(branchID int64) int {
	for i, b := range g.scope.Branches {
		if b.BranchID == branchID {
			return i
		}
	}
	return -1
}

// === ScopeProvider ===

func (g *Generator) ActiveScope(ctx context.Context, tenantID int64) (*contracts.Scope, error) {
	if tenantID != g.opts.TenantID {
		return &contracts.Scope{TenantID: tenantID}, nil
	}
	return g.scope, nil
}

func (g *Generator) ActiveTenants(ctx context.Context) ([]int64, error) {
	return []int64{g.opts.TenantID}, nil
}

// === RentalSource ===

// DailyDemand returns non-zero aggregates inside the simulated range
func (g *Generator) DailyDemand(ctx context.Context, scope *contracts.Scope, from, to time.Time) ([]contracts.DemandAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []contracts.DemandAggregate
	for d := contracts.DateOf(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, key := range scope.Series() {
			n, ok := g.Demand(d, key)
			if !ok || n == 0 {
				continue
			}
			out = append(out, contracts.DemandAggregate{Date: d, BranchID: key.BranchID, CategoryID: key.CategoryID, Rentals: n})
		}
	}
	return out, nil
}

// === HolidaySource ===

func (g *Generator) HolidaysBetween(ctx context.Context, from, to time.Time) ([]contracts.Holiday, error) {
	// 미래 날짜 (예측 기간) 도 조회 가능
	return fixedHolidays(from, to), nil
}

func (g *Generator) isHoliday(d time.Time) bool {
	for _, h := range g.holidays {
		if h.Date.Equal(d) {
			return true
		}
	}
	return false
}

// fixedHolidays 매년 같은 날짜의 국경일 (Founding Day, National Day)
func fixedHolidays(from, to time.Time) []contracts.Holiday {
	var out []contracts.Holiday
	for y := from.Year(); y <= to.Year(); y++ {
		for _, h := range []contracts.Holiday{
			{Date: time.Date(y, time.February, 22, 0, 0, 0, 0, time.UTC), Name: "Founding Day", Type: "national", IsPublic: true},
			{Date: time.Date(y, time.September, 23, 0, 0, 0, 0, time.UTC), Name: "National Day", Type: "national", IsPublic: true},
		} {
			if !h.Date.Before(contracts.DateOf(from)) && !h.Date.After(to) {
				out = append(out, h)
			}
		}
	}
	return out
}

// === WeatherSource ===

func (g *Generator) WeatherBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.WeatherObservation, error) {
	bi := g.branchIndex(loc.BranchID)
	if bi < 0 {
		return nil, nil
	}
	var out []contracts.WeatherObservation
	for d := contracts.DateOf(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		i := g.dayIndex(d)
		if i < 0 || i >= g.opts.Days {
			continue
		}
		season := math.Sin(2 * math.Pi * float64(d.YearDay()-110) / 365)
		mean := 31 + 11*season + float64(bi)
		precip := g.precipitation(i, bi)
		code := 0
		if precip > 0 {
			code = 61
		}
		out = append(out, contracts.WeatherObservation{
			Date:            d,
			BranchID:        loc.BranchID,
			TemperatureAvg:  contracts.Float(mean),
			TemperatureMax:  contracts.Float(mean + 7),
			TemperatureMin:  contracts.Float(mean - 7),
			PrecipitationMM: contracts.Float(precip),
			WindMaxKMH:      contracts.Float(15 + float64((i*13+bi*7)%20)),
			WeatherCode:     &code,
		})
	}
	return out, nil
}

func (g *Generator) precipitation(i, branchIdx int) float64 {
	if (i*7+branchIdx*3)%23 == 0 {
		return 6
	}
	return 0
}

// === EventSource ===

func (g *Generator) EventsBetween(ctx context.Context, loc contracts.BranchLocation, from, to time.Time) ([]contracts.EventSignal, error) {
	bi := g.branchIndex(loc.BranchID)
	if bi < 0 {
		return nil, nil
	}
	var out []contracts.EventSignal
	for d := contracts.DateOf(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		i := g.dayIndex(d)
		if i < 0 || i >= g.opts.Days {
			continue
		}
		out = append(out, contracts.EventSignal{Date: d, BranchID: loc.BranchID, City: loc.City, Score: g.eventScore(i, bi)})
	}
	return out, nil
}

func (g *Generator) eventScore(i, branchIdx int) float64 {
	switch (i + branchIdx*11) % 45 {
	case 10:
		return 3.5
	case 11:
		return 1.2
	default:
		return 0
	}
}

// Interface checks
var (
	_ contracts.ScopeProvider = (*Generator)(nil)
	_ contracts.RentalSource  = (*Generator)(nil)
	_ contracts.HolidaySource = (*Generator)(nil)
	_ contracts.WeatherSource = (*Generator)(nil)
	_ contracts.EventSource   = (*Generator)(nil)
)
