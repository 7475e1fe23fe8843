package s2_features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/memstore"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/s1_signals"
	"github.com/wonny/fleetcast/pkg/logger"
)

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

// fakeRentals 주간 패턴 수요 (요일 + 지점 + 카테고리)
type fakeRentals struct {
	bump  map[time.Time]int
	err   error
	calls int
}

func (f *fakeRentals) DailyDemand(ctx context.Context, scope *contracts.Scope, from, to time.Time) ([]contracts.DemandAggregate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []contracts.DemandAggregate
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, s := range scope.Series() {
			n := 5 + 2*int(d.Weekday()) + int(s.BranchID/10) + int(s.CategoryID) + f.bump[d]
			out = append(out, contracts.DemandAggregate{Date: d, BranchID: s.BranchID, CategoryID: s.CategoryID, Rentals: n})
		}
	}
	return out, nil
}

type failingHolidays struct{}

func (failingHolidays) HolidaysBetween(ctx context.Context, from, to time.Time) ([]contracts.Holiday, error) {
	return nil, errors.New("holiday table unreachable")
}

type fixture struct {
	store   *memstore.Store
	scopes  *fakeScopes
	rentals *fakeRentals
	builder *Builder
}

func newFixture(t *testing.T, holidays contracts.HolidaySource) *fixture {
	t.Helper()
	cfg := pipelineconfig.Default()
	cfg.Validation.MinRows = 10
	cfg.Features.BatchDays = 10

	f := &fixture{
		store:   memstore.New(),
		scopes:  &fakeScopes{scope: testScope()},
		rentals: &fakeRentals{bump: map[time.Time]int{}},
	}
	joiner := s1_signals.NewJoiner(holidays, nil, nil, cfg.Features, zerolog.Nop())
	f.builder = NewBuilder(f.store, f.store, f.scopes, f.rentals, joiner, cfg, logger.Nop()).
		WithClock(func() time.Time { return day(60) })
	return f
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(59)})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, contracts.StageValidated, report.Stage)
	assert.Nil(t, report.Failure)
	assert.Equal(t, 240, report.RowsInserted)
	assert.Equal(t, 0, report.RowsUpdated)
	assert.Equal(t, 240, report.CalendarUpdated)
	assert.Equal(t, 0, report.WeatherUpdated)
	assert.Equal(t, 240, report.LagsUpdated)
	assert.Equal(t, contracts.SplitCounts{Train: 204, Validation: 36}, report.Splits)
	assert.Equal(t, 240, report.Coverage.ExpectedCells)
	assert.Equal(t, 240, report.Coverage.MaterializedCells)
	require.NotNil(t, report.Validation)
	assert.True(t, report.Validation.Passed, "failed: %v", report.Validation.FailedChecks())

	rows, err := f.store.LoadAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 240)
	for _, r := range rows {
		lag7 := r.Lags["rentals_lag_7d"]
		if r.DemandDate.Before(day(7)) {
			assert.Nil(t, lag7, "%v", r.Cell())
		} else {
			assert.NotNil(t, lag7, "%v", r.Cell())
		}
	}

	builds := f.store.Builds()
	require.Len(t, builds, 1)
	assert.Equal(t, report.RunID, builds[0].RunID)
}

func TestBuilder_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	req := BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(59)}

	_, err := f.builder.Build(ctx, req)
	require.NoError(t, err)
	first, _ := f.store.LoadAll(ctx, 1)

	report, err := f.builder.Build(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RowsInserted)
	assert.Equal(t, 240, report.RowsUpdated)
	assert.Equal(t, 0, report.LagsRefreshed)

	second, _ := f.store.LoadAll(ctx, 1)
	assert.Equal(t, first, second)
}

func TestBuilder_BackfillRefreshesTrailingLags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(30), EndDate: day(59)})
	require.NoError(t, err)

	report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(29)})
	require.NoError(t, err)
	assert.Greater(t, report.LagsRefreshed, 0)

	rows, _ := f.store.LoadRange(ctx, 1, day(29), day(30))
	require.Len(t, rows, 8)
	prev, next := rows[0], rows[4]
	require.Equal(t, prev.Series(), next.Series())
	require.NotNil(t, next.Lags["rentals_lag_1d"])
	assert.Equal(t, float64(prev.RentalsCount), *next.Lags["rentals_lag_1d"])

	// 이전 빌드의 split 라벨은 유지
	assert.Equal(t, contracts.SplitTrain, next.Split)
}

func TestBuilder_PartialRebuildKeepsOneCutoff(t *testing.T) {
	ctx := context.Background()

	// 전체 [0,59]: 검증 9일 → cutoff day(51)
	tests := []struct {
		name      string
		from, to  int
		splits    contracts.SplitCounts
		relabeled int
		cutoff    int
	}{
		{"lookback inside the table", 40, 59, contracts.SplitCounts{Train: 44, Validation: 36}, 0, 51},
		{"lookback starting inside validation", 55, 59, contracts.SplitCounts{Validation: 20}, 0, 51},
		// [0,69] → 검증 11일 → cutoff day(59), 저장된 51..58 은 TRAIN 으로
		{"tail extension moves the cutoff", 60, 69, contracts.SplitCounts{Validation: 40}, 32, 59},
		// [0,61] → 검증 10일 → cutoff day(52)
		{"lookback overlapping the tail", 45, 61, contracts.SplitCounts{Train: 28, Validation: 40}, 0, 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(59)})
			require.NoError(t, err)

			report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(tt.from), EndDate: day(tt.to)})
			require.NoError(t, err)
			assert.Equal(t, tt.splits, report.Splits)
			assert.Equal(t, tt.relabeled, report.RowsRelabeled)
			require.NotNil(t, report.Validation)
			assert.True(t, report.Validation.Passed, "failed: %v", report.Validation.FailedChecks())

			rows, err := f.store.LoadAll(ctx, 1)
			require.NoError(t, err)
			for _, r := range rows {
				want := contracts.SplitValidation
				if r.DemandDate.Before(day(tt.cutoff)) {
					want = contracts.SplitTrain
				}
				assert.Equal(t, want, r.Split, "%v", r.Cell())
			}
		})
	}
}

func TestBuilder_FutureChangesDoNotMovePastLags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(59)})
	require.NoError(t, err)
	before, _ := f.store.LoadRange(ctx, 1, day(0), day(39))

	for i := 40; i < 60; i++ {
		f.rentals.bump[day(i)] = 50
	}
	_, err = f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(40), EndDate: day(59)})
	require.NoError(t, err)

	after, _ := f.store.LoadRange(ctx, 1, day(0), day(39))
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, LagsEqual(before[i].Lags, after[i].Lags), "%v", before[i].Cell())
	}
}

func TestBuilder_FatalFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("start after end", func(t *testing.T) {
		f := newFixture(t, nil)
		report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(5), EndDate: day(1)})
		require.ErrorIs(t, err, contracts.ErrInvalidInput)
		assert.Equal(t, contracts.StageFailed, report.Stage)
		assert.Equal(t, contracts.StageInit, report.Failure.Stage)
		assert.Zero(t, f.rentals.calls)
	})

	t.Run("empty scope", func(t *testing.T) {
		f := newFixture(t, nil)
		f.scopes.scope = &contracts.Scope{TenantID: 1}

		report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(9)})
		require.ErrorIs(t, err, contracts.ErrEmptyScope)
		assert.Equal(t, contracts.KindEmptyScope, report.Failure.Kind)
		assert.Zero(t, f.rentals.calls)

		rows, _ := f.store.LoadAll(ctx, 1)
		assert.Empty(t, rows)
		assert.Len(t, f.store.Builds(), 1, "failed builds are logged")
	})

	t.Run("source outage", func(t *testing.T) {
		f := newFixture(t, nil)
		f.rentals.err = errors.New("login timeout")

		report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(9)})
		require.ErrorIs(t, err, contracts.ErrSourceUnavailable)
		assert.Equal(t, contracts.StageGrid, report.Failure.Stage)
		assert.Contains(t, err.Error(), "login timeout")

		rows, _ := f.store.LoadAll(ctx, 1)
		assert.Empty(t, rows)
	})

	t.Run("write failure keeps committed batches", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.FailUpsertsAfter(1)

		report, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(29)})
		require.ErrorIs(t, err, contracts.ErrPersistenceFailure)
		assert.Equal(t, contracts.StagePersisted, report.Failure.Stage)
		assert.Equal(t, 40, report.RowsInserted)

		rows, _ := f.store.LoadAll(ctx, 1)
		assert.Len(t, rows, 40)
	})
}

func TestBuilder_SignalOutageIsWarning(t *testing.T) {
	f := newFixture(t, failingHolidays{})

	report, err := f.builder.Build(context.Background(), BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(29)})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, contracts.KindSignalUnavailable, report.Warnings[0].Kind)
	assert.Equal(t, s1_signals.SignalCalendar, report.Warnings[0].Signal)
	assert.Equal(t, 120, report.Warnings[0].CellsAffected)
}

func TestBuilder_ShortRangeIsAllValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.builder.cfg.Split.ValidationDays = 30

	report, err := f.builder.Build(context.Background(), BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(19)})
	require.NoError(t, err)
	assert.Equal(t, contracts.SplitCounts{Validation: 80}, report.Splits)
	assert.False(t, report.Validation.Passed)
	assert.Contains(t, report.Validation.FailedChecks(), CheckSplitDistribution)
}

func TestBuilder_DefaultEndDateIsToday(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.builder.Build(context.Background(), BuildRequest{TenantID: 1, StartDate: day(50)})
	require.NoError(t, err)
	assert.Equal(t, day(60), report.EndDate)
	assert.Equal(t, 44, report.RowsInserted)
}

func TestBuilder_StatsValidateClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.builder.Build(ctx, BuildRequest{TenantID: 1, StartDate: day(0), EndDate: day(59)})
	require.NoError(t, err)

	st, err := f.builder.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 240, st.TotalRows)
	assert.Equal(t, 2, st.Branches)
	assert.Equal(t, 2, st.Categories)
	require.NotNil(t, st.FirstDate)
	assert.Equal(t, day(0), *st.FirstDate)
	assert.Equal(t, day(59), *st.LastDate)

	v, err := f.builder.Validate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, v.Passed)

	_, err = f.builder.Clear(ctx, 1, day(10), day(0))
	require.ErrorIs(t, err, contracts.ErrInvalidInput)

	n, err := f.builder.Clear(ctx, 1, day(0), day(9))
	require.NoError(t, err)
	assert.Equal(t, 40, n)
}
