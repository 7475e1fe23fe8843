package s2_features

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

var d0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return d0.AddDate(0, 0, n)
}

func testScope() *contracts.Scope {
	return &contracts.Scope{
		TenantID:   1,
		Branches:   []contracts.BranchLocation{{BranchID: 10}, {BranchID: 20}},
		Categories: []int64{3, 4},
	}
}

// === Grid ===

func TestBuildGrid_FillsMissingCells(t *testing.T) {
	aggs := []contracts.DemandAggregate{
		{Date: day(0), BranchID: 10, CategoryID: 3, Rentals: 4, AvgDailyRate: decimal.NewNullDecimal(decimal.RequireFromString("120.50"))},
		{Date: day(0), BranchID: 10, CategoryID: 3, Rentals: 1},
		{Date: day(1), BranchID: 99, CategoryID: 3, Rentals: 7}, // scope 밖
		{Date: day(5), BranchID: 10, CategoryID: 3, Rentals: 7}, // 범위 밖
	}

	grid := BuildGrid(testScope(), day(0), day(1), aggs)
	require.Len(t, grid, 8)

	first := grid[0]
	assert.Equal(t, contracts.CellKey{Date: day(0), Series: contracts.SeriesKey{BranchID: 10, CategoryID: 3}}, first.Cell())
	assert.Equal(t, 5, first.RentalsCount)
	assert.True(t, first.AvgDailyRate.Valid)
	assert.Equal(t, contracts.SplitUnassigned, first.Split)

	for _, r := range grid[1:] {
		assert.Equal(t, 0, r.RentalsCount, "%v", r.Cell())
		assert.False(t, r.AvgDailyRate.Valid)
	}
}

func TestBuildGrid_EmptyScope(t *testing.T) {
	assert.Nil(t, BuildGrid(&contracts.Scope{TenantID: 1}, day(0), day(3), nil))
}

// === Lags ===

func lagConfig() pipelineconfig.Features {
	f := pipelineconfig.Default().Features
	f.LagDays = []int{1, 7}
	f.RollingWindows = []int{3}
	f.RollingMinPeriods = 2
	return f
}

func TestComputeLags_EveryKeyPresent(t *testing.T) {
	f := lagConfig()
	history := History{day(0): 2, day(1): 4}

	lags := ComputeLags(history, day(2), f)
	assert.Equal(t, []string{"rentals_lag_1d", "rentals_lag_7d", "rentals_rolling_3d_avg"}, lags.Names())
	require.NotNil(t, lags["rentals_lag_1d"])
	assert.Equal(t, 4.0, *lags["rentals_lag_1d"])
	assert.Nil(t, lags["rentals_lag_7d"])
	require.NotNil(t, lags["rentals_rolling_3d_avg"])
	assert.Equal(t, 3.0, *lags["rentals_rolling_3d_avg"])
}

func TestComputeLags_MinPeriods(t *testing.T) {
	f := lagConfig()
	lags := ComputeLags(History{day(0): 2}, day(1), f)
	assert.Nil(t, lags["rentals_rolling_3d_avg"], "one observation < min periods 2")
}

func TestComputeLags_Causal(t *testing.T) {
	f := pipelineconfig.Default().Features
	history := History{}
	for i := 0; i < 60; i++ {
		history[day(i)] = float64(i % 7)
	}
	before := ComputeLags(history, day(40), f)

	// D 이후(당일 포함) 값 변경은 D 의 래그에 영향 없음
	for i := 40; i < 60; i++ {
		history[day(i)] = 1000
	}
	after := ComputeLags(history, day(40), f)
	assert.True(t, LagsEqual(before, after))
}

func TestComputeSeriesLags_RefreshesChangedTrailingOnly(t *testing.T) {
	f := lagConfig()
	key := contracts.SeriesKey{BranchID: 1, CategoryID: 1}

	build := []*contracts.DemandRecord{{DemandDate: day(0), RentalsCount: 5}}
	stale := &contracts.DemandRecord{DemandDate: day(1), RentalsCount: 6, Lags: ComputeLags(History{}, day(1), f)}
	far := &contracts.DemandRecord{DemandDate: day(20), RentalsCount: 6}
	far.Lags = ComputeLags(History{day(20): 6}, day(20), f)

	res := ComputeSeriesLags(LagInput{Series: key, Records: build, Trailing: []*contracts.DemandRecord{stale, far}}, f)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Refreshed, 1)
	assert.Same(t, stale, res.Refreshed[0])
	assert.Equal(t, 5.0, *stale.Lags["rentals_lag_1d"])
}

func TestComputeAllLags_Concurrent(t *testing.T) {
	f := pipelineconfig.Default().Features
	f.LagWorkers = 3

	var inputs []LagInput
	for s := int64(1); s <= 8; s++ {
		inp := LagInput{Series: contracts.SeriesKey{BranchID: s, CategoryID: 1}}
		for i := 0; i < 30; i++ {
			inp.Records = append(inp.Records, &contracts.DemandRecord{DemandDate: day(i), RentalsCount: int(s) + i})
		}
		inputs = append(inputs, inp)
	}

	updated, refreshed, err := ComputeAllLags(context.Background(), inputs, f)
	require.NoError(t, err)
	assert.Equal(t, 240, updated)
	assert.Empty(t, refreshed)

	r := inputs[2].Records[10]
	require.NotNil(t, r.Lags["rentals_lag_7d"])
	assert.Equal(t, float64(3+3), *r.Lags["rentals_lag_7d"])
}

func TestComputeAllLags_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []LagInput{{Records: []*contracts.DemandRecord{{DemandDate: day(0)}}}}
	_, _, err := ComputeAllLags(ctx, inputs, pipelineconfig.Default().Features)
	assert.ErrorIs(t, err, context.Canceled)
}

// === Split ===

func TestSplitCutoff(t *testing.T) {
	tests := []struct {
		name   string
		days   int
		cfg    pipelineconfig.Split
		cutoff time.Time
	}{
		{"fraction", 100, pipelineconfig.Split{ValidationFraction: 0.15}, day(85)},
		{"fraction rounds up", 61, pipelineconfig.Split{ValidationFraction: 0.15}, day(51)},
		{"fixed days", 100, pipelineconfig.Split{ValidationFraction: 0.15, ValidationDays: 30}, day(70)},
		{"window covers range", 10, pipelineconfig.Split{ValidationDays: 30}, day(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cutoff, SplitCutoff(day(0), day(tt.days-1), tt.cfg))
		})
	}
}

func TestAssignSplit_LeavesOutsideRangeUntouched(t *testing.T) {
	records := []*contracts.DemandRecord{
		{DemandDate: day(-1), Split: contracts.SplitValidation},
		{DemandDate: day(0)}, {DemandDate: day(1)}, {DemandDate: day(2)}, {DemandDate: day(3)},
	}
	counts := AssignSplit(records, day(0), day(3), pipelineconfig.Split{ValidationFraction: 0.25})

	assert.Equal(t, contracts.SplitCounts{Train: 3, Validation: 1}, counts)
	assert.Equal(t, contracts.SplitValidation, records[0].Split)
	assert.Equal(t, contracts.SplitTrain, records[3].Split)
	assert.Equal(t, contracts.SplitValidation, records[4].Split)
}

func TestTenantCutoff(t *testing.T) {
	cfg := pipelineconfig.Split{ValidationFraction: 0.15}
	stored := []contracts.DemandRecord{{DemandDate: day(0)}, {DemandDate: day(59)}}

	tests := []struct {
		name     string
		stored   []contracts.DemandRecord
		from, to int
		cutoff   time.Time
	}{
		{"empty table uses the build range", nil, 0, 59, day(51)},
		{"range inside the table", stored, 40, 59, day(51)},
		{"range extends the tail", stored, 60, 69, day(59)},
		{"range extends the head", stored, -40, -1, day(45)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cutoff, TenantCutoff(tt.stored, day(tt.from), day(tt.to), cfg))
		})
	}
}

func TestRelabel(t *testing.T) {
	stored := []contracts.DemandRecord{
		{DemandDate: day(1), Split: contracts.SplitTrain},
		{DemandDate: day(2), Split: contracts.SplitValidation}, // cutoff 이전 → TRAIN
		{DemandDate: day(3), Split: contracts.SplitValidation}, // 범위 안, 건너뜀
		{DemandDate: day(6), Split: contracts.SplitTrain},      // cutoff 이후 → VALIDATION
		{DemandDate: day(7), Split: contracts.SplitValidation},
	}

	got := Relabel(stored, day(3), day(4), day(5))
	require.Len(t, got, 2)
	assert.Equal(t, day(2), got[0].DemandDate)
	assert.Equal(t, contracts.SplitTrain, got[0].Split)
	assert.Equal(t, day(6), got[1].DemandDate)
	assert.Equal(t, contracts.SplitValidation, got[1].Split)
	assert.Equal(t, contracts.SplitValidation, stored[1].Split, "input is not modified")
}

// === Stats / Validator ===

func TestCompleteness_Arithmetic(t *testing.T) {
	records := make([]contracts.DemandRecord, 8)
	for i := range records {
		records[i].Lags = contracts.LagFeatures{"rentals_lag_1d": nil}
		if i < 3 {
			records[i].Lags["rentals_lag_1d"] = contracts.Float(1)
		}
	}
	records[0].Weather.TemperatureAvg = contracts.Float(30)

	got := Completeness(records, []string{"rentals_lag_1d", "temperature_avg"})
	require.Len(t, got, 2)
	assert.Equal(t, contracts.FeatureCompleteness{Feature: "rentals_lag_1d", NonNull: 3, Total: 8, Percent: 37.5}, got[0])
	assert.Equal(t, 12.5, got[1].Percent)
}

func TestTargetSummary(t *testing.T) {
	records := []contracts.DemandRecord{{RentalsCount: 2}, {RentalsCount: 4}, {RentalsCount: 4}, {RentalsCount: 6}}
	st := TargetSummary(records)

	assert.Equal(t, 4, st.Count)
	assert.Equal(t, 4.0, st.Mean)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 6.0, st.Max)
	assert.InDelta(t, math.Sqrt(8.0/3.0), st.Std, 1e-9)
}

func validatorRecords(days int, cutoff int) []contracts.DemandRecord {
	var out []contracts.DemandRecord
	for i := 0; i < days; i++ {
		for _, s := range testScope().Series() {
			r := contracts.DemandRecord{
				TenantID: 1, DemandDate: day(i), BranchID: s.BranchID, CategoryID: s.CategoryID,
				RentalsCount: i % 5,
				Lags: contracts.LagFeatures{
					"rentals_lag_1d":         contracts.Float(1),
					"rentals_lag_7d":         contracts.Float(1),
					"rentals_rolling_7d_avg": contracts.Float(1),
				},
				Split: contracts.SplitTrain,
			}
			if i >= cutoff {
				r.Split = contracts.SplitValidation
			}
			out = append(out, r)
		}
	}
	return out
}

func findCheck(t *testing.T, report *contracts.ValidationReport, name string) contracts.CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return contracts.CheckResult{}
}

func TestValidator_Passes(t *testing.T) {
	cfg := pipelineconfig.Default().Validation
	cfg.MinRows = 10

	report := NewValidator(cfg).Validate(1, validatorRecords(20, 17), testScope(), d0)
	assert.True(t, report.Passed, "failed: %v", report.FailedChecks())
	assert.Len(t, report.Checks, 6+len(cfg.RequiredFeatures)+1)

	dist := findCheck(t, report, CheckSplitDistribution)
	assert.InDelta(t, 15.0, dist.Observed, 1e-9)

	gap := findCheck(t, report, CheckSplitNonOverlap)
	assert.Equal(t, 1.0, gap.Observed)
}

func TestValidator_Failures(t *testing.T) {
	cfg := pipelineconfig.Default().Validation

	t.Run("empty table", func(t *testing.T) {
		report := NewValidator(cfg).Validate(1, nil, nil, d0)
		assert.False(t, report.Passed)
		assert.Contains(t, report.FailedChecks(), CheckRowCount)
		assert.Contains(t, report.FailedChecks(), CheckSplitNonOverlap)
	})

	t.Run("overlapping split", func(t *testing.T) {
		records := validatorRecords(20, 17)
		records[0].Split = contracts.SplitValidation
		report := NewValidator(cfg).Validate(1, records, nil, d0)
		assert.Contains(t, report.FailedChecks(), CheckSplitNonOverlap)
	})

	t.Run("low completeness", func(t *testing.T) {
		records := validatorRecords(20, 17)
		for i := range records {
			if i%2 == 0 || i%3 == 0 {
				records[i].Lags["rentals_lag_7d"] = nil
			}
		}
		report := NewValidator(cfg).Validate(1, records, nil, d0)
		assert.Contains(t, report.FailedChecks(), "completeness:rentals_lag_7d")
		assert.NotContains(t, report.FailedChecks(), "completeness:rentals_lag_1d")
	})

	t.Run("constant target", func(t *testing.T) {
		records := validatorRecords(20, 17)
		for i := range records {
			records[i].RentalsCount = 3
		}
		report := NewValidator(cfg).Validate(1, records, nil, d0)
		assert.Contains(t, report.FailedChecks(), CheckTargetVariance)
	})

	t.Run("missing branch", func(t *testing.T) {
		scope := testScope()
		scope.Branches = append(scope.Branches, contracts.BranchLocation{BranchID: 30})
		report := NewValidator(cfg).Validate(1, validatorRecords(20, 17), scope, d0)
		c := findCheck(t, report, CheckScopeCoverage)
		assert.False(t, c.Passed)
		assert.InDelta(t, 100*4.0/6.0, c.Observed, 1e-9)
	})
}

func TestBatchByDays(t *testing.T) {
	records := BuildGrid(testScope(), day(0), day(9), nil)

	batches := BatchByDays(records, 4)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 16)
	assert.Len(t, batches[1], 16)
	assert.Len(t, batches[2], 8)
	assert.Equal(t, day(4), batches[1][0].DemandDate)

	assert.Nil(t, BatchByDays(nil, 4))
}
