package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/logger"
)

type fakeRunner struct {
	calls []brain.RunConfig
	fail  map[int64]error
}

func (r *fakeRunner) Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error) {
	r.calls = append(r.calls, cfg)
	res := &brain.RunResult{TenantID: cfg.TenantID}
	if err := r.fail[cfg.TenantID]; err != nil {
		return res, err
	}
	if !cfg.SkipBuild {
		res.Build = &contracts.BuildReport{TenantID: cfg.TenantID, RowsUpdated: 10}
	}
	if !cfg.SkipForecast {
		res.Training = &contracts.TrainingResult{TenantID: cfg.TenantID, Champion: "ridge_regression"}
	}
	res.Success = true
	return res, nil
}

type fakeTenants struct {
	ids []int64
	err error
}

func (f fakeTenants) ActiveTenants(ctx context.Context) ([]int64, error) {
	return f.ids, f.err
}

func TestFeatureStoreBuildJob_Window(t *testing.T) {
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	job := NewFeatureStoreBuildJob(&fakeRunner{}, fakeTenants{}, "0 0 2 * * *", 60, time.UTC, logger.Nop()).
		WithClock(func() time.Time { return now })

	start, end := job.Window()
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, 60, int(end.Sub(start).Hours()/24)+1)
	assert.Equal(t, "feature_store_build", job.Name())
	assert.Equal(t, "0 0 2 * * *", job.Schedule())
}

func TestFeatureStoreBuildJob_Run(t *testing.T) {
	runner := &fakeRunner{}
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	job := NewFeatureStoreBuildJob(runner, fakeTenants{ids: []int64{1, 2}}, "@daily", 7, time.UTC, logger.Nop()).
		WithClock(func() time.Time { return now })

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.calls, 2)
	for i, call := range runner.calls {
		assert.Equal(t, int64(i+1), call.TenantID)
		assert.True(t, call.SkipForecast)
		assert.False(t, call.SkipBuild)
		assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), call.StartDate)
		assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), call.EndDate)
	}
}

func TestForecastJob_ContinuesPastTenantFailure(t *testing.T) {
	boom := contracts.Errorf(contracts.KindInsufficientData, contracts.StageLoaded, "only 3 rows")
	runner := &fakeRunner{fail: map[int64]error{1: boom}}
	job := NewForecastJob(runner, fakeTenants{ids: []int64{1, 2}}, "0 0 3 * * *", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
	assert.Contains(t, err.Error(), "tenant 1")
	assert.NotContains(t, err.Error(), "tenant 2")

	require.Len(t, runner.calls, 2)
	for _, call := range runner.calls {
		assert.True(t, call.SkipBuild)
		assert.True(t, call.RunDate.IsZero(), "run date defaults to today")
	}
}

func TestJobs_TenantLookup(t *testing.T) {
	t.Run("lookup error", func(t *testing.T) {
		runner := &fakeRunner{}
		job := NewForecastJob(runner, fakeTenants{err: errors.New("sql: connection refused")}, "@daily", logger.Nop())

		err := job.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list active tenants")
		assert.Empty(t, runner.calls)
	})

	t.Run("no tenants", func(t *testing.T) {
		runner := &fakeRunner{}
		job := NewForecastJob(runner, fakeTenants{}, "@daily", logger.Nop())

		require.NoError(t, job.Run(context.Background()))
		assert.Empty(t, runner.calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		runner := &fakeRunner{}
		job := NewForecastJob(runner, fakeTenants{ids: []int64{1, 2}}, "@daily", logger.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := job.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, runner.calls)
	})
}
