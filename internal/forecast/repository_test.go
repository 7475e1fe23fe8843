package forecast

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/database/dbtest"
)

func TestRepository_ReplaceRun(t *testing.T) {
	tdb := dbtest.GetTestDB(t)
	tdb.Truncate(t, "demand_forecasts")
	ctx := context.Background()

	sess, err := tdb.DB.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()
	repo := NewRepository(sess.Querier())

	latest, err := repo.LatestRunDate(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := gateRecords(testPairs[0], 3, func(h int) float64 { return float64(h) })
	first[0].LowerBound, first[0].UpperBound = contracts.Float(0.5), contracts.Float(1.5)
	for i := range first {
		first[i].ModelName, first[i].ModelVersion = ModelRidge, "1-abc"
	}
	require.NoError(t, repo.ReplaceRun(ctx, 1, day(0), first))

	got, err := repo.LoadRun(ctx, 1, day(0))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day(1), got[0].ForecastDate)
	assert.Equal(t, 0.5, *got[0].LowerBound)
	assert.Nil(t, got[1].LowerBound)
	assert.Equal(t, ModelRidge, got[2].ModelName)

	// 같은 run_date 재실행은 통째 교체
	second := gateRecords(testPairs[1], 2, func(int) float64 { return 7 })
	for i := range second {
		second[i].ModelName, second[i].ModelVersion = ModelSeasonalNaive, "1-abc"
	}
	require.NoError(t, repo.ReplaceRun(ctx, 1, day(0), second))

	got, err = repo.LoadRun(ctx, 1, day(0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testPairs[1], got[0].Series())

	latest, err = repo.LatestRunDate(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(day(0)))
}

func TestRepository_ReplaceRunRollsBack(t *testing.T) {
	tdb := dbtest.GetTestDB(t)
	tdb.Truncate(t, "demand_forecasts")
	ctx := context.Background()

	sess, err := tdb.DB.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()
	repo := NewRepository(sess.Querier())

	good := gateRecords(testPairs[0], 2, func(int) float64 { return 3 })
	for i := range good {
		good[i].ModelName, good[i].ModelVersion = ModelRidge, "v"
	}
	require.NoError(t, repo.ReplaceRun(ctx, 1, day(0), good))

	bad := gateRecords(testPairs[0], 2, func(int) float64 { return 3 })
	for i := range bad {
		bad[i].ModelName, bad[i].ModelVersion = ModelRidge, "v"
	}
	bad[1].ForecastDemand = -1 // CHECK 위반

	require.Error(t, repo.ReplaceRun(ctx, 1, day(0), bad))

	got, err := repo.LoadRun(ctx, 1, day(0))
	require.NoError(t, err)
	assert.Len(t, got, 2, "previous run survives a failed replace")
}

func TestRunTracker(t *testing.T) {
	tdb := dbtest.GetTestDB(t)
	tdb.Truncate(t, "forecast_training_runs")
	ctx := context.Background()

	sess, err := tdb.DB.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()
	tracker := NewRunTracker(sess.Querier())

	failedRun := &contracts.TrainingResult{
		RunID:      uuid.NewString(),
		TenantID:   1,
		RunDate:    day(0),
		ConfigHash: "hash",
		Stage:      contracts.StageFailed,
		Failure:    &contracts.Failure{Kind: contracts.KindNoViableModel, Stage: contracts.StageSelected},
	}
	require.NoError(t, tracker.SaveTrainingResult(ctx, failedRun))

	okRun := &contracts.TrainingResult{
		RunID:              uuid.NewString(),
		TenantID:           1,
		RunDate:            day(1),
		ConfigHash:         "hash",
		Stage:              contracts.StagePersisted,
		Champion:           ModelRidge,
		ForecastsGenerated: 120,
	}
	require.NoError(t, tracker.SaveTrainingResult(ctx, okRun))

	got, err := tracker.LatestResults(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, okRun.RunID, got[0].RunID)
	assert.Equal(t, 120, got[0].ForecastsGenerated)
	require.NotNil(t, got[1].Failure)
	assert.Equal(t, contracts.KindNoViableModel, got[1].Failure.Kind)
}
