package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/internal/audit"
	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/internal/s2_features"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "수요 예측 - 후보 학습, 챔피언 선택, 발행",
	Long: `피처 스토어의 TRAIN/VALIDATION 분할로 후보 모델을 학습하고
검증 MAE 기준 챔피언으로 run_date 이후 N일 예측을 발행합니다.

후보 모델:
- seasonal_naive (기준선)
- holt_winters
- ridge_regression
- gradient_boosting

명령어:
  train     학습 → 선택 → 예측 → 발행
  show      발행된 예측 조회
  accuracy  발행 예측 vs 실측 사후 정확도`,
}

var (
	fcTenant  int64
	fcRunDate string
)

var forecastTrainCmd = &cobra.Command{
	Use:   "train",
	Short: "학습 → 선택 → 예측 → 발행",
	Long: `Example:
  go run ./cmd/fleetcast forecast train --tenant 1
  go run ./cmd/fleetcast forecast train --tenant 1 --run-date 2025-03-01`,
	RunE: runForecastTrain,
}

var forecastShowCmd = &cobra.Command{
	Use:   "show",
	Short: "발행된 예측 조회 (기본: 최신 run)",
	RunE:  runForecastShow,
}

var forecastAccuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "발행 예측과 이후 적재된 실측 비교 (기본: 최신 run)",
	Long: `예측 날짜의 실측은 피처 스토어에서 읽습니다. 아직 빌드되지 않은
날짜는 pending 으로 집계됩니다.

Example:
  go run ./cmd/fleetcast forecast accuracy --tenant 1 --run-date 2025-03-01`,
	RunE: runForecastAccuracy,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.AddCommand(forecastTrainCmd, forecastShowCmd, forecastAccuracyCmd)

	forecastCmd.PersistentFlags().Int64Var(&fcTenant, "tenant", 0, "tenant id")
	forecastCmd.PersistentFlags().StringVar(&fcRunDate, "run-date", "", "run date (YYYY-MM-DD, 기본: 오늘)")
	_ = forecastCmd.MarkPersistentFlagRequired("tenant")
}

func runForecastTrain(cmd *cobra.Command, args []string) error {
	runDate, err := parseDateFlag("run-date", fcRunDate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	var result *contracts.TrainingResult
	trainErr := d.withComponents(ctx, func(c *brain.Components) error {
		var err error
		result, err = c.Trainer.Run(ctx, forecast.TrainRequest{TenantID: fcTenant, RunDate: runDate})
		return err
	})
	if result != nil {
		if err := printReport(result, func() { printTrainingResult(result) }); err != nil {
			return err
		}
	}
	return trainErr
}

func runForecastShow(cmd *cobra.Command, args []string) error {
	runDate, err := parseDateFlag("run-date", fcRunDate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close()

	repo := forecast.NewRepository(d.db.Pool)
	if runDate.IsZero() {
		latest, err := repo.LatestRunDate(ctx, fcTenant)
		if err != nil {
			return fmt.Errorf("latest run date: %w", err)
		}
		if latest == nil {
			PrintWarning(fmt.Sprintf("No forecasts published for tenant %d", fcTenant))
			return nil
		}
		runDate = *latest
	}

	rows, err := repo.LoadRun(ctx, fcTenant, runDate)
	if err != nil {
		return fmt.Errorf("load forecast run: %w", err)
	}
	day := runDate.Format(contracts.DateLayout)
	return printReport(map[string]interface{}{"tenant_id": fcTenant, "run_date": day, "forecasts": rows}, func() {
		printForecasts(fcTenant, day, rows)
	})
}

func runForecastAccuracy(cmd *cobra.Command, args []string) error {
	runDate, err := parseDateFlag("run-date", fcRunDate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close()

	analyzer := audit.NewAnalyzer(s2_features.NewRepository(d.db.Pool), forecast.NewRepository(d.db.Pool), d.log)
	report, err := analyzer.Analyze(ctx, fcTenant, runDate)
	if errors.Is(err, audit.ErrNoForecasts) {
		PrintWarning(fmt.Sprintf("No forecasts published for tenant %d", fcTenant))
		return nil
	}
	if err != nil {
		return err
	}
	return printReport(report, func() { printAccuracy(report) })
}
