package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/internal/brain"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "전체 파이프라인 (빌드 → 학습/예측)",
}

var (
	plTenant    int64
	plFrom      string
	plTo        string
	plRunDate   string
	plSkipBuild bool
)

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "한 테넌트에 대해 빌드 후 학습/예측 실행",
	Long: `피처 스토어 빌드와 예측 학습/발행을 순차 실행합니다.
빌드가 실패하면 학습은 실행되지 않습니다.

Example:
  go run ./cmd/fleetcast pipeline run --tenant 1 --from 2024-01-01
  go run ./cmd/fleetcast pipeline run --tenant 1 --skip-build`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)

	pipelineRunCmd.Flags().Int64Var(&plTenant, "tenant", 0, "tenant id")
	pipelineRunCmd.Flags().StringVar(&plFrom, "from", "", "빌드 시작 날짜 (YYYY-MM-DD)")
	pipelineRunCmd.Flags().StringVar(&plTo, "to", "", "빌드 종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	pipelineRunCmd.Flags().StringVar(&plRunDate, "run-date", "", "run date (YYYY-MM-DD, 기본: 오늘)")
	pipelineRunCmd.Flags().BoolVar(&plSkipBuild, "skip-build", false, "학습/예측만 실행")
	_ = pipelineRunCmd.MarkFlagRequired("tenant")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", plFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", plTo)
	if err != nil {
		return err
	}
	runDate, err := parseDateFlag("run-date", plRunDate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	result, runErr := d.orchestrator().Run(ctx, brain.RunConfig{
		TenantID:  plTenant,
		StartDate: from,
		EndDate:   to,
		RunDate:   runDate,
		SkipBuild: plSkipBuild,
	})
	if err := printReport(result, func() { printRunResult(result) }); err != nil {
		return err
	}
	return runErr
}
