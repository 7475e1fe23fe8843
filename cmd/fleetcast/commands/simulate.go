package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/simulation"
	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/logger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "합성 테넌트로 전체 파이프라인 실행 (DB 불필요)",
	Long: `결정적인 합성 대여/날씨/휴일/이벤트 데이터를 생성하고
인메모리 저장소 위에서 빌드 → 학습 → 예측 발행을 실행합니다.

Example:
  go run ./cmd/fleetcast simulate
  go run ./cmd/fleetcast simulate --branches 3 --categories 4 --days 500 --seed 7 --json`,
	RunE: runSimulate,
}

var simOpts = simulation.DefaultOptions()
var simStart string

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.IntVar(&simOpts.Branches, "branches", simOpts.Branches, "지점 수")
	f.IntVar(&simOpts.Categories, "categories", simOpts.Categories, "차종 수")
	f.IntVar(&simOpts.Days, "days", simOpts.Days, "일 수")
	f.Int64Var(&simOpts.Seed, "seed", simOpts.Seed, "난수 시드")
	f.Float64Var(&simOpts.Noise, "noise", simOpts.Noise, "일별 잡음 표준편차")
	f.Float64Var(&simOpts.TrendPerYear, "trend", simOpts.TrendPerYear, "연간 추세")
	f.StringVar(&simStart, "start", simOpts.Start.Format(contracts.DateLayout), "시작 날짜 (YYYY-MM-DD)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	start, err := parseDateFlag("start", simStart)
	if err != nil {
		return err
	}
	opts := simOpts
	opts.Start = start

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(&config.Config{Env: "development", LogLevel: level, LogFormat: "console"})

	pcfg, err := pipelineconfig.LoadOrDefault(pipelineConfig)
	if err != nil {
		return fmt.Errorf("load pipeline config: %w", err)
	}

	gen, err := simulation.NewGenerator(opts)
	if err != nil {
		return err
	}
	env, err := simulation.NewEnvironment(gen, pcfg, log)
	if err != nil {
		return err
	}

	result, runErr := env.Run(cmd.Context())
	if err := printReport(result, func() { printRunResult(result) }); err != nil {
		return err
	}
	return runErr
}
