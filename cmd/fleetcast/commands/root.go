package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	pipelineConfig string
	jsonOutput     bool
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fleetcast",
	Short: "FleetCast - 렌터카 수요 예측 파이프라인",
	Long: `FleetCast Unified CLI

지점 × 차종 × 일 단위 대여 수요 피처 스토어를 구축하고
후보 모델을 학습/선택하여 30일 수요 예측을 발행합니다.

Usage:
  go run ./cmd/fleetcast [command]

Examples:
  go run ./cmd/fleetcast featurestore build --tenant 1 --from 2024-01-01
  go run ./cmd/fleetcast forecast train --tenant 1
  go run ./cmd/fleetcast pipeline run --tenant 1 --from 2024-01-01
  go run ./cmd/fleetcast scheduler start
  go run ./cmd/fleetcast simulate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C / SIGTERM 은 진행 중인 명령의 context 를 취소.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelineConfig, "pipeline-config", "", "pipeline YAML (default: PIPELINE_CONFIG or built-in)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print reports as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
