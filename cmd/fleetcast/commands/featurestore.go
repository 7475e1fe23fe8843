package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/s2_features"
)

var featureStoreCmd = &cobra.Command{
	Use:     "featurestore",
	Aliases: []string{"fs"},
	Short:   "피처 스토어 (지점 × 차종 × 일 팩트 테이블)",
	Long: `수요 팩트 테이블을 구축/검증/조회/삭제합니다.

명령어:
  build     범위 빌드 (그리드 → 시그널 → 래그 → 분할 → 저장 → 검증)
  validate  저장된 테이블 재검증
  stats     저장된 테이블 요약
  clear     범위 삭제`,
}

var (
	fsTenant int64
	fsFrom   string
	fsTo     string
)

var featureStoreBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "피처 스토어 빌드",
	Long: `대여 원천 + 날씨/휴일/이벤트 시그널로 팩트 테이블을 빌드합니다.
같은 범위 재빌드는 멱등입니다.

Example:
  go run ./cmd/fleetcast featurestore build --tenant 1 --from 2024-01-01
  go run ./cmd/fleetcast featurestore build --tenant 1 --from 2024-01-01 --to 2024-12-31 --json`,
	RunE: runFeatureStoreBuild,
}

var featureStoreValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "저장된 테이블 검증",
	RunE:  runFeatureStoreValidate,
}

var featureStoreStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "저장된 테이블 요약",
	RunE:  runFeatureStoreStats,
}

var featureStoreClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "범위 삭제",
	Long: `[from, to] 범위의 팩트 행을 삭제합니다. 다음 빌드에서 다시 생성됩니다.

Example:
  go run ./cmd/fleetcast featurestore clear --tenant 1 --from 2024-01-01 --to 2024-01-31`,
	RunE: runFeatureStoreClear,
}

func init() {
	rootCmd.AddCommand(featureStoreCmd)
	featureStoreCmd.AddCommand(featureStoreBuildCmd, featureStoreValidateCmd, featureStoreStatsCmd, featureStoreClearCmd)

	featureStoreCmd.PersistentFlags().Int64Var(&fsTenant, "tenant", 0, "tenant id")
	_ = featureStoreCmd.MarkPersistentFlagRequired("tenant")

	featureStoreBuildCmd.Flags().StringVar(&fsFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	featureStoreBuildCmd.Flags().StringVar(&fsTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	_ = featureStoreBuildCmd.MarkFlagRequired("from")

	featureStoreClearCmd.Flags().StringVar(&fsFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	featureStoreClearCmd.Flags().StringVar(&fsTo, "to", "", "종료 날짜 (YYYY-MM-DD)")
	_ = featureStoreClearCmd.MarkFlagRequired("from")
	_ = featureStoreClearCmd.MarkFlagRequired("to")
}

func runFeatureStoreBuild(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", fsFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", fsTo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	var report *contracts.BuildReport
	buildErr := d.withComponents(ctx, func(c *brain.Components) error {
		var err error
		report, err = c.Builder.Build(ctx, s2_features.BuildRequest{TenantID: fsTenant, StartDate: from, EndDate: to})
		return err
	})
	if report != nil {
		if err := printReport(report, func() { printBuildReport(report) }); err != nil {
			return err
		}
	}
	return buildErr
}

func runFeatureStoreValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.withComponents(ctx, func(c *brain.Components) error {
		report, err := c.Builder.Validate(ctx, fsTenant)
		if err != nil {
			return err
		}
		if err := printReport(report, func() {
			PrintHeader(fmt.Sprintf("Feature Store Validation · tenant %d", fsTenant))
			printValidation(report)
		}); err != nil {
			return err
		}
		if !report.Passed {
			return fmt.Errorf("validation failed: %v", report.FailedChecks())
		}
		return nil
	})
}

func runFeatureStoreStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := initDeps(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.withComponents(ctx, func(c *brain.Components) error {
		stats, err := c.Builder.Stats(ctx, fsTenant)
		if err != nil {
			return err
		}
		return printReport(stats, func() { printStats(stats) })
	})
}

func runFeatureStoreClear(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", fsFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", fsTo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := initDeps(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.withComponents(ctx, func(c *brain.Components) error {
		n, err := c.Builder.Clear(ctx, fsTenant, from, to)
		if err != nil {
			return err
		}
		return printReport(map[string]interface{}{"tenant_id": fsTenant, "deleted": n}, func() {
			PrintSuccess(fmt.Sprintf("Deleted %d rows (%s ~ %s)", n, fsFrom, fsTo))
		})
	})
}
