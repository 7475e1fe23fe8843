package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/database"
	"github.com/wonny/fleetcast/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 마이그레이션 (golang-migrate)",
	Long: `feature store / forecast 스키마 마이그레이션을 적용합니다.

Example:
  go run ./cmd/fleetcast migrate up
  go run ./cmd/fleetcast migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "모든 미적용 마이그레이션 적용",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(mg *database.Migrator) error {
			if err := mg.Up(); err != nil {
				return err
			}
			return printVersion(mg)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "모든 마이그레이션 되돌리기 (테이블 삭제)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(mg *database.Migrator) error {
			if err := mg.Down(); err != nil {
				return err
			}
			PrintSuccess("All migrations rolled back")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "현재 스키마 버전",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(printVersion)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrator(fn func(*database.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	mg, err := database.NewMigrator(cfg.Database.URL, log.Component("migrate"))
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

func printVersion(mg *database.Migrator) error {
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	return printReport(map[string]interface{}{"version": version, "dirty": dirty}, func() {
		PrintKeyValue("Version", fmt.Sprint(version), 8)
		PrintKeyValue("Dirty", fmt.Sprint(dirty), 8)
	})
}
