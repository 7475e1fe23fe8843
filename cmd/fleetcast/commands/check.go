package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/database"
	"github.com/wonny/fleetcast/pkg/redis"
	"github.com/wonny/fleetcast/pkg/sqlserver"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "연결 테스트 (PostgreSQL, SQL Server, Redis)",
	Long: `설정된 모든 연결을 테스트하고 풀 통계를 표시합니다.

이 명령어는:
- DATABASE_URL 연결 + Health Check + Pool 통계
- SOURCE_DB_URL (렌탈 원천) 연결
- REDIS_ENABLED 일 때 Redis 연결

Example:
  go run ./cmd/fleetcast check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== FleetCast Connection Check ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// PostgreSQL
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	PrintSuccess("PostgreSQL")
	PrintKeyValue("Response Time", status.ResponseTime.String(), 14)
	PrintKeyValue("Connections", fmt.Sprintf("%d total / %d idle / max %d", status.Stats.TotalConns, status.Stats.IdleConns, status.Stats.MaxConns), 14)

	// SQL Server
	source, err := sqlserver.Open(ctx, cfg.SourceDB)
	switch {
	case errors.Is(err, sqlserver.ErrNotConfigured):
		PrintWarning("SQL Server: SOURCE_DB_URL not set")
	case err != nil:
		PrintError(fmt.Sprintf("SQL Server: %v", err))
	default:
		source.Close()
		PrintSuccess("SQL Server")
	}

	// Redis
	if !cfg.Redis.Enabled {
		PrintWarning("Redis: disabled")
	} else if rc, err := redis.New(ctx, cfg.Redis); err != nil {
		PrintError(fmt.Sprintf("Redis: %v", err))
	} else {
		rc.Close()
		PrintSuccess("Redis")
	}

	fmt.Println("\n✅ Check finished")
	return nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
