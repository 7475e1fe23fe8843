package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/pkg/logger"
)

// Runner runs one pipeline invocation (brain.Orchestrator)
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// TenantLister lists tenants with an active branch/category selection
type TenantLister interface {
	ActiveTenants(ctx context.Context) ([]int64, error)
}

// FeatureStoreBuildJob rebuilds the trailing window of the fact table for every active tenant
// ⭐ SSOT: 증분 빌드 스케줄은 이 Job에서만
type FeatureStoreBuildJob struct {
	runner       Runner
	tenants      TenantLister
	schedule     string
	lookbackDays int
	loc          *time.Location
	logger       *logger.Logger
	now          func() time.Time
}

// NewFeatureStoreBuildJob creates a new incremental build job
func NewFeatureStoreBuildJob(runner Runner, tenants TenantLister, schedule string, lookbackDays int, loc *time.Location, log *logger.Logger) *FeatureStoreBuildJob {
	return &FeatureStoreBuildJob{
		runner:       runner,
		tenants:      tenants,
		schedule:     schedule,
		lookbackDays: lookbackDays,
		loc:          loc,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the clock (tests)
func (j *FeatureStoreBuildJob) WithClock(now func() time.Time) *FeatureStoreBuildJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *FeatureStoreBuildJob) Name() string {
	return "feature_store_build"
}

// Schedule returns the cron schedule (default 02:00 daily)
func (j *FeatureStoreBuildJob) Schedule() string {
	return j.schedule
}

// Window returns the build range: lookbackDays days ending yesterday.
// 오늘은 대여가 아직 끝나지 않아 제외.
func (j *FeatureStoreBuildJob) Window() (time.Time, time.Time) {
	end := contracts.DateOf(j.now().In(j.loc)).AddDate(0, 0, -1)
	return end.AddDate(0, 0, -(j.lookbackDays - 1)), end
}

// Run builds every active tenant. 한 테넌트 실패가 나머지를 막지 않음.
func (j *FeatureStoreBuildJob) Run(ctx context.Context) error {
	start, end := j.Window()
	j.logger.WithFields(map[string]interface{}{
		"start_date": start.Format(contracts.DateLayout),
		"end_date":   end.Format(contracts.DateLayout),
	}).Info("Starting scheduled feature store build")

	return forEachTenant(ctx, j.tenants, j.logger, func(tenantID int64) error {
		res, err := j.runner.Run(ctx, brain.RunConfig{
			TenantID:     tenantID,
			StartDate:    start,
			EndDate:      end,
			SkipForecast: true,
		})
		if err != nil {
			return err
		}
		if res.Build != nil {
			j.logger.WithFields(map[string]interface{}{
				"tenant_id": tenantID,
				"inserted":  res.Build.RowsInserted,
				"updated":   res.Build.RowsUpdated,
				"warnings":  len(res.Build.Warnings),
			}).Info("Tenant feature store refreshed")
		}
		return nil
	})
}

// ForecastJob trains, selects and publishes forecasts for every active tenant
type ForecastJob struct {
	runner   Runner
	tenants  TenantLister
	schedule string
	logger   *logger.Logger
}

// NewForecastJob creates a new forecast job
func NewForecastJob(runner Runner, tenants TenantLister, schedule string, log *logger.Logger) *ForecastJob {
	return &ForecastJob{
		runner:   runner,
		tenants:  tenants,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast_pipeline"
}

// Schedule returns the cron schedule (default 03:00 daily, after the build)
func (j *ForecastJob) Schedule() string {
	return j.schedule
}

// Run executes the forecast pipeline; run date = today in the pipeline timezone
func (j *ForecastJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled forecast pipeline")

	return forEachTenant(ctx, j.tenants, j.logger, func(tenantID int64) error {
		res, err := j.runner.Run(ctx, brain.RunConfig{TenantID: tenantID, SkipBuild: true})
		if err != nil {
			return err
		}
		if t := res.Training; t != nil {
			j.logger.WithFields(map[string]interface{}{
				"tenant_id": tenantID,
				"champion":  t.Champion,
				"forecasts": t.ForecastsGenerated,
				"warnings":  len(t.Warnings),
			}).Info("Tenant forecasts published")
		}
		return nil
	})
}

func forEachTenant(ctx context.Context, lister TenantLister, log *logger.Logger, fn func(int64) error) error {
	tenants, err := lister.ActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}
	if len(tenants) == 0 {
		log.Warn("No active tenants, nothing to do")
		return nil
	}

	var errs []error
	for _, id := range tenants {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := fn(id); err != nil {
			log.WithTenant(id).WithError(err).Error("Tenant run failed")
			errs = append(errs, fmt.Errorf("tenant %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
