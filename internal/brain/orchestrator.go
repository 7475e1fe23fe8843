package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/internal/s2_features"
	"github.com/wonny/fleetcast/pkg/logger"
)

// Components 호출 하나 동안 사용하는 빌더/트레이너.
// 같은 세션에 바인딩되며 Release 로 반납.
type Components struct {
	Builder *s2_features.Builder
	Trainer *forecast.Trainer
	Release func()
}

// ComponentFactory acquires per-invocation resources (세션, 저장소)
type ComponentFactory interface {
	Open(ctx context.Context) (*Components, error)
}

// FactoryFunc adapts a function to ComponentFactory
type FactoryFunc func(ctx context.Context) (*Components, error)

// Open calls f
func (f FactoryFunc) Open(ctx context.Context) (*Components, error) {
	return f(ctx)
}

// Orchestrator chains the feature store build and the forecast run
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	factory ComponentFactory
	logger  *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	TenantID     int64
	StartDate    time.Time // build 범위 시작
	EndDate      time.Time // zero 면 오늘
	RunDate      time.Time // zero 면 오늘
	SkipBuild    bool      // 학습/예측만 실행
	SkipForecast bool      // 빌드만 실행 (스케줄 증분 빌드)
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string                    `json:"run_id"`
	TenantID        int64                     `json:"tenant_id"`
	Success         bool                      `json:"success"`
	Error           string                    `json:"error,omitempty"`
	CompletedStages []string                  `json:"completed_stages"`
	Build           *contracts.BuildReport    `json:"build,omitempty"`
	Training        *contracts.TrainingResult `json:"training,omitempty"`
	Duration        time.Duration             `json:"duration"`
}

// Pipeline step names
const (
	StepFeatureStore = "feature_store"
	StepForecast     = "forecast"
)

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(factory ComponentFactory, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{factory: factory, logger: logger}
}

// Run executes build → train for one tenant.
// 세션은 호출마다 획득하고 모든 경로에서 반납.
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID:           uuid.NewString(),
		TenantID:        config.TenantID,
		CompletedStages: make([]string, 0, 2),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":     result.RunID,
		"tenant_id":  config.TenantID,
		"start_date": formatDate(config.StartDate),
		"end_date":   formatDate(config.EndDate),
		"run_date":   formatDate(config.RunDate),
		"skip_build": config.SkipBuild,
		"build_only": config.SkipForecast,
	}).Info("Starting pipeline run")

	err := o.run(ctx, config, result)
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Error = err.Error()
		o.logger.WithError(err).WithFields(map[string]interface{}{
			"run_id":    result.RunID,
			"tenant_id": config.TenantID,
			"stages":    len(result.CompletedStages),
		}).Error("Pipeline run failed")
		return result, err
	}

	result.Success = true
	fields := map[string]interface{}{
		"run_id":    result.RunID,
		"tenant_id": config.TenantID,
		"duration":  result.Duration.Seconds(),
		"stages":    result.CompletedStages,
	}
	if result.Training != nil {
		fields["champion"] = result.Training.Champion
		fields["forecasts"] = result.Training.ForecastsGenerated
	}
	o.logger.WithFields(fields).Info("Pipeline run completed successfully")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, config RunConfig, result *RunResult) error {
	comps, err := o.factory.Open(ctx)
	if err != nil {
		return contracts.NewError(contracts.KindPersistenceFailure, contracts.StageInit, fmt.Errorf("open pipeline session: %w", err))
	}
	if comps.Release != nil {
		defer comps.Release()
	}

	// Feature store
	if !config.SkipBuild {
		report, err := comps.Builder.Build(ctx, s2_features.BuildRequest{
			TenantID:  config.TenantID,
			StartDate: config.StartDate,
			EndDate:   config.EndDate,
		})
		result.Build = report
		if err != nil {
			return fmt.Errorf("%s: %w", StepFeatureStore, err)
		}
		result.CompletedStages = append(result.CompletedStages, StepFeatureStore)
	} else {
		o.logger.Info("Skipping feature store build")
	}

	if config.SkipForecast {
		return nil
	}

	// Forecast
	training, err := comps.Trainer.Run(ctx, forecast.TrainRequest{
		TenantID: config.TenantID,
		RunDate:  config.RunDate,
	})
	result.Training = training
	if err != nil {
		return fmt.Errorf("%s: %w", StepForecast, err)
	}
	result.CompletedStages = append(result.CompletedStages, StepForecast)
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "today"
	}
	return t.Format(contracts.DateLayout)
}
