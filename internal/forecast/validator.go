package forecast

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
)

// =============================================================================
// Candidate Evaluation
// =============================================================================

// Evaluation 후보 하나의 학습 + 검증셋 평가 결과
type Evaluation struct {
	Run   contracts.ModelRun
	Order int // 로스터 순서 (tie-break)
}

// Evaluator fits a candidate on TRAIN and scores it on VALIDATION
// ⭐ SSOT: 검증셋 평가 규칙은 여기서만
type Evaluator struct {
	train      *Dataset
	validation *Dataset
	log        zerolog.Logger
}

// NewEvaluator creates an evaluator over shared, read-only splits
func NewEvaluator(train, validation *Dataset, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		train:      train,
		validation: validation,
		log:        log.With().Str("component", "forecast.evaluator").Logger(),
	}
}

// Evaluate never panics: 후보 내부 panic/오류는 ModelTrainingFailure 로 기록
func (e *Evaluator) Evaluate(ctx context.Context, m Model) (run contracts.ModelRun) {
	run = contracts.ModelRun{ModelName: m.Name(), Kind: m.Kind()}

	defer func() {
		if r := recover(); r != nil {
			run.TrainingSeconds = nil
			run.Metrics = nil
			run.Failure = &contracts.Failure{
				Kind:    contracts.KindModelTrainingFailure,
				Stage:   contracts.StageTraining,
				Message: fmt.Sprintf("panic: %v", r),
			}
			e.log.Error().
				Str("model", m.Name()).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("candidate panicked")
		}
	}()

	start := time.Now()
	if err := m.Fit(ctx, e.train); err != nil {
		return e.fail(run, contracts.StageTraining, fmt.Errorf("fit: %w", err))
	}
	secs := time.Since(start).Seconds()

	var res Residuals
	trainByKey := make(map[contracts.SeriesKey]SeriesHistory, len(e.train.Series))
	for _, s := range e.train.Series {
		trainByKey[s.Key] = s
	}
	for _, target := range e.validation.Series {
		preds, err := PredictValidation(ctx, m, trainByKey[target.Key], target)
		if err != nil {
			return e.fail(run, contracts.StageEvaluated, fmt.Errorf("predict %d/%d: %w", target.Key.BranchID, target.Key.CategoryID, err))
		}
		res.AddObserved(target, preds)
	}

	metrics, err := Score(res)
	if err != nil {
		return e.fail(run, contracts.StageEvaluated, err)
	}

	run.TrainingSeconds = &secs
	run.Metrics = metrics
	e.log.Debug().
		Str("model", m.Name()).
		Float64("mae", metrics.MAE).
		Float64("rmse", metrics.RMSE).
		Float64("training_seconds", secs).
		Msg("candidate evaluated")
	return run
}

func (e *Evaluator) fail(run contracts.ModelRun, stage contracts.Stage, err error) contracts.ModelRun {
	run.TrainingSeconds = nil
	run.Metrics = nil
	run.Failure = &contracts.Failure{
		Kind:    contracts.KindModelTrainingFailure,
		Stage:   stage,
		Message: err.Error(),
	}
	e.log.Warn().Err(err).Str("model", run.ModelName).Msg("candidate failed")
	return run
}
