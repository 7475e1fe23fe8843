package forecast

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/s1_signals"
	"github.com/wonny/fleetcast/pkg/metrics"
)

// TrainRequest 학습 대상. RunDate 가 zero 면 오늘.
type TrainRequest struct {
	TenantID int64
	RunDate  time.Time
}

// Trainer trains the candidate roster, selects a champion and publishes its forecast
// ⭐ SSOT: 학습 상태 머신은 여기서만
//
// INIT → LOADED → TRAINING → EVALUATED → SELECTED → FORECASTING → PERSISTED
type Trainer struct {
	features  contracts.FeatureRepository
	buildLog  contracts.BuildLog
	runLog    contracts.RunLog
	scopes    contracts.ScopeProvider
	holidays  contracts.HolidaySource
	publisher *Publisher
	registry  *Registry

	cfg        *pipelineconfig.Config
	configHash string
	log        zerolog.Logger
	now        func() time.Time
}

// NewTrainer creates a trainer. holidays 는 nil 가능 (미래 달력은 주말만 반영).
func NewTrainer(
	features contracts.FeatureRepository,
	buildLog contracts.BuildLog,
	runLog contracts.RunLog,
	scopes contracts.ScopeProvider,
	holidays contracts.HolidaySource,
	publisher *Publisher,
	cfg *pipelineconfig.Config,
	log zerolog.Logger,
) (*Trainer, error) {
	hash, err := pipelineconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash pipeline config: %w", err)
	}
	return &Trainer{
		features:   features,
		buildLog:   buildLog,
		runLog:     runLog,
		scopes:     scopes,
		holidays:   holidays,
		publisher:  publisher,
		registry:   NewRegistry(),
		cfg:        cfg,
		configHash: hash,
		log:        log.With().Str("component", "forecast.trainer").Logger(),
		now:        time.Now,
	}, nil
}

// WithRegistry replaces the model registry
func (t *Trainer) WithRegistry(r *Registry) *Trainer {
	t.registry = r
	return t
}

// WithClock overrides the clock
func (t *Trainer) WithClock(now func() time.Time) *Trainer {
	t.now = now
	return t
}

// ModelVersion 예측 행에 기록되는 모델 버전
func (t *Trainer) ModelVersion() string {
	return fmt.Sprintf("%s-%s", t.cfg.Meta.Version, t.configHash[:12])
}

// Run executes the state machine and always returns a result
func (t *Trainer) Run(ctx context.Context, req TrainRequest) (*contracts.TrainingResult, error) {
	startedAt := t.now()
	tracker := contracts.NewTrainTracker()
	res := &contracts.TrainingResult{
		RunID:      uuid.NewString(),
		TenantID:   req.TenantID,
		ConfigHash: t.configHash,
		StartedAt:  startedAt,
		Horizon:    t.cfg.Training.HorizonDays,
	}
	if req.RunDate.IsZero() {
		res.RunDate = contracts.DateOf(startedAt.In(t.cfg.Meta.Location()))
	} else {
		res.RunDate = contracts.DateOf(req.RunDate)
	}

	err := t.run(ctx, tracker, res)
	if err != nil {
		reached := tracker.Fail()
		res.Failure = contracts.FailureFrom(err, reached, contracts.KindPersistenceFailure)
		if contracts.KindOf(err) == "" {
			err = contracts.NewError(res.Failure.Kind, reached, err)
		}
	}
	res.Stage = tracker.Current()
	res.CompletedStages = tracker.Completed()
	res.Duration = time.Since(startedAt)

	if saveErr := t.runLog.SaveTrainingResult(ctx, res); saveErr != nil {
		t.log.Warn().Err(saveErr).Str("run_id", res.RunID).Msg("failed to save training result")
	}
	metrics.ObserveTraining(res.Succeeded())

	if err != nil {
		t.log.Error().Err(err).
			Str("run_id", res.RunID).
			Int64("tenant_id", res.TenantID).
			Str("failure_kind", string(res.Failure.Kind)).
			Str("failure_stage", string(res.Failure.Stage)).
			Msg("training run failed")
		return res, err
	}

	t.log.Info().
		Str("run_id", res.RunID).
		Int64("tenant_id", res.TenantID).
		Str("champion", res.Champion).
		Int("forecasts", res.ForecastsGenerated).
		Dur("duration", res.Duration).
		Msg("training run completed")
	return res, nil
}

func (t *Trainer) run(ctx context.Context, tracker *contracts.StageTracker, res *contracts.TrainingResult) error {
	tc := t.cfg.Training

	// === INIT ===
	if res.TenantID <= 0 {
		return contracts.Errorf(contracts.KindInvalidInput, contracts.StageInit, "tenant id must be positive, got %d", res.TenantID)
	}

	validation, err := t.buildLog.LatestValidation(ctx, res.TenantID)
	if err != nil {
		return contracts.NewError(contracts.KindPersistenceFailure, contracts.StageInit, fmt.Errorf("load latest validation: %w", err))
	}
	if validation.IsEmpty() {
		return contracts.Errorf(contracts.KindFeatureStoreNotReady, contracts.StageInit, "tenant %d has no feature store validation report", res.TenantID)
	}
	if !validation.Passed {
		res.Warnings = append(res.Warnings, fmt.Sprintf("latest feature store validation failed: %v", validation.FailedChecks()))
	}

	train, err := t.loadSplit(ctx, res, contracts.SplitTrain)
	if err != nil {
		return err
	}
	val, err := t.loadSplit(ctx, res, contracts.SplitValidation)
	if err != nil {
		return err
	}

	// === LOADED ===
	tracker.Advance(contracts.StageLoaded)
	res.TrainRows, res.ValidationRows = len(train), len(val)
	if len(train) == 0 || len(train) < tc.MinTrainRows {
		return contracts.Errorf(contracts.KindInsufficientData, contracts.StageLoaded,
			"%d TRAIN rows, need %d", len(train), tc.MinTrainRows)
	}
	if len(val) == 0 || len(val) < tc.MinValidationRows {
		return contracts.Errorf(contracts.KindInsufficientData, contracts.StageLoaded,
			"%d VALIDATION rows, need %d", len(val), tc.MinValidationRows)
	}

	// === TRAINING ===
	tracker.Advance(contracts.StageTraining)
	trainDS := &Dataset{Series: SeriesFromRecords(train)}
	valDS := &Dataset{Series: SeriesFromRecords(val)}
	res.ModelRuns = t.trainCandidates(ctx, NewEvaluator(trainDS, valDS, t.log))

	// === EVALUATED ===
	res.TrainedModels = nil
	for _, r := range res.ModelRuns {
		if r.Succeeded() {
			res.TrainedModels = append(res.TrainedModels, r.ModelName)
			metrics.ModelValidationMAE.WithLabelValues(r.ModelName).Set(r.Metrics.MAE)
		} else {
			metrics.ModelFailures.WithLabelValues(r.ModelName).Inc()
		}
	}
	tracker.Advance(contracts.StageEvaluated)

	// === SELECTED ===
	sel, err := SelectChampion(res.ModelRuns, tc.Baseline, tc.BaselineBoundFactor)
	if err != nil {
		return err
	}
	res.Champion = sel.Champion
	res.BaselineMAE = sel.BaselineMAE
	championMAE := sel.ChampionMAE
	res.ChampionMAE = &championMAE
	res.Warnings = append(res.Warnings, sel.Warnings...)
	tracker.Advance(contracts.StageSelected)

	// === FORECASTING ===
	tracker.Advance(contracts.StageForecasting)
	champRun, _ := res.RunFor(sel.Champion)
	gate, err := t.forecast(ctx, res, append(train, val...), champRun.Metrics.ResidualStd)
	if err != nil {
		return err
	}
	res.ForecastsGenerated = len(gate.Records)

	// === PERSISTED ===
	warnings, err := t.publisher.Publish(ctx, res.TenantID, res.RunDate, res.Champion, gate)
	if err != nil {
		return err
	}
	res.Warnings = append(res.Warnings, warnings...)
	tracker.Advance(contracts.StagePersisted)
	return nil
}

func (t *Trainer) loadSplit(ctx context.Context, res *contracts.TrainingResult, split contracts.SplitLabel) ([]contracts.DemandRecord, error) {
	rows, err := t.features.LoadSplit(ctx, res.TenantID, split)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistenceFailure, contracts.StageInit, fmt.Errorf("load %s rows: %w", split, err))
	}
	// run_date 이후 데이터는 사용하지 않음
	out := rows[:0]
	for _, r := range rows {
		if !r.DemandDate.After(res.RunDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

// trainCandidates fans the roster out over a bounded worker pool.
// 결과는 단일 collector 가 로스터 순서로 병합.
func (t *Trainer) trainCandidates(ctx context.Context, eval *Evaluator) []contracts.ModelRun {
	roster := t.cfg.Training.Candidates
	type job struct {
		order int
		name  string
	}

	jobCh := make(chan job, len(roster))
	resultCh := make(chan Evaluation, len(roster))

	workers := t.cfg.Training.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(roster) {
		workers = len(roster)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				resultCh <- Evaluation{Order: j.order, Run: t.evaluateCandidate(ctx, eval, j.name)}
			}
		}()
	}

	for i, name := range roster {
		jobCh <- job{order: i, name: name}
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	runs := make([]contracts.ModelRun, len(roster))
	for ev := range resultCh {
		runs[ev.Order] = ev.Run
	}
	return runs
}

func (t *Trainer) evaluateCandidate(ctx context.Context, eval *Evaluator, name string) contracts.ModelRun {
	m, err := t.registry.New(name, t.cfg)
	if err != nil {
		return contracts.ModelRun{
			ModelName: name,
			Kind:      contracts.ModelKindLearned,
			Failure:   &contracts.Failure{Kind: contracts.KindModelTrainingFailure, Stage: contracts.StageTraining, Message: err.Error()},
		}
	}
	return eval.Evaluate(ctx, m)
}

// forecast refits a fresh champion on TRAIN ∪ VALIDATION and predicts every scope pair
func (t *Trainer) forecast(ctx context.Context, res *contracts.TrainingResult, records []contracts.DemandRecord, residualStd float64) (GateInput, error) {
	tc := t.cfg.Training
	horizon := tc.HorizonDays
	gate := GateInput{Horizon: horizon, Varying: make(map[contracts.SeriesKey]bool)}

	scope, err := t.scopes.ActiveScope(ctx, res.TenantID)
	if err != nil {
		return gate, contracts.NewError(contracts.KindSourceUnavailable, contracts.StageForecasting, fmt.Errorf("resolve scope: %w", err))
	}
	if scope.IsEmpty() {
		return gate, contracts.Errorf(contracts.KindEmptyScope, contracts.StageForecasting, "tenant %d has no active branch/category selection", res.TenantID)
	}
	gate.Pairs = scope.Series()

	full := &Dataset{Series: SeriesFromRecords(records)}
	champion, err := t.registry.New(res.Champion, t.cfg)
	if err != nil {
		return gate, contracts.NewError(contracts.KindNoViableModel, contracts.StageForecasting, err)
	}
	if err := safely(func() error { return champion.Fit(ctx, full) }); err != nil {
		return gate, contracts.NewError(contracts.KindNoViableModel, contracts.StageForecasting, fmt.Errorf("refit %s: %w", res.Champion, err))
	}

	histories := make(map[contracts.SeriesKey]SeriesHistory, len(full.Series))
	earliest := res.RunDate
	for _, s := range full.Series {
		histories[s.Key] = s
		if s.End().Before(earliest) {
			earliest = s.End()
		}
	}
	cal := t.calendar(ctx, res, earliest.AddDate(0, 0, 1), res.RunDate.AddDate(0, 0, horizon))

	version := t.ModelVersion()
	z := tc.IntervalZ
	for _, pair := range gate.Pairs {
		hist, ok := histories[pair]
		if !ok {
			hist = SeriesHistory{Key: pair, Start: res.RunDate.AddDate(0, 0, 1)}
		}
		gate.Varying[pair] = !hist.IsConstant()

		warm := contracts.DaysBetween(hist.End().AddDate(0, 0, 1), res.RunDate)
		if tc.MaxWarmupDays > 0 && warm > tc.MaxWarmupDays {
			return gate, contracts.Errorf(contracts.KindInsufficientData, contracts.StageForecasting,
				"branch %d category %d: last stored date %s is %d days before run date",
				pair.BranchID, pair.CategoryID, hist.End().Format(contracts.DateLayout), warm)
		}

		future := FutureCovariates(cal, hist.End(), warm+horizon)
		var preds []float64
		err := safely(func() error {
			var ferr error
			preds, ferr = champion.Forecast(ctx, hist, future)
			return ferr
		})
		if err != nil {
			return gate, contracts.NewError(contracts.KindNoViableModel, contracts.StageForecasting,
				fmt.Errorf("%s forecast branch %d category %d: %w", res.Champion, pair.BranchID, pair.CategoryID, err))
		}
		if len(preds) < warm {
			preds = nil
		} else {
			preds = preds[warm:]
		}

		for h, v := range preds {
			rec := contracts.ForecastRecord{
				TenantID:       res.TenantID,
				RunDate:        res.RunDate,
				HorizonDay:     h + 1,
				BranchID:       pair.BranchID,
				CategoryID:     pair.CategoryID,
				ForecastDate:   res.RunDate.AddDate(0, 0, h+1),
				ForecastDemand: clip(v),
				ModelName:      res.Champion,
				ModelVersion:   version,
			}
			if residualStd > 0 && !math.IsNaN(v) {
				lo := math.Max(0, rec.ForecastDemand-z*residualStd)
				hi := rec.ForecastDemand + z*residualStd
				rec.LowerBound, rec.UpperBound = &lo, &hi
			}
			gate.Records = append(gate.Records, rec)
		}
	}
	return gate, nil
}

// calendar 미래 날짜용 달력 (휴일 조회 실패 시 주말만)
func (t *Trainer) calendar(ctx context.Context, res *contracts.TrainingResult, from, to time.Time) *s1_signals.CalendarJoiner {
	var holidays []contracts.Holiday
	if t.holidays != nil {
		hs, err := t.holidays.HolidaysBetween(ctx, from, to)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("holiday lookup failed, future calendar uses weekends only: %v", err))
		} else {
			holidays = hs
		}
	}
	return s1_signals.NewCalendarJoiner(t.cfg.Features.WeekendDays, holidays)
}

// safely converts a panic inside fn into an error
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
