package contracts

import "time"

// ForecastRecord 일별 수요 예측 (run_date 기준 horizon_day 1..H)
// ⭐ SSOT: demand_forecasts 테이블의 한 행
type ForecastRecord struct {
	TenantID       int64     `json:"tenant_id"`
	RunDate        time.Time `json:"run_date"`
	HorizonDay     int       `json:"horizon_day"`
	BranchID       int64     `json:"branch_id"`
	CategoryID     int64     `json:"category_id"`
	ForecastDate   time.Time `json:"forecast_date"`
	ForecastDemand float64   `json:"forecast_demand"`
	LowerBound     *float64  `json:"lower_bound,omitempty"`
	UpperBound     *float64  `json:"upper_bound,omitempty"`
	ModelName      string    `json:"model_name"`
	ModelVersion   string    `json:"model_version"`
}

// Series returns the record's series key
func (f ForecastRecord) Series() SeriesKey {
	return SeriesKey{BranchID: f.BranchID, CategoryID: f.CategoryID}
}

// ModelKind baseline 또는 learned
type ModelKind string

const (
	ModelKindBaseline ModelKind = "baseline"
	ModelKindLearned  ModelKind = "learned"
)

// ModelMetrics 검증셋 평가 지표
type ModelMetrics struct {
	MAE   float64 `json:"mae"`
	MAPE  float64 `json:"mape"` // %, 실측 0 제외
	SMAPE float64 `json:"smape"`
	RMSE  float64 `json:"rmse"`
	// ResidualStd 예측 구간 계산용
	ResidualStd float64 `json:"residual_std"`
	Rows        int     `json:"rows"`
}

// ModelRun 후보 모델 1회 학습/평가 결과
type ModelRun struct {
	ModelName       string        `json:"model_name"`
	Kind            ModelKind     `json:"kind"`
	TrainingSeconds *float64      `json:"training_seconds"` // 실패 시 nil
	Metrics         *ModelMetrics `json:"metrics,omitempty"`
	Failure         *Failure      `json:"failure,omitempty"`
}

// Succeeded reports whether the candidate trained and evaluated
func (m ModelRun) Succeeded() bool {
	return m.Failure == nil && m.Metrics != nil
}

// TrainingResult 학습/선택/예측 1회 실행 결과
// ⭐ SSOT: 트레이너 리포트 구조는 여기서만
type TrainingResult struct {
	RunID      string    `json:"run_id"`
	TenantID   int64     `json:"tenant_id"`
	RunDate    time.Time `json:"run_date"`
	ConfigHash string    `json:"config_hash"`
	StartedAt  time.Time `json:"started_at"`

	Stage           Stage    `json:"stage"`
	CompletedStages []Stage  `json:"completed_stages"`
	Failure         *Failure `json:"failure,omitempty"`

	TrainRows      int `json:"train_rows"`
	ValidationRows int `json:"validation_rows"`

	TrainedModels []string   `json:"trained_models"`
	ModelRuns     []ModelRun `json:"model_runs"`
	Champion      string     `json:"champion,omitempty"`
	BaselineMAE   *float64   `json:"baseline_mae,omitempty"`
	ChampionMAE   *float64   `json:"champion_mae,omitempty"`

	Horizon            int      `json:"horizon"`
	ForecastsGenerated int      `json:"forecasts_generated"`
	Warnings           []string `json:"warnings,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether forecasts were persisted
func (r *TrainingResult) Succeeded() bool {
	return r != nil && r.Failure == nil && r.Stage == StagePersisted
}

// RunFor returns the ModelRun for name
func (r *TrainingResult) RunFor(name string) (ModelRun, bool) {
	for _, m := range r.ModelRuns {
		if m.ModelName == name {
			return m, true
		}
	}
	return ModelRun{}, false
}
