package pipelineconfig

import (
	"fmt"
	"time"
)

// Config 수요 예측 파이프라인 튜닝 설정
// ⭐ SSOT: 래그/분할/검증/후보 모델 파라미터는 여기서만
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta" validate:"required"`
	Features   Features   `yaml:"features" json:"features"`
	Split      Split      `yaml:"split" json:"split"`
	Validation Validation `yaml:"validation" json:"validation"`
	Training   Training   `yaml:"training" json:"training"`
}

// Meta 메타 정보
type Meta struct {
	PipelineID string `yaml:"pipeline_id" json:"pipeline_id" validate:"required"`
	Version    string `yaml:"version" json:"version" validate:"required"`
	Timezone   string `yaml:"timezone" json:"timezone" validate:"required"`
}

// Location resolves Meta.Timezone, falling back to UTC
func (m Meta) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Features 그리드/시그널/래그 설정
type Features struct {
	LagDays           []int   `yaml:"lag_days" json:"lag_days" validate:"required,min=1,dive,gt=0,lte=366"`
	RollingWindows    []int   `yaml:"rolling_windows" json:"rolling_windows" validate:"dive,gt=1,lte=366"`
	RollingMinPeriods int     `yaml:"rolling_min_periods" json:"rolling_min_periods" validate:"gte=1"`
	BatchDays         int     `yaml:"batch_days" json:"batch_days" validate:"gte=1,lte=366"`
	WeekendDays       []int   `yaml:"weekend_days" json:"weekend_days" validate:"dive,gte=0,lte=6"`
	MajorEventScore   float64 `yaml:"major_event_score" json:"major_event_score" validate:"gte=0"`
	ExtremeHeatC      float64 `yaml:"extreme_heat_c" json:"extreme_heat_c"`
	LagWorkers        int     `yaml:"lag_workers" json:"lag_workers" validate:"gte=1,lte=64"`
}

// MaxWindow returns the longest lag offset or rolling window in days
func (f Features) MaxWindow() int {
	m := 0
	for _, d := range f.LagDays {
		if d > m {
			m = d
		}
	}
	for _, w := range f.RollingWindows {
		if w > m {
			m = w
		}
	}
	return m
}

// LagName returns the feature name of a lag offset
func LagName(days int) string {
	return fmt.Sprintf("rentals_lag_%dd", days)
}

// RollingName returns the feature name of a rolling mean
func RollingName(window int) string {
	return fmt.Sprintf("rentals_rolling_%dd_avg", window)
}

// FeatureNames returns lag names followed by rolling names, in config order
func (f Features) FeatureNames() []string {
	names := make([]string, 0, len(f.LagDays)+len(f.RollingWindows))
	for _, d := range f.LagDays {
		names = append(names, LagName(d))
	}
	for _, w := range f.RollingWindows {
		names = append(names, RollingName(w))
	}
	return names
}

// Split 학습/검증 분할
type Split struct {
	// ValidationFraction 범위 뒤쪽을 검증셋으로 (ValidationDays 가 0일 때)
	ValidationFraction float64 `yaml:"validation_fraction" json:"validation_fraction" validate:"gt=0,lt=1"`
	ValidationDays     int     `yaml:"validation_days" json:"validation_days" validate:"gte=0"`
}

// Validation 빌드 후 검증 임계값
type Validation struct {
	MinRows              int      `yaml:"min_rows" json:"min_rows" validate:"gte=1"`
	CompletenessFloorPct float64  `yaml:"completeness_floor_pct" json:"completeness_floor_pct" validate:"gte=0,lte=100"`
	RequiredFeatures     []string `yaml:"required_features" json:"required_features"`
	MinTargetStd         float64  `yaml:"min_target_std" json:"min_target_std" validate:"gte=0"`
}

// Training 후보 모델/선택/예측 설정
type Training struct {
	HorizonDays          int      `yaml:"horizon_days" json:"horizon_days" validate:"gte=1,lte=365"`
	MinTrainRows         int      `yaml:"min_train_rows" json:"min_train_rows" validate:"gte=1"`
	MinValidationRows    int      `yaml:"min_validation_rows" json:"min_validation_rows" validate:"gte=1"`
	BaselineBoundFactor  float64  `yaml:"baseline_bound_factor" json:"baseline_bound_factor" validate:"gte=1"`
	FlatlineStdThreshold float64  `yaml:"flatline_std_threshold" json:"flatline_std_threshold" validate:"gte=0"`
	IntervalZ            float64  `yaml:"interval_z" json:"interval_z" validate:"gte=0"`
	Baseline             string   `yaml:"baseline" json:"baseline" validate:"required"`
	Candidates           []string `yaml:"candidates" json:"candidates" validate:"required,min=1,dive,required"`
	Workers              int      `yaml:"workers" json:"workers" validate:"gte=1,lte=32"`
	MaxWarmupDays        int      `yaml:"max_warmup_days" json:"max_warmup_days" validate:"gte=0"`

	SeasonalNaive SeasonalNaiveParams `yaml:"seasonal_naive" json:"seasonal_naive"`
	HoltWinters   HoltWintersParams   `yaml:"holt_winters" json:"holt_winters"`
	Ridge         RidgeParams         `yaml:"ridge_regression" json:"ridge_regression"`
	Boosting      BoostingParams      `yaml:"gradient_boosting" json:"gradient_boosting"`
}

type SeasonalNaiveParams struct {
	Period int `yaml:"period" json:"period" validate:"gte=1"`
}

type HoltWintersParams struct {
	Alpha  float64 `yaml:"alpha" json:"alpha" validate:"gt=0,lte=1"`
	Beta   float64 `yaml:"beta" json:"beta" validate:"gte=0,lte=1"`
	Gamma  float64 `yaml:"gamma" json:"gamma" validate:"gte=0,lte=1"`
	Season int     `yaml:"season" json:"season" validate:"gte=2"`
}

type RidgeParams struct {
	Lambda float64 `yaml:"lambda" json:"lambda" validate:"gte=0"`
}

type BoostingParams struct {
	Estimators   int     `yaml:"estimators" json:"estimators" validate:"gte=1,lte=2000"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth     int     `yaml:"max_depth" json:"max_depth" validate:"gte=1,lte=8"`
	MinLeaf      int     `yaml:"min_leaf" json:"min_leaf" validate:"gte=1"`
}

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	return &Config{
		Meta: Meta{
			PipelineID: "rental_demand_daily",
			Version:    "1",
			Timezone:   "Asia/Riyadh",
		},
		Features: Features{
			LagDays:           []int{1, 7, 14, 28},
			RollingWindows:    []int{7, 28},
			RollingMinPeriods: 1,
			BatchDays:         31,
			WeekendDays:       []int{int(time.Friday), int(time.Saturday)},
			MajorEventScore:   3.0,
			ExtremeHeatC:      43.0,
			LagWorkers:        4,
		},
		Split: Split{
			ValidationFraction: 0.15,
		},
		Validation: Validation{
			MinRows:              1000,
			CompletenessFloorPct: 50,
			RequiredFeatures:     []string{LagName(1), LagName(7), RollingName(7)},
			MinTargetStd:         0.1,
		},
		Training: Training{
			HorizonDays:          30,
			MinTrainRows:         100,
			MinValidationRows:    14,
			BaselineBoundFactor:  1.5,
			FlatlineStdThreshold: 0.1,
			IntervalZ:            1.96,
			Baseline:             "seasonal_naive",
			Candidates:           []string{"seasonal_naive", "holt_winters", "ridge_regression", "gradient_boosting"},
			Workers:              4,
			MaxWarmupDays:        120,
			SeasonalNaive:        SeasonalNaiveParams{Period: 7},
			HoltWinters:          HoltWintersParams{Alpha: 0.3, Beta: 0.1, Gamma: 0.2, Season: 7},
			Ridge:                RidgeParams{Lambda: 1.0},
			Boosting:             BoostingParams{Estimators: 120, LearningRate: 0.1, MaxDepth: 3, MinLeaf: 10},
		},
	}
}
