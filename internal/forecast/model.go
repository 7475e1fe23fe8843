package forecast

import (
	"context"
	"fmt"

	"github.com/wonny/fleetcast/internal/contracts"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
)

// Model 후보 수요 모델
// ⭐ SSOT: 모든 후보는 이 인터페이스만으로 학습/예측
type Model interface {
	Name() string
	Kind() contracts.ModelKind
	// Fit trains on the dataset. 데이터셋은 다른 후보와 공유되므로 수정 금지.
	Fit(ctx context.Context, data *Dataset) error
	// Forecast predicts len(future) days immediately after history.End(),
	// feeding its own predictions back as history (recursive)
	Forecast(ctx context.Context, history SeriesHistory, future []Covariates) ([]float64, error)
}

// Factory creates an untrained model
type Factory func(cfg *pipelineconfig.Config) Model

// Registry maps roster names to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns the registry of every built-in model
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ModelSeasonalNaive, func(cfg *pipelineconfig.Config) Model {
		return NewSeasonalNaive(cfg.Training.SeasonalNaive)
	})
	r.Register(ModelHoltWinters, func(cfg *pipelineconfig.Config) Model {
		return NewHoltWinters(cfg.Training.HoltWinters)
	})
	r.Register(ModelRidge, func(cfg *pipelineconfig.Config) Model {
		return NewRidge(cfg.Training.Ridge, NewDesign(cfg.Features))
	})
	r.Register(ModelGradientBoosting, func(cfg *pipelineconfig.Config) Model {
		return NewGradientBoosting(cfg.Training.Boosting, NewDesign(cfg.Features))
	})
	return r
}

// Register adds or replaces a factory
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New creates a fresh instance of name
func (r *Registry) New(name string, cfg *pipelineconfig.Config) (Model, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return f(cfg), nil
}

// Model names
const (
	ModelSeasonalNaive    = "seasonal_naive"
	ModelHoltWinters      = "holt_winters"
	ModelRidge            = "ridge_regression"
	ModelGradientBoosting = "gradient_boosting"
)
