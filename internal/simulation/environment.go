package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/internal/memstore"
	"github.com/wonny/fleetcast/internal/pipelineconfig"
	"github.com/wonny/fleetcast/internal/s1_signals"
	"github.com/wonny/fleetcast/internal/s2_features"
	"github.com/wonny/fleetcast/pkg/logger"
)

// Environment 합성 소스 + 인메모리 저장소 위에 조립된 파이프라인
type Environment struct {
	Generator    *Generator
	Store        *memstore.Store
	Builder      *s2_features.Builder
	Trainer      *forecast.Trainer
	Orchestrator *brain.Orchestrator
}

// NewEnvironment wires the pipeline against gen and a fresh memstore.
// 시계는 시뮬레이션 마지막 날 다음날로 고정.
func NewEnvironment(gen *Generator, cfg *pipelineconfig.Config, log *logger.Logger) (*Environment, error) {
	store := memstore.New()
	clock := func() time.Time { return gen.End().AddDate(0, 0, 1) }

	joiner := s1_signals.NewJoiner(gen, gen, gen, cfg.Features, log.Zerolog())
	builder := s2_features.NewBuilder(store, store, gen, gen, joiner, cfg, log).WithClock(clock)

	publisher := forecast.NewPublisher(store, nil, cfg.Training.FlatlineStdThreshold, log.Zerolog())
	trainer, err := forecast.NewTrainer(store, store, store, gen, gen, publisher, cfg, log.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("create trainer: %w", err)
	}
	trainer.WithClock(clock)

	env := &Environment{
		Generator: gen,
		Store:     store,
		Builder:   builder,
		Trainer:   trainer,
	}
	env.Orchestrator = brain.NewOrchestrator(brain.FactoryFunc(func(ctx context.Context) (*brain.Components, error) {
		return &brain.Components{Builder: builder, Trainer: trainer}, nil
	}), log)
	return env, nil
}

// Run builds the whole simulated range and forecasts from its last day
func (e *Environment) Run(ctx context.Context) (*brain.RunResult, error) {
	return e.Orchestrator.Run(ctx, brain.RunConfig{
		TenantID:  e.Generator.Options().TenantID,
		StartDate: e.Generator.Start(),
		EndDate:   e.Generator.End(),
		RunDate:   e.Generator.End(),
	})
}
