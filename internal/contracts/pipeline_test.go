package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_TrainFlow(t *testing.T) {
	flow := TrainStages()

	tests := []struct {
		name string
		from Stage
		to   Stage
		want bool
	}{
		{"init to loaded", StageInit, StageLoaded, true},
		{"loaded to training", StageLoaded, StageTraining, true},
		{"skip evaluation", StageTraining, StageSelected, false},
		{"backwards", StageSelected, StageEvaluated, false},
		{"forecasting to persisted", StageForecasting, StagePersisted, true},
		{"any to failed", StageEvaluated, StageFailed, true},
		{"init to failed", StageInit, StageFailed, true},
		{"failed is terminal", StageFailed, StageLoaded, false},
		{"persisted has no successor", StagePersisted, StageLoaded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(flow, tt.from, tt.to))
		})
	}
}

func TestStageTracker_HappyPath(t *testing.T) {
	tr := NewTrainTracker()
	for _, s := range TrainStages()[1:] {
		tr.Advance(s)
	}

	assert.Equal(t, StagePersisted, tr.Current())
	assert.Equal(t, TrainStages()[1:], tr.Completed())
}

func TestStageTracker_FailRecordsReachedStage(t *testing.T) {
	tr := NewTrainTracker()
	tr.Advance(StageLoaded)
	tr.Advance(StageTraining)

	reached := tr.Fail()
	assert.Equal(t, StageTraining, reached)
	assert.Equal(t, StageFailed, tr.Current())
	assert.Equal(t, []Stage{StageLoaded, StageTraining}, tr.Completed())
}

func TestStageTracker_IllegalTransitionPanics(t *testing.T) {
	tr := NewBuildTracker()
	require.Panics(t, func() { tr.Advance(StageLags) })
}

func TestBuildStagesOrder(t *testing.T) {
	stages := BuildStages()
	require.Len(t, stages, 7)
	assert.Equal(t, StageInit, stages[0])
	assert.Equal(t, StageValidated, stages[len(stages)-1])
	for _, s := range stages {
		assert.NotEqual(t, "알 수 없음", s.Description(), s)
	}
}
