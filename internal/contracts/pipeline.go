package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 리포트, DB row에서 이 상수를 사용해야 함
//
// Feature store 빌드:
//   INIT → GRID → SIGNALS → LAGS → SPLIT → PERSISTED → VALIDATED
//
// Forecast 학습/선택:
//   INIT → LOADED → TRAINING → EVALUATED → SELECTED → FORECASTING → PERSISTED
//
// FAILED 는 어느 비종료 단계에서든 도달 가능

// Stage represents a pipeline stage
type Stage string

const (
	StageInit   Stage = "INIT"
	StageFailed Stage = "FAILED"

	// Feature store build
	StageGrid      Stage = "GRID"
	StageSignals   Stage = "SIGNALS"
	StageLags      Stage = "LAGS"
	StageSplit     Stage = "SPLIT"
	StagePersisted Stage = "PERSISTED"
	StageValidated Stage = "VALIDATED"

	// Forecast trainer
	StageLoaded      Stage = "LOADED"
	StageTraining    Stage = "TRAINING"
	StageEvaluated   Stage = "EVALUATED"
	StageSelected    Stage = "SELECTED"
	StageForecasting Stage = "FORECASTING"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageInit:
		return "초기화"
	case StageGrid:
		return "그리드 생성"
	case StageSignals:
		return "시그널 조인"
	case StageLags:
		return "래그 피처 계산"
	case StageSplit:
		return "학습/검증 분할"
	case StagePersisted:
		return "저장 완료"
	case StageValidated:
		return "검증 완료"
	case StageLoaded:
		return "데이터 로드"
	case StageTraining:
		return "모델 학습"
	case StageEvaluated:
		return "검증셋 평가"
	case StageSelected:
		return "챔피언 선택"
	case StageForecasting:
		return "예측 생성"
	case StageFailed:
		return "실패"
	default:
		return "알 수 없음"
	}
}

// IsTerminal reports whether no further transition is allowed
func (s Stage) IsTerminal() bool {
	return s == StageFailed
}

var buildFlow = []Stage{StageInit, StageGrid, StageSignals, StageLags, StageSplit, StagePersisted, StageValidated}

var trainFlow = []Stage{StageInit, StageLoaded, StageTraining, StageEvaluated, StageSelected, StageForecasting, StagePersisted}

// BuildStages returns the feature store build stages in order
func BuildStages() []Stage {
	return append([]Stage(nil), buildFlow...)
}

// TrainStages returns the trainer state machine in order
func TrainStages() []Stage {
	return append([]Stage(nil), trainFlow...)
}

// CanTransition reports whether flow allows from → to.
// FAILED is reachable from any non-terminal stage.
func CanTransition(flow []Stage, from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	for i := 0; i+1 < len(flow); i++ {
		if flow[i] == from {
			return flow[i+1] == to
		}
	}
	return false
}

// StageTracker 단일 호출 동안의 상태 머신
type StageTracker struct {
	flow      []Stage
	current   Stage
	completed []Stage
}

// NewBuildTracker creates a tracker for a feature store build
func NewBuildTracker() *StageTracker {
	return &StageTracker{flow: buildFlow, current: StageInit}
}

// NewTrainTracker creates a tracker for a training run
func NewTrainTracker() *StageTracker {
	return &StageTracker{flow: trainFlow, current: StageInit}
}

// Current returns the current stage
func (t *StageTracker) Current() Stage {
	return t.current
}

// Completed returns stages entered after INIT, in order
func (t *StageTracker) Completed() []Stage {
	return append([]Stage(nil), t.completed...)
}

// Advance moves to the next stage. Illegal transitions panic: they are programming errors.
func (t *StageTracker) Advance(to Stage) {
	if !CanTransition(t.flow, t.current, to) {
		panic("illegal stage transition " + string(t.current) + " -> " + string(to))
	}
	t.current = to
	if to != StageFailed {
		t.completed = append(t.completed, to)
	}
}

// Fail moves to FAILED and returns the stage that was active
func (t *StageTracker) Fail() Stage {
	reached := t.current
	if !t.current.IsTerminal() {
		t.current = StageFailed
	}
	return reached
}
