package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind 파이프라인 오류 분류
// ⭐ SSOT: 오류 종류는 여기서만 정의
type ErrorKind string

const (
	KindEmptyScope           ErrorKind = "EmptyScope"
	KindSignalUnavailable    ErrorKind = "SignalUnavailable"
	KindInsufficientData     ErrorKind = "InsufficientData"
	KindModelTrainingFailure ErrorKind = "ModelTrainingFailure"
	KindNoViableModel        ErrorKind = "NoViableModel"
	KindIncompleteHorizon    ErrorKind = "IncompleteHorizon"
	KindNonFiniteForecast    ErrorKind = "NonFiniteForecast"
	KindFlatlineForecast     ErrorKind = "FlatlineForecast"
	KindInvalidInput         ErrorKind = "InvalidInput"
	KindSourceUnavailable    ErrorKind = "SourceUnavailable"
	KindFeatureStoreNotReady ErrorKind = "FeatureStoreNotReady"
	KindPersistenceFailure   ErrorKind = "PersistenceFailure"
)

// Fatal reports whether the kind aborts the enclosing invocation
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindSignalUnavailable, KindModelTrainingFailure:
		return false
	default:
		return true
	}
}

// Sentinels for errors.Is
var (
	ErrEmptyScope           = &PipelineError{Kind: KindEmptyScope}
	ErrSignalUnavailable    = &PipelineError{Kind: KindSignalUnavailable}
	ErrInsufficientData     = &PipelineError{Kind: KindInsufficientData}
	ErrModelTrainingFailure = &PipelineError{Kind: KindModelTrainingFailure}
	ErrNoViableModel        = &PipelineError{Kind: KindNoViableModel}
	ErrIncompleteHorizon    = &PipelineError{Kind: KindIncompleteHorizon}
	ErrNonFiniteForecast    = &PipelineError{Kind: KindNonFiniteForecast}
	ErrFlatlineForecast     = &PipelineError{Kind: KindFlatlineForecast}
	ErrInvalidInput         = &PipelineError{Kind: KindInvalidInput}
	ErrSourceUnavailable    = &PipelineError{Kind: KindSourceUnavailable}
	ErrFeatureStoreNotReady = &PipelineError{Kind: KindFeatureStoreNotReady}
	ErrPersistenceFailure   = &PipelineError{Kind: KindPersistenceFailure}
)

// PipelineError carries the failure kind and the stage it happened in
type PipelineError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

// NewError wraps err with kind and stage
func NewError(kind ErrorKind, stage Stage, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds a PipelineError from a format string
func Errorf(kind ErrorKind, stage Stage, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func (e *PipelineError) Error() string {
	switch {
	case e.Err == nil && e.Stage == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	case e.Stage == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches on kind so sentinels work with errors.Is
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from err, or "" when err is not a PipelineError
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Failure 리포트에 기록되는 실패 요약
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
}

// FailureFrom converts err into a report failure.
// Errors that are not PipelineErrors are reported under fallback.
func FailureFrom(err error, stage Stage, fallback ErrorKind) *Failure {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		st := pe.Stage
		if st == "" {
			st = stage
		}
		msg := pe.Error()
		if pe.Err != nil {
			msg = pe.Err.Error()
		}
		return &Failure{Kind: pe.Kind, Stage: st, Message: msg}
	}
	return &Failure{Kind: fallback, Stage: stage, Message: err.Error()}
}
