package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_IsMatchesKind(t *testing.T) {
	err := Errorf(KindEmptyScope, StageInit, "tenant %d has no branches", 7)
	wrapped := fmt.Errorf("build: %w", err)

	assert.True(t, errors.Is(wrapped, ErrEmptyScope))
	assert.False(t, errors.Is(wrapped, ErrNoViableModel))
	assert.Equal(t, KindEmptyScope, KindOf(wrapped))
	assert.Equal(t, "EmptyScope at INIT: tenant 7 has no branches", err.Error())
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindSourceUnavailable, StageGrid, cause)

	assert.ErrorIs(t, err, cause)

	var pe *PipelineError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &pe))
	assert.Equal(t, StageGrid, pe.Stage)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestErrorKind_Fatal(t *testing.T) {
	assert.False(t, KindSignalUnavailable.Fatal())
	assert.False(t, KindModelTrainingFailure.Fatal())
	assert.True(t, KindNoViableModel.Fatal())
	assert.True(t, KindIncompleteHorizon.Fatal())
	assert.True(t, KindNonFiniteForecast.Fatal())
	assert.True(t, KindInsufficientData.Fatal())
}

func TestFailureFrom(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FailureFrom(nil, StageInit, KindInvalidInput))
	})

	t.Run("pipeline error keeps its stage", func(t *testing.T) {
		f := FailureFrom(Errorf(KindIncompleteHorizon, StageForecasting, "missing day 30"), StageSelected, KindPersistenceFailure)
		require.NotNil(t, f)
		assert.Equal(t, KindIncompleteHorizon, f.Kind)
		assert.Equal(t, StageForecasting, f.Stage)
		assert.Equal(t, "missing day 30", f.Message)
	})

	t.Run("plain error uses fallback", func(t *testing.T) {
		f := FailureFrom(errors.New("tx aborted"), StagePersisted, KindPersistenceFailure)
		require.NotNil(t, f)
		assert.Equal(t, KindPersistenceFailure, f.Kind)
		assert.Equal(t, StagePersisted, f.Stage)
	})
}
