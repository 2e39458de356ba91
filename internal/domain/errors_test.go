package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Invalid("text", "must not be empty"), ErrValidation},
		{"not found", NotFound("inspection", "abc"), ErrNotFound},
		{"conflict", &VersionConflictError{ID: "abc", Expected: 1, Actual: 2}, ErrVersionConflict},
		{"transition", &InvalidTransitionError{From: StateDraft, To: StatePendingReview, Role: RoleMechanic}, ErrInvalidTransition},
		{"queue", &QueueProcessingError{TaskID: "t1", Attempt: 1, Err: errors.New("boom")}, ErrQueueProcessing},
		{"internal", NewInternalError("corr-1", errors.New("disk full")), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := errors.New("sqlite: database is locked")
	err := NewInternalError("corr-42", cause)

	assert.NotContains(t, err.Error(), "sqlite")
	assert.Contains(t, err.Error(), "corr-42")
	assert.Equal(t, cause, err.Cause())
}

func TestIsCallerFacing(t *testing.T) {
	assert.True(t, IsCallerFacing(NotFound("inspection", "x")))
	assert.True(t, IsCallerFacing(Invalid("role", "unknown")))
	assert.False(t, IsCallerFacing(errors.New("raw driver error")))
}

func TestParseEnums(t *testing.T) {
	_, err := ParseState("teleported")
	assert.ErrorIs(t, err, ErrValidation)

	st, err := ParseState("pending_review")
	assert.NoError(t, err)
	assert.Equal(t, StatePendingReview, st)

	p, err := ParsePriority("")
	assert.NoError(t, err)
	assert.Equal(t, PriorityMedium, p)

	_, err = ParseRole("janitor")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseCondition("meh")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTerminalStates(t *testing.T) {
	for _, s := range States {
		want := s == StateCompleted || s == StateArchived
		assert.Equal(t, want, s.IsTerminal(), string(s))
	}
}
