package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Every typed error below unwraps to one of them.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrQueueProcessing   = errors.New("queue processing failed")
	ErrInternal          = errors.New("internal error")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError deliberately carries no tenant detail: a foreign entity and a
// missing one must be indistinguishable.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("inspection %s: expected version %d, current version is %d", e.ID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

type InvalidTransitionError struct {
	From State
	To   State
	Role Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s not allowed for role %s", e.From, e.To, e.Role)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type QueueProcessingError struct {
	TaskID  string
	Attempt int
	Err     error
}

func (e *QueueProcessingError) Error() string {
	return fmt.Sprintf("task %s attempt %d: %v", e.TaskID, e.Attempt, e.Err)
}

func (e *QueueProcessingError) Unwrap() []error { return []error{ErrQueueProcessing, e.Err} }

// InternalError hides its cause from Error(); the cause is only reachable
// through Cause for logging.
type InternalError struct {
	CorrelationID string
	cause         error
}

func NewInternalError(correlationID string, cause error) *InternalError {
	return &InternalError{CorrelationID: correlationID, cause: cause}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (correlation id %s)", e.CorrelationID)
}

func (e *InternalError) Unwrap() error { return ErrInternal }

func (e *InternalError) Cause() error { return e.cause }

// IsCallerFacing reports whether err belongs to the caller-visible taxonomy
// and can be returned without translation.
func IsCallerFacing(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInternal)
}
