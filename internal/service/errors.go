package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/logging"
	"github.com/vbonduro/inspectflow/internal/tenant"
)

// fail is the single exit for service errors. Errors from the caller-facing
// taxonomy pass through; anything else is logged with its cause, reported and
// replaced by an InternalError carrying only a correlation id.
func (s *InspectionService) fail(operation string, sc tenant.Scope, err error) error {
	if domain.IsCallerFacing(err) {
		return err
	}

	id := uuid.NewString()
	l := logging.WithTenant(s.logger, sc.TenantID, sc.ActorID)
	l.Error().Err(err).
		Str("operation", operation).
		Str("correlation_id", id).
		Msg("internal error")
	s.metrics.RecordInternalError(operation)
	if s.reporter != nil {
		s.reporter.CaptureInternal(operation, id, err)
	}
	return domain.NewInternalError(id, err)
}

// reason labels a rejected transition for metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal"
	}
}
