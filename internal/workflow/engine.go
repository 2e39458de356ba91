// Package workflow owns the inspection state machine: who may move an
// inspection where, and how urgency follows its items.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/store"
	"github.com/vbonduro/inspectflow/internal/tenant"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// inspectionRepository is the subset of store.InspectionStore the engine requires.
type inspectionRepository interface {
	Create(ctx context.Context, insp *domain.Inspection) (*domain.Inspection, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Inspection, error)
	ApplyTransition(ctx context.Context, tenantID, id string, expectedVersion int64, fn store.TransitionFunc) (*domain.Inspection, error)
	Query(ctx context.Context, tenantID string, filter domain.InspectionFilter, page domain.PageRequest) (domain.Page[domain.InspectionSummary], error)
}

type Engine struct {
	repo   inspectionRepository
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now, e.g. for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(repo inspectionRepository, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "workflow").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type CreateRequest struct {
	Vehicle         domain.VehicleRef
	Concerns        []domain.Concern
	AssignedActorID string
}

// Create starts a new inspection in draft at version 1. The calling actor is
// recorded as its creator.
func (e *Engine) Create(ctx context.Context, s tenant.Scope, req CreateRequest) (*domain.Inspection, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	vehicle, err := validateVehicle(req.Vehicle)
	if err != nil {
		return nil, err
	}
	concerns, err := validateConcerns(req.Concerns)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	insp := &domain.Inspection{
		ID:               e.newID(),
		TenantID:         s.TenantID,
		State:            domain.StateDraft,
		Version:          1,
		Urgency:          domain.UrgencyNormal,
		Vehicle:          vehicle,
		Concerns:         concerns,
		AssignedActorID:  strings.TrimSpace(req.AssignedActorID),
		CreatedByActorID: s.ActorID,
		StateChangedAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := e.repo.Create(ctx, insp)
	if err != nil {
		return nil, fmt.Errorf("failed to create inspection: %w", err)
	}
	e.logger.Info().Str("tenant_id", s.TenantID).Str("inspection_id", created.ID).Msg("inspection created")
	return created, nil
}

// Get returns the inspection, or NotFound when it is missing or belongs to
// another tenant.
func (e *Engine) Get(ctx context.Context, s tenant.Scope, id string) (*domain.Inspection, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	insp, err := e.repo.GetByID(ctx, s.TenantID, id)
	if err != nil {
		err = fmt.Errorf("failed to get inspection: %w", err)
	}
	return tenant.Check(s, "inspection", id, insp, err)
}

// Transitioned is a committed transition.
type Transitioned struct {
	Inspection *domain.Inspection
	From       domain.State
}

// Transition moves the inspection to target when the rule table allows it
// for the calling actor and expectedVersion is current. The state, version,
// urgency and timestamps change together or not at all.
func (e *Engine) Transition(ctx context.Context, s tenant.Scope, id string, target domain.State, expectedVersion int64) (Transitioned, error) {
	if err := s.Validate(); err != nil {
		return Transitioned{}, err
	}
	if _, err := domain.ParseState(string(target)); err != nil {
		return Transitioned{}, err
	}
	if expectedVersion < 1 {
		return Transitioned{}, domain.Invalid("expectedVersion", "must be at least 1")
	}

	var from domain.State
	decide := func(cur *domain.Inspection, items []*domain.InspectionItem) (store.TransitionChange, error) {
		from = cur.State
		if !Allowed(cur.State, target, PartiesFor(cur, s.ActorID, s.Role)) {
			return store.TransitionChange{}, &domain.InvalidTransitionError{From: cur.State, To: target, Role: s.Role}
		}
		urgency := cur.Urgency
		if RecomputesUrgency(target) {
			urgency = DeriveUrgency(items)
		}
		return store.TransitionChange{State: target, Urgency: urgency, StateChangedAt: e.now().UTC()}, nil
	}

	updated, err := e.repo.ApplyTransition(ctx, s.TenantID, id, expectedVersion, decide)
	if err != nil {
		return Transitioned{}, err
	}

	e.logger.Info().
		Str("tenant_id", s.TenantID).
		Str("inspection_id", id).
		Str("from", string(from)).
		Str("to", string(updated.State)).
		Int64("version", updated.Version).
		Str("urgency", string(updated.Urgency)).
		Msg("inspection transitioned")
	return Transitioned{Inspection: updated, From: from}, nil
}

// AvailableTransitions lists the targets the calling actor may request now.
func (e *Engine) AvailableTransitions(ctx context.Context, s tenant.Scope, id string) ([]domain.State, error) {
	insp, err := e.Get(ctx, s, id)
	if err != nil {
		return nil, err
	}
	return Targets(insp.State, PartiesFor(insp, s.ActorID, s.Role)), nil
}

// Query pages through the tenant's inspections. A zero limit means the
// default; limits above the maximum are capped.
func (e *Engine) Query(ctx context.Context, s tenant.Scope, filter domain.InspectionFilter, page domain.PageRequest) (domain.Page[domain.InspectionSummary], error) {
	if err := s.Validate(); err != nil {
		return domain.Page[domain.InspectionSummary]{}, err
	}
	for _, st := range filter.States {
		if _, err := domain.ParseState(string(st)); err != nil {
			return domain.Page[domain.InspectionSummary]{}, err
		}
	}
	if filter.Urgency != "" {
		if _, err := domain.ParseUrgency(string(filter.Urgency)); err != nil {
			return domain.Page[domain.InspectionSummary]{}, err
		}
	}

	switch {
	case page.Limit < 0:
		return domain.Page[domain.InspectionSummary]{}, domain.Invalid("limit", "must not be negative")
	case page.Limit == 0:
		page.Limit = DefaultPageLimit
	case page.Limit > MaxPageLimit:
		page.Limit = MaxPageLimit
	}
	if page.Offset < 0 {
		return domain.Page[domain.InspectionSummary]{}, domain.Invalid("offset", "must not be negative")
	}

	result, err := e.repo.Query(ctx, s.TenantID, filter, page)
	if err != nil {
		return domain.Page[domain.InspectionSummary]{}, fmt.Errorf("failed to query inspections: %w", err)
	}
	return result, nil
}
