package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/inspectflow/internal/db"
	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/store"
	"github.com/vbonduro/inspectflow/internal/tenant"
)

var (
	mechanic = tenant.Scope{TenantID: "shop-1", ActorID: "tech-1", Role: domain.RoleMechanic}
	manager  = tenant.Scope{TenantID: "shop-1", ActorID: "boss", Role: domain.RoleManager}
	system   = tenant.Scope{TenantID: "shop-1", ActorID: "scheduler", Role: domain.RoleSystem}
	outsider = tenant.Scope{TenantID: "shop-2", ActorID: "tech-1", Role: domain.RoleManager}
)

// tickClock advances one second per call so timestamps are strictly ordered.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	engine *Engine
	db     *sql.DB
	items  *store.ItemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	clock := &tickClock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	n := 0
	engine := NewEngine(store.NewInspectionStore(d), zerolog.Nop(),
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("insp-%d", n) }),
	)
	return &fixture{engine: engine, db: d, items: store.NewItemStore(d)}
}

func (f *fixture) create(t *testing.T) *domain.Inspection {
	t.Helper()
	insp, err := f.engine.Create(context.Background(), mechanic, CreateRequest{
		Vehicle:  domain.VehicleRef{VIN: "1HGCM82633A004352", Year: 2003, Make: "Honda", Model: "Accord"},
		Concerns: []domain.Concern{{Description: "Squeal when braking", Category: "brakes"}},
	})
	require.NoError(t, err)
	return insp
}

func (f *fixture) addItem(t *testing.T, insp *domain.Inspection, id string, cond domain.Condition) {
	t.Helper()
	now := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)
	_, err := f.items.Create(context.Background(), &domain.InspectionItem{
		ID: id, TenantID: insp.TenantID, InspectionID: insp.ID, Name: id,
		Condition: cond, ConditionSource: domain.ConditionSourceManual, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	assert.Equal(t, "insp-1", insp.ID)
	assert.Equal(t, "shop-1", insp.TenantID)
	assert.Equal(t, domain.StateDraft, insp.State)
	assert.Equal(t, int64(1), insp.Version)
	assert.Equal(t, domain.UrgencyNormal, insp.Urgency)
	assert.Equal(t, "tech-1", insp.CreatedByActorID)
	require.Len(t, insp.Concerns, 1)
	assert.Equal(t, "Squeal when braking", insp.Concerns[0].Description)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		scope tenant.Scope
		req   CreateRequest
	}{
		{"unknown role", tenant.Scope{TenantID: "shop-1", ActorID: "x", Role: "owner"}, CreateRequest{Vehicle: domain.VehicleRef{Make: "Ford"}}},
		{"no tenant", tenant.Scope{ActorID: "x", Role: domain.RoleMechanic}, CreateRequest{Vehicle: domain.VehicleRef{Make: "Ford"}}},
		{"short vin", mechanic, CreateRequest{Vehicle: domain.VehicleRef{VIN: "1HGCM826"}}},
		{"vin with letter O", mechanic, CreateRequest{Vehicle: domain.VehicleRef{VIN: "1HGCM82633AO04352"}}},
		{"year out of range", mechanic, CreateRequest{Vehicle: domain.VehicleRef{Make: "Ford", Year: 1700}}},
		{"negative mileage", mechanic, CreateRequest{Vehicle: domain.VehicleRef{Make: "Ford", Mileage: -1}}},
		{"unidentifiable vehicle", mechanic, CreateRequest{Vehicle: domain.VehicleRef{Model: "F-150"}}},
		{"blank concern", mechanic, CreateRequest{Vehicle: domain.VehicleRef{Make: "Ford"}, Concerns: []domain.Concern{{Description: "  "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(ctx, tt.scope, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateNormalisesVehicle(t *testing.T) {
	f := newFixture(t)
	insp, err := f.engine.Create(context.Background(), mechanic, CreateRequest{
		Vehicle:         domain.VehicleRef{VIN: " 1hgcm82633a004352 ", LicensePlate: "abc 123"},
		AssignedActorID: "tech-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "1HGCM82633A004352", insp.Vehicle.VIN)
	assert.Equal(t, "ABC 123", insp.Vehicle.LicensePlate)
	assert.Equal(t, "tech-7", insp.AssignedActorID)
}

func TestTransitionFromDraft(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	res, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, res.From)
	assert.Equal(t, domain.StateInProgress, res.Inspection.State)
	assert.Equal(t, int64(2), res.Inspection.Version)
	assert.True(t, res.Inspection.StateChangedAt.After(insp.StateChangedAt))
}

func TestTransitionStaleVersion(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	_, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
	require.NoError(t, err)

	_, err = f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Expected)
	assert.Equal(t, int64(2), conflict.Actual)
}

func TestTransitionNotInRuleTable(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	_, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StatePendingReview, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.engine.Get(context.Background(), mechanic, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, got.State)
	assert.Equal(t, int64(1), got.Version, "a rejected transition must not bump the version")
}

func TestTransitionRecomputesUrgency(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)
	f.addItem(t, insp, "brakes", domain.ConditionNeedsImmediate)
	f.addItem(t, insp, "wipers", domain.ConditionGood)
	f.addItem(t, insp, "lights", domain.ConditionGood)

	res, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyCritical, res.Inspection.Urgency)
}

func TestTransitionKeepsUrgencyOnNonQualifyingTargets(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	_, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
	require.NoError(t, err)

	f.addItem(t, insp, "tires", domain.ConditionPoor)

	res, err := f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StatePendingReview, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyNormal, res.Inspection.Urgency, "pending_review does not recompute")

	res, err = f.engine.Transition(context.Background(), manager, insp.ID, domain.StateApproved, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyHigh, res.Inspection.Urgency)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)
	ctx := context.Background()

	steps := []struct {
		scope tenant.Scope
		to    domain.State
	}{
		{mechanic, domain.StateInProgress},
		{mechanic, domain.StatePendingReview},
		{manager, domain.StateRejected},
		{mechanic, domain.StateInProgress},
		{mechanic, domain.StatePendingReview},
		{manager, domain.StateApproved},
		{system, domain.StateSentToCustomer},
		{manager, domain.StateCompleted},
	}

	version := insp.Version
	for _, step := range steps {
		res, err := f.engine.Transition(ctx, step.scope, insp.ID, step.to, version)
		require.NoError(t, err, "to %s", step.to)
		assert.Equal(t, version+1, res.Inspection.Version, "version advances by exactly one")
		assert.Equal(t, step.to, res.Inspection.State)
		version = res.Inspection.Version
	}

	_, err := f.engine.Transition(ctx, manager, insp.ID, domain.StateArchived, version)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "completed is terminal")
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for n := 0; n < racers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 1)
		}(n)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, domain.ErrVersionConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, racers-1, conflicted)

	got, err := f.engine.Get(context.Background(), mechanic, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)
	ctx := context.Background()

	_, err := f.engine.Get(ctx, outsider, insp.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Transition(ctx, outsider, insp.ID, domain.StateArchived, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, missing := f.engine.Get(ctx, mechanic, "insp-404")
	assert.ErrorIs(t, missing, domain.ErrNotFound)
}

func TestTransitionValidation(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)

	_, err := f.engine.Transition(context.Background(), mechanic, insp.ID, "finished", 1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Transition(context.Background(), mechanic, insp.ID, domain.StateInProgress, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAvailableTransitions(t *testing.T) {
	f := newFixture(t)
	insp := f.create(t)
	ctx := context.Background()

	got, err := f.engine.AvailableTransitions(ctx, mechanic, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.State{domain.StateInProgress, domain.StateArchived}, got)

	got, err = f.engine.AvailableTransitions(ctx, manager, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.State{domain.StateArchived}, got)

	stranger := tenant.Scope{TenantID: "shop-1", ActorID: "tech-9", Role: domain.RoleMechanic}
	got, err = f.engine.AvailableTransitions(ctx, stranger, insp.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.create(t)
	f.create(t)

	_, err := f.engine.Transition(ctx, mechanic, first.ID, domain.StateInProgress, 1)
	require.NoError(t, err)

	page, err := f.engine.Query(ctx, mechanic, domain.InspectionFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	require.Len(t, page.Items, 3)
	assert.Equal(t, first.ID, page.Items[0].ID, "most recently updated first")

	page, err = f.engine.Query(ctx, mechanic, domain.InspectionFilter{States: []domain.State{domain.StateDraft}}, domain.PageRequest{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	page, err = f.engine.Query(ctx, mechanic, domain.InspectionFilter{}, domain.PageRequest{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, page.Limit)

	page, err = f.engine.Query(ctx, outsider, domain.InspectionFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Query(ctx, mechanic, domain.InspectionFilter{States: []domain.State{"lost"}}, domain.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Query(ctx, mechanic, domain.InspectionFilter{Urgency: "meh"}, domain.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Query(ctx, mechanic, domain.InspectionFilter{}, domain.PageRequest{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Query(ctx, mechanic, domain.InspectionFilter{}, domain.PageRequest{Offset: -5})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
