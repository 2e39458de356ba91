package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vbonduro/inspectflow/internal/domain"
)

const inspectionColumns = `id, tenant_id, state, version, urgency,
	vehicle_vin, vehicle_year, vehicle_make, vehicle_model, vehicle_mileage, vehicle_plate,
	assigned_actor_id, created_by_actor_id, state_changed_at, created_at, updated_at`

type InspectionStore struct {
	db *sql.DB
}

func NewInspectionStore(db *sql.DB) *InspectionStore {
	return &InspectionStore{db: db}
}

// Create inserts the inspection together with its concerns in one transaction.
func (s *InspectionStore) Create(ctx context.Context, insp *domain.Inspection) (*domain.Inspection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	v := insp.Vehicle
	_, err = tx.ExecContext(ctx, `
		INSERT INTO inspections (id, tenant_id, state, version, urgency,
			vehicle_vin, vehicle_year, vehicle_make, vehicle_model, vehicle_mileage, vehicle_plate,
			assigned_actor_id, created_by_actor_id, state_changed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, insp.ID, insp.TenantID, insp.State, insp.Version, insp.Urgency,
		v.VIN, v.Year, v.Make, v.Model, v.Mileage, v.LicensePlate,
		insp.AssignedActorID, insp.CreatedByActorID, insp.StateChangedAt.UTC(), insp.CreatedAt.UTC(), insp.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create inspection: %w", err)
	}

	for _, c := range insp.Concerns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inspection_concerns (inspection_id, description, category) VALUES (?, ?, ?)
		`, insp.ID, c.Description, c.Category); err != nil {
			return nil, fmt.Errorf("failed to create concern: %w", err)
		}
	}

	created, err := getInspection(ctx, tx, insp.TenantID, insp.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit inspection: %w", err)
	}
	return created, nil
}

// GetByID returns nil, nil when no inspection with id exists for tenantID.
func (s *InspectionStore) GetByID(ctx context.Context, tenantID, id string) (*domain.Inspection, error) {
	return getInspection(ctx, s.db, tenantID, id)
}

func getInspection(ctx context.Context, q dbtx, tenantID, id string) (*domain.Inspection, error) {
	insp, err := scanInspection(q.QueryRowContext(ctx, `
		SELECT `+inspectionColumns+` FROM inspections WHERE id = ? AND tenant_id = ?
	`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}

	concerns, err := listConcerns(ctx, q, id)
	if err != nil {
		return nil, err
	}
	insp.Concerns = concerns
	return insp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (*domain.Inspection, error) {
	insp := &domain.Inspection{}
	v := &insp.Vehicle
	err := row.Scan(&insp.ID, &insp.TenantID, &insp.State, &insp.Version, &insp.Urgency,
		&v.VIN, &v.Year, &v.Make, &v.Model, &v.Mileage, &v.LicensePlate,
		&insp.AssignedActorID, &insp.CreatedByActorID, &insp.StateChangedAt, &insp.CreatedAt, &insp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return insp, nil
}

func listConcerns(ctx context.Context, q dbtx, inspectionID string) ([]domain.Concern, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, description, category FROM inspection_concerns
		WHERE inspection_id = ? ORDER BY id ASC
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list concerns: %w", err)
	}
	defer closeRows(rows)

	var concerns []domain.Concern
	for rows.Next() {
		var c domain.Concern
		if err := rows.Scan(&c.ID, &c.Description, &c.Category); err != nil {
			return nil, fmt.Errorf("failed to scan concern: %w", err)
		}
		concerns = append(concerns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concerns: %w", err)
	}
	return concerns, nil
}

// TransitionChange is what a TransitionFunc decides. Version is not part of
// it: the store always advances the version by exactly one.
type TransitionChange struct {
	State          domain.State
	Urgency        domain.Urgency
	StateChangedAt time.Time
}

// TransitionFunc inspects the current row and its items inside the
// transaction. It must not perform I/O.
type TransitionFunc func(cur *domain.Inspection, items []*domain.InspectionItem) (TransitionChange, error)

// ApplyTransition runs the read, version check, decide and conditional write
// as one transaction. The update is guarded on the expected version, so of
// several writers holding the same version exactly one commits.
func (s *InspectionStore) ApplyTransition(ctx context.Context, tenantID, id string, expectedVersion int64, fn TransitionFunc) (*domain.Inspection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	cur, err := getInspection(ctx, tx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.NotFound("inspection", id)
	}
	if cur.Version != expectedVersion {
		return nil, &domain.VersionConflictError{ID: id, Expected: expectedVersion, Actual: cur.Version}
	}

	items, err := listItems(ctx, tx, tenantID, id)
	if err != nil {
		return nil, err
	}

	change, err := fn(cur, items)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE inspections
		SET state = ?, urgency = ?, version = version + 1, state_changed_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`, change.State, change.Urgency, change.StateChangedAt.UTC(), change.StateChangedAt.UTC(), id, tenantID, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update inspection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, &domain.VersionConflictError{ID: id, Expected: expectedVersion, Actual: expectedVersion + 1}
	}

	updated, err := getInspection(ctx, tx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return updated, nil
}

// Query returns one page of summaries for tenantID, newest update first.
func (s *InspectionStore) Query(ctx context.Context, tenantID string, filter domain.InspectionFilter, page domain.PageRequest) (domain.Page[domain.InspectionSummary], error) {
	where := []string{"i.tenant_id = ?"}
	args := []any{tenantID}

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for n, st := range filter.States {
			placeholders[n] = "?"
			args = append(args, st)
		}
		where = append(where, "i.state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Urgency != "" {
		where = append(where, "i.urgency = ?")
		args = append(args, filter.Urgency)
	}
	if filter.AssignedActorID != "" {
		where = append(where, "i.assigned_actor_id = ?")
		args = append(args, filter.AssignedActorID)
	}
	if filter.CreatedByActor != "" {
		where = append(where, "i.created_by_actor_id = ?")
		args = append(args, filter.CreatedByActor)
	}
	clause := strings.Join(where, " AND ")

	out := domain.Page[domain.InspectionSummary]{Limit: page.Limit, Offset: page.Offset}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections i WHERE `+clause, args...).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("failed to count inspections: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.state, i.urgency, i.version,
			i.vehicle_vin, i.vehicle_year, i.vehicle_make, i.vehicle_model, i.vehicle_mileage, i.vehicle_plate,
			i.assigned_actor_id, i.state_changed_at, i.updated_at,
			(SELECT COUNT(*) FROM inspection_items it WHERE it.inspection_id = i.id)
		FROM inspections i
		WHERE `+clause+`
		ORDER BY i.updated_at DESC, i.id ASC
		LIMIT ? OFFSET ?
	`, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return out, fmt.Errorf("failed to query inspections: %w", err)
	}
	defer closeRows(rows)

	out.Items = make([]domain.InspectionSummary, 0, page.Limit)
	for rows.Next() {
		var sum domain.InspectionSummary
		v := &sum.Vehicle
		if err := rows.Scan(&sum.ID, &sum.State, &sum.Urgency, &sum.Version,
			&v.VIN, &v.Year, &v.Make, &v.Model, &v.Mileage, &v.LicensePlate,
			&sum.AssignedActorID, &sum.StateChangedAt, &sum.UpdatedAt, &sum.ItemCount); err != nil {
			return out, fmt.Errorf("failed to scan inspection summary: %w", err)
		}
		out.Items = append(out.Items, sum)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("error iterating inspections: %w", err)
	}

	return out, nil
}
