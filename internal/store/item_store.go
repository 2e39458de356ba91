package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vbonduro/inspectflow/internal/domain"
)

const itemColumns = `id, tenant_id, inspection_id, name, category, condition, condition_source,
	condition_updated_at, created_at, updated_at`

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func (s *ItemStore) Create(ctx context.Context, item *domain.InspectionItem) (*domain.InspectionItem, error) {
	var condAt sql.NullTime
	if item.ConditionUpdatedAt != nil {
		condAt = sql.NullTime{Time: item.ConditionUpdatedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inspection_items (id, tenant_id, inspection_id, name, category, condition,
			condition_source, condition_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.TenantID, item.InspectionID, item.Name, item.Category, item.Condition,
		item.ConditionSource, condAt, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return s.GetByID(ctx, item.TenantID, item.ID)
}

// GetByID returns nil, nil when no item with id exists for tenantID.
func (s *ItemStore) GetByID(ctx context.Context, tenantID, id string) (*domain.InspectionItem, error) {
	return getItem(ctx, s.db, tenantID, id)
}

func getItem(ctx context.Context, q dbtx, tenantID, id string) (*domain.InspectionItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM inspection_items WHERE id = ? AND tenant_id = ?
	`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func scanItem(row rowScanner) (*domain.InspectionItem, error) {
	item := &domain.InspectionItem{}
	var condAt sql.NullTime
	err := row.Scan(&item.ID, &item.TenantID, &item.InspectionID, &item.Name, &item.Category,
		&item.Condition, &item.ConditionSource, &condAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if condAt.Valid {
		t := condAt.Time
		item.ConditionUpdatedAt = &t
	}
	return item, nil
}

func (s *ItemStore) ListByInspectionID(ctx context.Context, tenantID, inspectionID string) ([]*domain.InspectionItem, error) {
	return listItems(ctx, s.db, tenantID, inspectionID)
}

func listItems(ctx context.Context, q dbtx, tenantID, inspectionID string) ([]*domain.InspectionItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM inspection_items
		WHERE inspection_id = ? AND tenant_id = ? ORDER BY created_at ASC, rowid ASC
	`, inspectionID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeRows(rows)

	var items []*domain.InspectionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// SetCondition records a condition write stamped at writtenAt. Writes older
// than the stored stamp lose: the returned bool is false and the item is
// returned unchanged.
func (s *ItemStore) SetCondition(ctx context.Context, tenantID, id string, cond domain.Condition, source domain.ConditionSource, writtenAt time.Time) (*domain.InspectionItem, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	item, err := getItem(ctx, tx, tenantID, id)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, domain.NotFound("item", id)
	}
	if item.ConditionUpdatedAt != nil && writtenAt.Before(*item.ConditionUpdatedAt) {
		return item, false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE inspection_items
		SET condition = ?, condition_source = ?, condition_updated_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, cond, source, writtenAt.UTC(), writtenAt.UTC(), id, tenantID); err != nil {
		return nil, false, fmt.Errorf("failed to update item condition: %w", err)
	}

	updated, err := getItem(ctx, tx, tenantID, id)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit item condition: %w", err)
	}
	return updated, true, nil
}
