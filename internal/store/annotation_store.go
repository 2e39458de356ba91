package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vbonduro/inspectflow/internal/domain"
)

const annotationColumns = `id, tenant_id, inspection_id, item_id, task_id, raw_text, audio_ref,
	audio_duration_seconds, component, condition_candidate, measurement_value, measurement_unit,
	finding_action, confidence, source, warnings, created_by, created_at`

// AnnotationStore is append-only: annotations are never updated once written.
type AnnotationStore struct {
	db *sql.DB
}

func NewAnnotationStore(db *sql.DB) *AnnotationStore {
	return &AnnotationStore{db: db}
}

func (s *AnnotationStore) Create(ctx context.Context, a *domain.VoiceAnnotation) (*domain.VoiceAnnotation, error) {
	warnings := a.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode warnings: %w", err)
	}

	var mValue sql.NullFloat64
	var mUnit domain.Unit
	if a.Measurement != nil {
		mValue = sql.NullFloat64{Float64: a.Measurement.Value, Valid: true}
		mUnit = a.Measurement.Unit
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO voice_annotations (id, tenant_id, inspection_id, item_id, task_id, raw_text, audio_ref,
			audio_duration_seconds, component, condition_candidate, measurement_value, measurement_unit,
			finding_action, confidence, source, warnings, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TenantID, a.InspectionID, nullString(a.ItemID), a.TaskID, a.RawText, a.AudioRef,
		nullFloat(a.AudioDurationSeconds), a.Component, a.ConditionCandidate, mValue, mUnit,
		a.Action, a.Confidence, a.Source, string(warningsJSON), a.CreatedBy, a.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}

	return s.GetByID(ctx, a.TenantID, a.ID)
}

func (s *AnnotationStore) GetByID(ctx context.Context, tenantID, id string) (*domain.VoiceAnnotation, error) {
	return s.getOne(ctx, `SELECT `+annotationColumns+` FROM voice_annotations WHERE id = ? AND tenant_id = ?`, id, tenantID)
}

// GetByTaskID finds the annotation a queue task produced, which outlives the
// task's retention in the queue.
func (s *AnnotationStore) GetByTaskID(ctx context.Context, tenantID, taskID string) (*domain.VoiceAnnotation, error) {
	return s.getOne(ctx, `SELECT `+annotationColumns+` FROM voice_annotations WHERE task_id = ? AND tenant_id = ?`, taskID, tenantID)
}

// LatestByItemID returns the annotation that currently supersedes all others
// on the item.
func (s *AnnotationStore) LatestByItemID(ctx context.Context, tenantID, itemID string) (*domain.VoiceAnnotation, error) {
	return s.getOne(ctx, `
		SELECT `+annotationColumns+` FROM voice_annotations
		WHERE item_id = ? AND tenant_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, itemID, tenantID)
}

func (s *AnnotationStore) getOne(ctx context.Context, query string, args ...any) (*domain.VoiceAnnotation, error) {
	a, err := scanAnnotation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return a, nil
}

// ListByItemID returns annotations newest first.
func (s *AnnotationStore) ListByItemID(ctx context.Context, tenantID, itemID string) ([]*domain.VoiceAnnotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+annotationColumns+` FROM voice_annotations
		WHERE item_id = ? AND tenant_id = ? ORDER BY created_at DESC, rowid DESC
	`, itemID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer closeRows(rows)

	var out []*domain.VoiceAnnotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotations: %w", err)
	}
	return out, nil
}

func scanAnnotation(row rowScanner) (*domain.VoiceAnnotation, error) {
	a := &domain.VoiceAnnotation{}
	var itemID sql.NullString
	var duration, mValue sql.NullFloat64
	var mUnit domain.Unit
	var warnings string

	err := row.Scan(&a.ID, &a.TenantID, &a.InspectionID, &itemID, &a.TaskID, &a.RawText, &a.AudioRef,
		&duration, &a.Component, &a.ConditionCandidate, &mValue, &mUnit,
		&a.Action, &a.Confidence, &a.Source, &warnings, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.ItemID = itemID.String
	a.AudioDurationSeconds = floatPtr(duration)
	if mValue.Valid {
		a.Measurement = &domain.Measurement{Value: mValue.Float64, Unit: mUnit}
	}
	if err := json.Unmarshal([]byte(warnings), &a.Warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings: %w", err)
	}
	return a, nil
}
