package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/logging"
	"github.com/vbonduro/inspectflow/internal/metrics"
	"github.com/vbonduro/inspectflow/internal/queue"
	"github.com/vbonduro/inspectflow/internal/voice"
)

// DefaultConfidenceThreshold is the score a finding needs before its
// condition is written to the item.
const DefaultConfidenceThreshold = 0.7

const refineTimeout = 30 * time.Second

type inspectionReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Inspection, error)
}

type ProcessorConfig struct {
	Inspections inspectionReader
	Items       itemRepository
	Annotations annotationRepository
	// Refiner is consulted only for findings below Threshold. Optional.
	Refiner   voice.Refiner
	Threshold float64
	Audit     auditRecorder
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// AnnotationProcessor turns queued voice notes into stored annotations. It
// satisfies queue.Processor.
type AnnotationProcessor struct {
	inspections inspectionReader
	items       itemRepository
	annotations annotationRepository
	refiner     voice.Refiner
	threshold   float64
	audit       auditRecorder
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewAnnotationProcessor(cfg ProcessorConfig) *AnnotationProcessor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfidenceThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AnnotationProcessor{
		inspections: cfg.Inspections,
		items:       cfg.Items,
		annotations: cfg.Annotations,
		refiner:     cfg.Refiner,
		threshold:   cfg.Threshold,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		logger:      logging.WithComponent(cfg.Logger, "annotation_processor"),
		now:         cfg.Now,
	}
}

var _ queue.Processor = (*AnnotationProcessor)(nil)

// Process is safe to repeat for the same task: a task that already produced
// an annotation reuses it instead of storing a second one, and only the
// condition write is retried.
func (p *AnnotationProcessor) Process(ctx context.Context, task domain.QueueTask) (queue.Result, error) {
	note := task.Note

	existing, err := p.annotations.GetByTaskID(ctx, note.TenantID, task.ID)
	if err != nil {
		return queue.Result{}, fmt.Errorf("failed to check for existing annotation: %w", err)
	}
	if existing != nil {
		if err := p.applyCondition(ctx, task, existing.Finding); err != nil {
			return queue.Result{}, err
		}
		return queue.Result{AnnotationID: existing.ID, Warnings: existing.Warnings}, nil
	}

	finding, err := voice.Parse(note.RawText)
	if err != nil {
		return queue.Result{}, err
	}
	source := domain.FindingSourceHeuristic
	if finding.Confidence < p.threshold && p.refiner != nil {
		if refined, ok := p.refine(ctx, task.ID, note.RawText); ok && refined.Confidence > finding.Confidence {
			finding, source = refined, domain.FindingSourceLLM
		}
	}
	p.metrics.RecordConfidence(string(source), finding.Confidence)

	warnings := voice.Warnings(finding, note.RawText)
	ann, err := p.annotations.Create(ctx, &domain.VoiceAnnotation{
		ID:                   uuid.NewString(),
		TenantID:             note.TenantID,
		InspectionID:         note.InspectionID,
		ItemID:               note.ItemID,
		TaskID:               task.ID,
		RawText:              note.RawText,
		AudioRef:             note.AudioRef,
		AudioDurationSeconds: note.AudioDurationSeconds,
		Finding:              finding,
		Source:               source,
		Warnings:             warnings,
		CreatedBy:            note.ActorID,
		CreatedAt:            p.now().UTC(),
	})
	if err != nil {
		return queue.Result{}, err
	}

	if err := p.applyCondition(ctx, task, finding); err != nil {
		return queue.Result{}, err
	}

	p.record(note, "annotation.created", "annotation", ann.ID,
		fmt.Sprintf("task %s, confidence %.2f, source %s", task.ID, finding.Confidence, source))
	return queue.Result{AnnotationID: ann.ID, Warnings: ann.Warnings}, nil
}

// refine asks the refiner for a second opinion. Its failures fall back to
// the heuristic finding.
func (p *AnnotationProcessor) refine(ctx context.Context, taskID, text string) (domain.Finding, bool) {
	ctx, cancel := context.WithTimeout(ctx, refineTimeout)
	defer cancel()

	f, err := p.refiner.Refine(ctx, text)
	if err != nil {
		p.logger.Warn().Err(err).Str("task_id", taskID).Msg("refiner failed, keeping heuristic finding")
		return domain.Finding{}, false
	}
	return f, true
}

// applyCondition writes a confident finding to its item, stamped with the
// note's submission time so it orders correctly against manual writes.
func (p *AnnotationProcessor) applyCondition(ctx context.Context, task domain.QueueTask, f domain.Finding) error {
	note := task.Note
	if note.ItemID == "" || f.ConditionCandidate == "" || f.Confidence < p.threshold {
		return nil
	}

	insp, err := p.inspections.GetByID(ctx, note.TenantID, note.InspectionID)
	if err != nil {
		return err
	}
	if insp == nil || insp.State.IsTerminal() {
		p.logger.Info().Str("task_id", task.ID).Str("inspection_id", note.InspectionID).
			Msg("inspection closed, condition not applied")
		return nil
	}

	_, applied, err := p.items.SetCondition(ctx, note.TenantID, note.ItemID, f.ConditionCandidate, domain.ConditionSourceVoice, task.EnqueuedAt.UTC())
	if err != nil {
		return err
	}
	if applied {
		p.record(note, "item.condition_set", "item", note.ItemID, fmt.Sprintf("%s (voice)", f.ConditionCandidate))
	} else {
		p.logger.Debug().Str("task_id", task.ID).Str("item_id", note.ItemID).
			Msg("newer condition already recorded")
	}
	return nil
}

func (p *AnnotationProcessor) record(note domain.VoiceNote, action, entityType, entityID, detail string) {
	if p.audit == nil {
		return
	}
	p.audit.Record(domain.AuditEntry{
		TenantID:   note.TenantID,
		ActorID:    note.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  p.now().UTC(),
	})
}
