package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/logging"
	"github.com/vbonduro/inspectflow/internal/metrics"
	"github.com/vbonduro/inspectflow/internal/notify"
	"github.com/vbonduro/inspectflow/internal/tenant"
	"github.com/vbonduro/inspectflow/internal/voice"
	"github.com/vbonduro/inspectflow/internal/workflow"
)

const notifyTimeout = 10 * time.Second

// workflowEngine is the subset of workflow.Engine that InspectionService requires.
type workflowEngine interface {
	Create(ctx context.Context, s tenant.Scope, req workflow.CreateRequest) (*domain.Inspection, error)
	Get(ctx context.Context, s tenant.Scope, id string) (*domain.Inspection, error)
	Transition(ctx context.Context, s tenant.Scope, id string, target domain.State, expectedVersion int64) (workflow.Transitioned, error)
	AvailableTransitions(ctx context.Context, s tenant.Scope, id string) ([]domain.State, error)
	Query(ctx context.Context, s tenant.Scope, filter domain.InspectionFilter, page domain.PageRequest) (domain.Page[domain.InspectionSummary], error)
}

// itemRepository is the subset of store.ItemStore the services require.
type itemRepository interface {
	Create(ctx context.Context, item *domain.InspectionItem) (*domain.InspectionItem, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.InspectionItem, error)
	ListByInspectionID(ctx context.Context, tenantID, inspectionID string) ([]*domain.InspectionItem, error)
	SetCondition(ctx context.Context, tenantID, id string, cond domain.Condition, source domain.ConditionSource, writtenAt time.Time) (*domain.InspectionItem, bool, error)
}

// annotationRepository is the subset of store.AnnotationStore the services require.
type annotationRepository interface {
	Create(ctx context.Context, a *domain.VoiceAnnotation) (*domain.VoiceAnnotation, error)
	GetByTaskID(ctx context.Context, tenantID, taskID string) (*domain.VoiceAnnotation, error)
	ListByItemID(ctx context.Context, tenantID, itemID string) ([]*domain.VoiceAnnotation, error)
}

// noteQueue is the subset of queue.Queue that InspectionService requires.
type noteQueue interface {
	Enqueue(note domain.VoiceNote, priority domain.Priority) (string, error)
	Status(id string) *domain.QueueTask
	Stats() domain.QueueStats
}

type auditRecorder interface {
	Record(e domain.AuditEntry)
}

type errorReporter interface {
	CaptureInternal(operation, correlationID string, err error)
}

// Dependencies wires an InspectionService. Notifier, Audit, Reporter and
// Metrics are optional.
type Dependencies struct {
	Engine      workflowEngine
	Items       itemRepository
	Annotations annotationRepository
	Queue       noteQueue
	Notifier    notify.Dispatcher
	Audit       auditRecorder
	Reporter    errorReporter
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

type InspectionService struct {
	engine      workflowEngine
	items       itemRepository
	annotations annotationRepository
	queue       noteQueue
	notifier    notify.Dispatcher
	audit       auditRecorder
	reporter    errorReporter
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewInspectionService(d Dependencies) *InspectionService {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &InspectionService{
		engine:      d.Engine,
		items:       d.Items,
		annotations: d.Annotations,
		queue:       d.Queue,
		notifier:    d.Notifier,
		audit:       d.Audit,
		reporter:    d.Reporter,
		metrics:     d.Metrics,
		logger:      logging.WithComponent(d.Logger, "inspection_service"),
		now:         d.Now,
	}
}

func (s *InspectionService) CreateInspection(ctx context.Context, sc tenant.Scope, req workflow.CreateRequest) (*domain.Inspection, error) {
	insp, err := s.engine.Create(ctx, sc, req)
	if err != nil {
		return nil, s.fail("create_inspection", sc, err)
	}
	s.metrics.RecordInspectionCreated()
	s.record(sc, "inspection.created", "inspection", insp.ID, fmt.Sprintf("vehicle %s", describeVehicle(insp.Vehicle)))
	return insp, nil
}

// Transition applies a state change and, once it has committed, records and
// announces it. Notification failures are logged, never returned.
func (s *InspectionService) Transition(ctx context.Context, sc tenant.Scope, id string, target domain.State, expectedVersion int64) (*domain.Inspection, error) {
	res, err := s.engine.Transition(ctx, sc, id, target, expectedVersion)
	if err != nil {
		s.metrics.RecordTransitionRejected(reason(err))
		return nil, s.fail("transition", sc, err)
	}

	insp := res.Inspection
	s.metrics.RecordTransition(string(res.From), string(insp.State))
	s.record(sc, "inspection.transitioned", "inspection", insp.ID,
		fmt.Sprintf("%s -> %s (version %d, urgency %s)", res.From, insp.State, insp.Version, insp.Urgency))

	s.publish(ctx, domain.TransitionEvent{
		InspectionID: insp.ID,
		TenantID:     insp.TenantID,
		ActorID:      sc.ActorID,
		ActorRole:    sc.Role,
		From:         res.From,
		To:           insp.State,
		Version:      insp.Version,
		Urgency:      insp.Urgency,
		OccurredAt:   insp.StateChangedAt,
	})
	return insp, nil
}

func (s *InspectionService) AvailableTransitions(ctx context.Context, sc tenant.Scope, id string) ([]domain.State, error) {
	states, err := s.engine.AvailableTransitions(ctx, sc, id)
	if err != nil {
		return nil, s.fail("available_transitions", sc, err)
	}
	return states, nil
}

// InspectionDetail is an inspection with its checklist.
type InspectionDetail struct {
	*domain.Inspection
	Items []*domain.InspectionItem
}

func (s *InspectionService) GetInspection(ctx context.Context, sc tenant.Scope, id string) (*InspectionDetail, error) {
	insp, err := s.engine.Get(ctx, sc, id)
	if err != nil {
		return nil, s.fail("get_inspection", sc, err)
	}
	items, err := s.items.ListByInspectionID(ctx, sc.TenantID, id)
	if err != nil {
		return nil, s.fail("get_inspection", sc, fmt.Errorf("failed to list items: %w", err))
	}
	return &InspectionDetail{Inspection: insp, Items: items}, nil
}

func (s *InspectionService) QueryInspections(ctx context.Context, sc tenant.Scope, filter domain.InspectionFilter, page domain.PageRequest) (domain.Page[domain.InspectionSummary], error) {
	result, err := s.engine.Query(ctx, sc, filter, page)
	if err != nil {
		return domain.Page[domain.InspectionSummary]{}, s.fail("query_inspections", sc, err)
	}
	return result, nil
}

// AddItem appends a checklist line. Items do not affect the inspection
// version; urgency picks them up on the next qualifying transition.
func (s *InspectionService) AddItem(ctx context.Context, sc tenant.Scope, inspectionID, name, category string) (*domain.InspectionItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, s.fail("add_item", sc, domain.Invalid("name", "must not be empty"))
	}
	if _, err := s.openInspection(ctx, sc, inspectionID); err != nil {
		return nil, s.fail("add_item", sc, err)
	}

	now := s.now().UTC()
	item, err := s.items.Create(ctx, &domain.InspectionItem{
		ID:           uuid.NewString(),
		TenantID:     sc.TenantID,
		InspectionID: inspectionID,
		Name:         name,
		Category:     strings.TrimSpace(category),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, s.fail("add_item", sc, err)
	}
	s.record(sc, "item.created", "item", item.ID, fmt.Sprintf("%q on inspection %s", item.Name, inspectionID))
	return item, nil
}

// SetItemCondition records a manual assessment. It competes with
// voice-derived conditions by write time; the newest write wins.
func (s *InspectionService) SetItemCondition(ctx context.Context, sc tenant.Scope, itemID string, cond domain.Condition) (*domain.InspectionItem, error) {
	if _, err := domain.ParseCondition(string(cond)); err != nil {
		return nil, s.fail("set_item_condition", sc, err)
	}
	item, err := s.scopedItem(ctx, sc, itemID)
	if err != nil {
		return nil, s.fail("set_item_condition", sc, err)
	}
	if _, err := s.openInspection(ctx, sc, item.InspectionID); err != nil {
		return nil, s.fail("set_item_condition", sc, err)
	}

	updated, applied, err := s.items.SetCondition(ctx, sc.TenantID, itemID, cond, domain.ConditionSourceManual, s.now().UTC())
	if err != nil {
		return nil, s.fail("set_item_condition", sc, err)
	}
	if applied {
		s.record(sc, "item.condition_set", "item", itemID, fmt.Sprintf("%s (manual)", cond))
	}
	return updated, nil
}

type VoiceNoteRequest struct {
	InspectionID         string
	ItemID               string
	RawText              string
	AudioRef             string
	AudioDurationSeconds *float64
	Priority             domain.Priority
}

// AttachVoiceNote queues a note for parsing and returns the task id.
// Processing failures surface later through GetAnnotation, never here.
func (s *InspectionService) AttachVoiceNote(ctx context.Context, sc tenant.Scope, req VoiceNoteRequest) (string, error) {
	if voice.Normalize(req.RawText) == "" {
		return "", s.fail("attach_voice_note", sc, domain.Invalid("rawText", "must not be empty"))
	}
	if req.AudioDurationSeconds != nil && *req.AudioDurationSeconds < 0 {
		return "", s.fail("attach_voice_note", sc, domain.Invalid("audioDurationSeconds", "must not be negative"))
	}
	if _, err := s.openInspection(ctx, sc, req.InspectionID); err != nil {
		return "", s.fail("attach_voice_note", sc, err)
	}
	if req.ItemID != "" {
		item, err := s.scopedItem(ctx, sc, req.ItemID)
		if err != nil {
			return "", s.fail("attach_voice_note", sc, err)
		}
		if item.InspectionID != req.InspectionID {
			return "", s.fail("attach_voice_note", sc, domain.NotFound("item", req.ItemID))
		}
	}

	taskID, err := s.queue.Enqueue(domain.VoiceNote{
		TenantID:             sc.TenantID,
		ActorID:              sc.ActorID,
		InspectionID:         req.InspectionID,
		ItemID:               req.ItemID,
		RawText:              req.RawText,
		AudioRef:             strings.TrimSpace(req.AudioRef),
		AudioDurationSeconds: req.AudioDurationSeconds,
	}, req.Priority)
	if err != nil {
		return "", s.fail("attach_voice_note", sc, err)
	}
	s.record(sc, "voice_note.queued", "inspection", req.InspectionID, "task "+taskID)
	return taskID, nil
}

// AnnotationResult is either a finished annotation or the task still
// working on (or having given up on) one.
type AnnotationResult struct {
	Status     domain.TaskStatus
	Task       *domain.QueueTask
	Annotation *domain.VoiceAnnotation
}

// GetAnnotation reports on a task. After the task has aged out of the queue
// the stored annotation is still found by task id.
func (s *InspectionService) GetAnnotation(ctx context.Context, sc tenant.Scope, taskID string) (AnnotationResult, error) {
	if err := sc.Validate(); err != nil {
		return AnnotationResult{}, s.fail("get_annotation", sc, err)
	}

	if queued := s.queue.Status(taskID); queued != nil {
		task, err := tenant.Check(sc, "task", taskID, queued, nil)
		if err != nil {
			return AnnotationResult{}, s.fail("get_annotation", sc, err)
		}
		res := AnnotationResult{Status: task.Status, Task: task}
		if task.Status != domain.TaskCompleted {
			return res, nil
		}
		ann, err := s.annotations.GetByTaskID(ctx, sc.TenantID, taskID)
		if err != nil {
			return AnnotationResult{}, s.fail("get_annotation", sc, err)
		}
		res.Annotation = ann
		return res, nil
	}

	ann, err := s.annotations.GetByTaskID(ctx, sc.TenantID, taskID)
	if err != nil {
		err = fmt.Errorf("failed to get annotation: %w", err)
	}
	ann, err = tenant.Check(sc, "task", taskID, ann, err)
	if err != nil {
		return AnnotationResult{}, s.fail("get_annotation", sc, err)
	}
	return AnnotationResult{Status: domain.TaskCompleted, Annotation: ann}, nil
}

// ListAnnotations returns an item's annotations newest first; the first one
// supersedes the rest.
func (s *InspectionService) ListAnnotations(ctx context.Context, sc tenant.Scope, itemID string) ([]*domain.VoiceAnnotation, error) {
	if _, err := s.scopedItem(ctx, sc, itemID); err != nil {
		return nil, s.fail("list_annotations", sc, err)
	}
	anns, err := s.annotations.ListByItemID(ctx, sc.TenantID, itemID)
	if err != nil {
		return nil, s.fail("list_annotations", sc, err)
	}
	return anns, nil
}

func (s *InspectionService) QueueStatus() domain.QueueStats {
	return s.queue.Stats()
}

// openInspection loads an inspection that may still have items changed.
func (s *InspectionService) openInspection(ctx context.Context, sc tenant.Scope, id string) (*domain.Inspection, error) {
	insp, err := s.engine.Get(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if insp.State.IsTerminal() {
		return nil, domain.Invalid("inspection", fmt.Sprintf("inspection is %s", insp.State))
	}
	return insp, nil
}

func (s *InspectionService) scopedItem(ctx context.Context, sc tenant.Scope, itemID string) (*domain.InspectionItem, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, sc.TenantID, itemID)
	if err != nil {
		err = fmt.Errorf("failed to get item: %w", err)
	}
	return tenant.Check(sc, "item", itemID, item, err)
}

func (s *InspectionService) record(sc tenant.Scope, action, entityType, entityID, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuditEntry{
		TenantID:   sc.TenantID,
		ActorID:    sc.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	})
}

// publish runs after commit with its own deadline, so a cancelled request
// does not suppress the notification.
func (s *InspectionService) publish(ctx context.Context, event domain.TransitionEvent) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := s.notifier.Dispatch(ctx, event)
	s.metrics.RecordNotification(s.notifier.Name(), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("backend", s.notifier.Name()).
			Str("inspection_id", event.InspectionID).
			Msg("failed to dispatch transition notification")
	}
}

func describeVehicle(v domain.VehicleRef) string {
	parts := make([]string, 0, 4)
	if v.Year != 0 {
		parts = append(parts, fmt.Sprint(v.Year))
	}
	for _, p := range []string{v.Make, v.Model, v.VIN} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return v.LicensePlate
	}
	return strings.Join(parts, " ")
}
