package domain

import "time"

type VehicleRef struct {
	VIN          string
	Year         int
	Make         string
	Model        string
	Mileage      int
	LicensePlate string
}

type Concern struct {
	ID          int64
	Description string
	Category    string
}

type Inspection struct {
	ID               string
	TenantID         string
	State            State
	Version          int64
	Urgency          Urgency
	Vehicle          VehicleRef
	Concerns         []Concern
	AssignedActorID  string
	CreatedByActorID string
	StateChangedAt   time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OwnerTenant is nil-safe so tenant checks can run directly on lookup results.
func (i *Inspection) OwnerTenant() string {
	if i == nil {
		return ""
	}
	return i.TenantID
}

// InspectionSummary is the list-row projection returned by queries.
type InspectionSummary struct {
	ID              string
	State           State
	Urgency         Urgency
	Version         int64
	Vehicle         VehicleRef
	AssignedActorID string
	ItemCount       int
	StateChangedAt  time.Time
	UpdatedAt       time.Time
}

type InspectionItem struct {
	ID                 string
	TenantID           string
	InspectionID       string
	Name               string
	Category           string
	Condition          Condition
	ConditionSource    ConditionSource
	ConditionUpdatedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (i *InspectionItem) OwnerTenant() string {
	if i == nil {
		return ""
	}
	return i.TenantID
}

type Measurement struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Finding is the structured result of parsing one free-text note.
type Finding struct {
	Component          string       `json:"component,omitempty"`
	ConditionCandidate Condition    `json:"conditionCandidate,omitempty"`
	Measurement        *Measurement `json:"measurement,omitempty"`
	Action             Action       `json:"action,omitempty"`
	Confidence         float64      `json:"confidence"`
}

// VoiceAnnotation is immutable once stored. A newer annotation on the same
// item supersedes it.
type VoiceAnnotation struct {
	ID                   string
	TenantID             string
	InspectionID         string
	ItemID               string
	TaskID               string
	RawText              string
	AudioRef             string
	AudioDurationSeconds *float64
	Finding
	Source    FindingSource
	Warnings  []string
	CreatedBy string
	CreatedAt time.Time
}

func (a *VoiceAnnotation) OwnerTenant() string {
	if a == nil {
		return ""
	}
	return a.TenantID
}

// VoiceNote is the payload carried by a queue task.
type VoiceNote struct {
	TenantID             string
	ActorID              string
	InspectionID         string
	ItemID               string
	RawText              string
	AudioRef             string
	AudioDurationSeconds *float64
}

type QueueTask struct {
	ID           string
	Note         VoiceNote
	Priority     Priority
	Status       TaskStatus
	RetryCount   int
	LastError    string
	AnnotationID string
	Warnings     []string
	EnqueuedAt   time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

func (t *QueueTask) OwnerTenant() string {
	if t == nil {
		return ""
	}
	return t.Note.TenantID
}

type QueueStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// TransitionEvent is published after a transition commits.
type TransitionEvent struct {
	InspectionID string    `json:"inspectionId"`
	TenantID     string    `json:"tenantId"`
	ActorID      string    `json:"actorId"`
	ActorRole    Role      `json:"actorRole"`
	From         State     `json:"from"`
	To           State     `json:"to"`
	Version      int64     `json:"version"`
	Urgency      Urgency   `json:"urgency"`
	OccurredAt   time.Time `json:"occurredAt"`
}

type AuditEntry struct {
	ID         int64
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Detail     string
	CreatedAt  time.Time
}

type InspectionFilter struct {
	States          []State
	Urgency         Urgency
	AssignedActorID string
	CreatedByActor  string
}

type PageRequest struct {
	Limit  int
	Offset int
}

type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}
