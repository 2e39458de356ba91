package domain

import "fmt"

type State string

const (
	StateDraft          State = "draft"
	StateInProgress     State = "in_progress"
	StatePendingReview  State = "pending_review"
	StateApproved       State = "approved"
	StateRejected       State = "rejected"
	StateSentToCustomer State = "sent_to_customer"
	StateCompleted      State = "completed"
	StateArchived       State = "archived"
)

// States lists every workflow state in lifecycle order.
var States = []State{
	StateDraft,
	StateInProgress,
	StatePendingReview,
	StateApproved,
	StateRejected,
	StateSentToCustomer,
	StateCompleted,
	StateArchived,
}

func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states with no outbound transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateArchived
}

func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", s)}
	}
	return st, nil
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(s); u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return u, nil
	}
	return "", &ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown urgency %q", s)}
}

type Condition string

const (
	ConditionGood           Condition = "good"
	ConditionFair           Condition = "fair"
	ConditionPoor           Condition = "poor"
	ConditionNeedsImmediate Condition = "needs_immediate"
)

func ParseCondition(s string) (Condition, error) {
	switch c := Condition(s); c {
	case ConditionGood, ConditionFair, ConditionPoor, ConditionNeedsImmediate:
		return c, nil
	}
	return "", &ValidationError{Field: "condition", Reason: fmt.Sprintf("unknown condition %q", s)}
}

type ConditionSource string

const (
	ConditionSourceManual ConditionSource = "manual"
	ConditionSourceVoice  ConditionSource = "voice"
)

type Unit string

const (
	UnitMillimeters Unit = "mm"
	UnitInches      Unit = "inches"
	UnitPercent     Unit = "percent"
	UnitPSI         Unit = "psi"
)

type Action string

const (
	ActionReplace Action = "replace"
	ActionInspect Action = "inspect"
	ActionMonitor Action = "monitor"
	ActionTopOff  Action = "top_off"
	ActionRotate  Action = "rotate"
)

type FindingSource string

const (
	FindingSourceHeuristic FindingSource = "heuristic"
	FindingSourceLLM       FindingSource = "llm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities; a higher rank drains first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	case "":
		return PriorityMedium, nil
	}
	return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s)}
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

type Role string

const (
	RoleMechanic       Role = "mechanic"
	RoleServiceAdvisor Role = "service_advisor"
	RoleManager        Role = "manager"
	RoleAdmin          Role = "admin"
	RoleSystem         Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleMechanic, RoleServiceAdvisor, RoleManager, RoleAdmin, RoleSystem:
		return r, nil
	}
	return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
}
