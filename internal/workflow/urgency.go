package workflow

import "github.com/vbonduro/inspectflow/internal/domain"

// RecomputesUrgency reports whether entering target re-derives urgency.
func RecomputesUrgency(target domain.State) bool {
	switch target {
	case domain.StateInProgress, domain.StateApproved, domain.StateCompleted:
		return true
	}
	return false
}

// DeriveUrgency classifies an inspection by its worst item. Low requires at
// least one item and every item good; no items or unassessed items stay
// normal.
func DeriveUrgency(items []*domain.InspectionItem) domain.Urgency {
	var poor bool
	allGood := len(items) > 0
	for _, it := range items {
		switch it.Condition {
		case domain.ConditionNeedsImmediate:
			return domain.UrgencyCritical
		case domain.ConditionPoor:
			poor = true
		}
		if it.Condition != domain.ConditionGood {
			allGood = false
		}
	}

	switch {
	case poor:
		return domain.UrgencyHigh
	case allGood:
		return domain.UrgencyLow
	default:
		return domain.UrgencyNormal
	}
}
