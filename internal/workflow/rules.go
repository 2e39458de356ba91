package workflow

import (
	"slices"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// Party is how an actor relates to a particular inspection. A role alone is
// not enough: "creator or assignee" depends on the record.
type Party string

const (
	PartyOwner   Party = "owner"
	PartyManager Party = "manager"
	PartySystem  Party = "system"
)

// Rule grants the listed parties a move from one state to another.
type Rule struct {
	From    domain.State
	To      domain.State
	Parties []Party
}

func rule(from, to domain.State, parties ...Party) Rule {
	return Rule{From: from, To: to, Parties: parties}
}

// Rules is the only place transition legality is defined.
var Rules = buildRules()

func buildRules() []Rule {
	rules := []Rule{
		rule(domain.StateDraft, domain.StateInProgress, PartyOwner),
		rule(domain.StateDraft, domain.StateArchived, PartyOwner),
		rule(domain.StateInProgress, domain.StatePendingReview, PartyOwner),
		rule(domain.StateInProgress, domain.StateArchived, PartyOwner),
		rule(domain.StatePendingReview, domain.StateApproved, PartyManager),
		rule(domain.StatePendingReview, domain.StateRejected, PartyManager),
		rule(domain.StateApproved, domain.StateSentToCustomer, PartyManager, PartySystem),
		rule(domain.StateSentToCustomer, domain.StateCompleted, PartyManager),
		rule(domain.StateRejected, domain.StateInProgress, PartyOwner),
	}

	// A manager may archive from any non-terminal state.
	for _, st := range domain.States {
		if st.IsTerminal() {
			continue
		}
		rules = append(rules, rule(st, domain.StateArchived, PartyManager))
	}
	return rules
}

// PartiesFor lists every party the actor counts as for insp. A manager who
// also created the record is both owner and manager.
func PartiesFor(insp *domain.Inspection, actorID string, role domain.Role) []Party {
	var parties []Party
	if actorID != "" && (actorID == insp.CreatedByActorID || actorID == insp.AssignedActorID) {
		parties = append(parties, PartyOwner)
	}
	switch role {
	case domain.RoleManager, domain.RoleAdmin:
		parties = append(parties, PartyManager)
	case domain.RoleSystem:
		parties = append(parties, PartySystem)
	}
	return parties
}

// Allowed reports whether any of parties may move from one state to another.
func Allowed(from, to domain.State, parties []Party) bool {
	for _, r := range Rules {
		if r.From != from || r.To != to {
			continue
		}
		for _, p := range parties {
			if slices.Contains(r.Parties, p) {
				return true
			}
		}
	}
	return false
}

// Targets returns the states reachable from "from" for parties, in
// lifecycle order with no duplicates.
func Targets(from domain.State, parties []Party) []domain.State {
	var out []domain.State
	for _, st := range domain.States {
		if Allowed(from, st, parties) {
			out = append(out, st)
		}
	}
	return out
}
