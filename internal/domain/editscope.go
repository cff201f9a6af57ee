package domain

import "errors"

var ErrInvalidScope = errors.New("scope \"all\" requires a recurring series")

type EditScope string

const (
	ScopeThis EditScope = "this"
	ScopeAll  EditScope = "all"
)

type EditAction string

const (
	ActionUpdate EditAction = "update"
	ActionDelete EditAction = "delete"
)

// EditDecision is the identity and recurrence payload a mutation must carry.
// It is computed fresh per submit and never persisted.
type EditDecision struct {
	TargetID       string
	RecurrenceRule string
	IsRecurring    bool
}

// ResolveEditScope decides what a series-aware edit or delete submits.
//
// A standalone occurrence targets itself; requesting scope "all" on one is a
// caller contract violation. A series occurrence edited with scope "all"
// targets the series identity and carries the encoded rule. With scope
// "this" it targets only its own identity and the rule is forced empty: a
// single occurrence has no series to apply a rule to, so recurrence state
// must never be transmitted against it no matter what the form holds.
func ResolveEditScope(occ EventOccurrence, action EditAction, scope EditScope, rule string) (EditDecision, error) {
	if occ.SeriesID == "" {
		if scope == ScopeAll {
			return EditDecision{}, ErrInvalidScope
		}
		decision := EditDecision{TargetID: occ.ID}
		if action == ActionUpdate {
			decision.RecurrenceRule = rule
			decision.IsRecurring = rule != ""
		}
		return decision, nil
	}

	if scope == ScopeAll {
		decision := EditDecision{TargetID: occ.SeriesID}
		if action == ActionUpdate {
			decision.RecurrenceRule = rule
			decision.IsRecurring = rule != ""
		}
		return decision, nil
	}

	return EditDecision{TargetID: occ.ID}, nil
}
