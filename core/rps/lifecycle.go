package rps

import "github.com/obeworks/kurikulum/core"

// Action is an operation that may change the status of an RPS.
type Action string

const (
	ActionUpdate   Action = "update"
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionRevise   Action = "revise" // rejected or revised decision
	ActionActivate Action = "activate"
	ActionArchive  Action = "archive"
	ActionDelete   Action = "delete"
)

type transition struct {
	from []Status // nil: any status but the target
	to   Status   // empty: status is kept
}

var transitions = map[Action]transition{
	ActionUpdate:   {from: []Status{StatusDraft, StatusRevised}},
	ActionSubmit:   {from: []Status{StatusDraft, StatusRevised}, to: StatusSubmitted},
	ActionApprove:  {from: []Status{StatusSubmitted}, to: StatusApproved},
	ActionRevise:   {from: []Status{StatusSubmitted}, to: StatusRevised},
	ActionActivate: {from: []Status{StatusApproved}, to: StatusActive},
	ActionArchive:  {to: StatusArchived},
	ActionDelete:   {from: []Status{StatusDraft}},
}

// Transition returns the status an RPS in status from ends up in after action,
// or a *core.TransitionError if the action is illegal from there.
func Transition(from Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", core.NewTransitionError("rps", from.String(), string(action))
	}

	allowed := false
	if t.from == nil {
		allowed = from.IsValid() && from != t.to
	} else {
		for _, st := range t.from {
			if st == from {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return "", core.NewTransitionError("rps", from.String(), string(action))
	}

	if t.to == "" {
		return from, nil
	}
	return t.to, nil
}

// CanTransition reports whether action is legal from status from.
func CanTransition(from Status, action Action) bool {
	_, err := Transition(from, action)
	return err == nil
}

// IsEditable reports whether the RPS content (and its templates) may still change.
func (r RPS) IsEditable() bool {
	return CanTransition(r.Status, ActionUpdate)
}
