package approval

import (
	"fmt"
	"strings"
	"time"
)

// Transition is a planned decision, applied with compare-and-swap on
// (status, stage, actor login)
type Transition struct {
	Stage        Role
	ActorLoginID string
	Decision     Decision
	Expected     Status
	Next         Status
	SlotStatus   SlotStatus
	Note         string
	At           time.Time
}

// Opens returns the stage whose pending window this transition opens
func (t *Transition) Opens() (Role, bool) {
	return t.Next.Stage()
}

// CancelTransition is a planned cancellation; applied only while the status is still pending
type CancelTransition struct {
	Expected    Status
	CancelledBy string
	At          time.Time
}

// NextStatus evaluates the transition table
func NextStatus(mode Mode, stage Role, decision Decision) Status {
	if decision == DecisionReject {
		return StatusRejected
	}
	if next, ok := mode.Next(stage); ok {
		return PendingStatus(next)
	}
	return StatusApproved
}

// PlanDecision authorizes actor to decide at stage and computes the transition.
// Admin visibility never grants decision rights.
func PlanDecision(req *Request, actor Actor, stage Role, decision Decision, comment string, now time.Time) (*Transition, error) {
	comment = strings.TrimSpace(comment)
	if decision == DecisionReject && comment == "" {
		return nil, fmt.Errorf("%w: comment is required to reject", ErrValidation)
	}
	if !actor.canDecide(stage) {
		return nil, fmt.Errorf("%w: role %s required", ErrForbidden, stage)
	}
	slot := req.Slot(stage)
	if slot == nil || slot.LoginID == "" || slot.LoginID != actor.LoginID {
		return nil, fmt.Errorf("%w: you are not the assigned %s for this request", ErrForbidden, stage)
	}
	expected := PendingStatus(stage)
	if req.Status != expected {
		return nil, fmt.Errorf("%w: request is %s, not %s", ErrInvalidState, req.Status, expected)
	}

	t := &Transition{
		Stage:        stage,
		ActorLoginID: actor.LoginID,
		Decision:     decision,
		Expected:     expected,
		Next:         NextStatus(req.ApprovalMode, stage, decision),
		SlotStatus:   SlotApproved,
		Note:         comment,
		At:           now,
	}
	if decision == DecisionReject {
		t.SlotStatus = SlotRejected
	}
	return t, nil
}

// PlanCancel authorizes the owner, or an admin on the owner's behalf
func PlanCancel(req *Request, actor Actor, now time.Time) (*CancelTransition, error) {
	if actor.LoginID != req.RequesterLoginID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only the requester can cancel this request", ErrForbidden)
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request is already %s", ErrInvalidState, req.Status)
	}
	return &CancelTransition{Expected: req.Status, CancelledBy: actor.LoginID, At: now}, nil
}

// CheckEditable allows owner edits only before any slot has been acted upon
func CheckEditable(req *Request, actor Actor) error {
	if actor.LoginID != req.RequesterLoginID {
		return fmt.Errorf("%w: only the requester can edit this request", ErrForbidden)
	}
	if _, pending := req.Status.Stage(); !pending {
		return fmt.Errorf("%w: request is %s", ErrEditNotAllowed, req.Status)
	}
	if req.Acted {
		return fmt.Errorf("%w: a decision has already been recorded", ErrEditNotAllowed)
	}
	for _, slot := range req.Approvals {
		if slot.Status != SlotPending || slot.ActedAt != nil {
			return fmt.Errorf("%w: %s has already acted", ErrEditNotAllowed, slot.Role)
		}
	}
	return nil
}

// Apply mirrors a committed decision onto an in-memory request
func (t *Transition) Apply(req *Request) {
	req.Status = t.Next
	req.Live = t.Next.IsLive()
	req.Acted = true
	req.UpdatedAt = t.At
	if slot := req.Slot(t.Stage); slot != nil {
		at := t.At
		slot.Status = t.SlotStatus
		slot.ActedAt = &at
		slot.Note = t.Note
	}
	if next, ok := t.Opens(); ok && !req.HasReached(next) {
		req.ReachedStages = append(req.ReachedStages, next)
	}
}

// Apply mirrors a committed cancellation onto an in-memory request
func (t *CancelTransition) Apply(req *Request) {
	at := t.At
	req.Status = StatusCancelled
	req.Live = false
	req.CancelledAt = &at
	req.CancelledBy = t.CancelledBy
	req.UpdatedAt = t.At
}

func conflictError(t Status, current *Request) error {
	if current == nil {
		return fmt.Errorf("%w: request is no longer available", ErrConflict)
	}
	return fmt.Errorf("%w: expected %s but request is now %s", ErrConflict, t, current.Status)
}
