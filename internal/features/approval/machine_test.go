package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner      = NewActor("emp.alice", []string{"employee"})
	manager    = NewActor("mgr.bob", []string{"Manager"})
	otherMgr   = NewActor("mgr.other", []string{"manager"})
	gm         = NewActor("gm.carol", []string{"GM"})
	coo        = NewActor("coo.eve", []string{"coo"})
	admin      = NewActor("hr.admin", []string{"admin"})
	adminAndGM = NewActor("gm.carol", []string{"admin", "gm"})
)

func pendingRequest(mode Mode) *Request {
	res, _ := resolverFor(mode).Resolve(string(mode), fullProfile())
	return &Request{
		Kind:             "test",
		EmployeeID:       "E001",
		RequesterLoginID: "emp.alice",
		ApprovalMode:     res.Mode,
		ManagerLoginID:   res.ManagerLoginID,
		GMLoginID:        res.GMLoginID,
		COOLoginID:       res.COOLoginID,
		Status:           res.InitialStatus,
		Approvals:        res.Slots(),
		ReachedStages:    []Role{res.Roles[0]},
		Live:             true,
	}
}

func resolverFor(mode Mode) *ModeResolver {
	return &ModeResolver{Default: mode}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		mode     Mode
		stage    Role
		decision Decision
		want     Status
	}{
		{ModeManagerAndGM, RoleManager, DecisionApprove, StatusPendingGM},
		{ModeManagerAndCOO, RoleManager, DecisionApprove, StatusPendingCOO},
		{ModeManagerOnly, RoleManager, DecisionApprove, StatusApproved},
		{ModeManagerAndGM, RoleManager, DecisionReject, StatusRejected},
		{ModeManagerAndGM, RoleGM, DecisionApprove, StatusApproved},
		{ModeGMAndCOO, RoleGM, DecisionApprove, StatusPendingCOO},
		{ModeGMOnly, RoleGM, DecisionApprove, StatusApproved},
		{ModeGMAndCOO, RoleGM, DecisionReject, StatusRejected},
		{ModeGMAndCOO, RoleCOO, DecisionApprove, StatusApproved},
		{ModeManagerAndCOO, RoleCOO, DecisionReject, StatusRejected},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextStatus(tt.mode, tt.stage, tt.decision), "%s %s %s", tt.mode, tt.stage, tt.decision)
	}
}

func TestPlanDecisionAuthorization(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		actor    Actor
		stage    Role
		decision Decision
		comment  string
		want     error
	}{
		{"assigned manager approves", manager, RoleManager, DecisionApprove, "", nil},
		{"assigned manager rejects with comment", manager, RoleManager, DecisionReject, "no cover", nil},
		{"reject needs a comment", manager, RoleManager, DecisionReject, "  ", ErrValidation},
		{"manager not assigned to this request", otherMgr, RoleManager, DecisionApprove, "", ErrForbidden},
		{"admin never decides", admin, RoleManager, DecisionApprove, "", ErrForbidden},
		{"requester cannot decide", owner, RoleManager, DecisionApprove, "", ErrForbidden},
		{"gm cannot decide the manager stage", gm, RoleManager, DecisionApprove, "", ErrForbidden},
		{"gm before their turn", gm, RoleGM, DecisionApprove, "", ErrInvalidState},
		{"coo outside the mode", coo, RoleCOO, DecisionApprove, "", ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pendingRequest(ModeManagerAndGM)
			tr, err := PlanDecision(req, tt.actor, tt.stage, tt.decision, tt.comment, now)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPendingManager, tr.Expected)
			assert.Equal(t, tt.actor.LoginID, tr.ActorLoginID)
		})
	}
}

func TestPlanDecisionNamesCurrentStatus(t *testing.T) {
	req := pendingRequest(ModeManagerAndGM)
	req.Status = StatusCancelled

	_, err := PlanDecision(req, manager, RoleManager, DecisionApprove, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "CANCELLED")
}

func TestAdminHoldingStageRoleDecidesAsThatRole(t *testing.T) {
	req := pendingRequest(ModeGMAndCOO)
	_, err := PlanDecision(req, adminAndGM, RoleGM, DecisionApprove, "", time.Now())
	assert.NoError(t, err)
}

func TestTransitionApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	req := pendingRequest(ModeManagerAndGM)

	tr, err := PlanDecision(req, manager, RoleManager, DecisionApprove, "ok", now)
	require.NoError(t, err)
	tr.Apply(req)

	assert.Equal(t, StatusPendingGM, req.Status)
	assert.True(t, req.Acted)
	assert.True(t, req.Live)
	assert.Equal(t, []Role{RoleManager, RoleGM}, req.ReachedStages)
	assert.Equal(t, SlotApproved, req.Slot(RoleManager).Status)
	assert.Equal(t, now, *req.Slot(RoleManager).ActedAt)
	assert.Equal(t, SlotPending, req.Slot(RoleGM).Status)

	tr, err = PlanDecision(req, gm, RoleGM, DecisionReject, "short staffed", now.Add(time.Hour))
	require.NoError(t, err)
	tr.Apply(req)
	assert.Equal(t, StatusRejected, req.Status)
	assert.False(t, req.Live)
	assert.Equal(t, "short staffed", req.Slot(RoleGM).Note)
}

func TestPlanCancel(t *testing.T) {
	now := time.Now()

	req := pendingRequest(ModeManagerAndGM)
	tr, err := PlanCancel(req, owner, now)
	require.NoError(t, err)
	assert.Equal(t, "emp.alice", tr.CancelledBy)

	tr, err = PlanCancel(req, admin, now)
	require.NoError(t, err)
	assert.Equal(t, "hr.admin", tr.CancelledBy)

	_, err = PlanCancel(req, manager, now)
	assert.ErrorIs(t, err, ErrForbidden)

	for _, terminal := range []Status{StatusApproved, StatusRejected, StatusCancelled} {
		req.Status = terminal
		_, err = PlanCancel(req, owner, now)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Contains(t, err.Error(), string(terminal))
	}
}

func TestCheckEditable(t *testing.T) {
	req := pendingRequest(ModeManagerAndGM)
	assert.NoError(t, CheckEditable(req, owner))
	assert.ErrorIs(t, CheckEditable(req, admin), ErrForbidden)

	// a slot acted upon freezes the subject even while still pending
	acted := pendingRequest(ModeManagerAndGM)
	at := time.Now()
	acted.Slot(RoleManager).ActedAt = &at
	err := CheckEditable(acted, owner)
	assert.ErrorIs(t, err, ErrEditNotAllowed)
	assert.ErrorIs(t, err, ErrInvalidState)

	flagged := pendingRequest(ModeManagerAndGM)
	flagged.Acted = true
	assert.ErrorIs(t, CheckEditable(flagged, owner), ErrInvalidState)

	rejectedSlot := pendingRequest(ModeManagerAndGM)
	rejectedSlot.Slot(RoleManager).Status = SlotRejected
	assert.ErrorIs(t, CheckEditable(rejectedSlot, owner), ErrEditNotAllowed)

	terminal := pendingRequest(ModeManagerAndGM)
	terminal.Status = StatusCancelled
	assert.ErrorIs(t, CheckEditable(terminal, owner), ErrEditNotAllowed)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(ErrValidation))
	assert.Equal(t, 400, HTTPStatus(ErrConfiguration))
	assert.Equal(t, 400, HTTPStatus(ErrEditNotAllowed))
	assert.Equal(t, 409, HTTPStatus(ErrDuplicateRequest))
	assert.Equal(t, 409, HTTPStatus(conflictError(StatusPendingManager, nil)))
	assert.Equal(t, 404, HTTPStatus(ErrNotFound))
	assert.Equal(t, 403, HTTPStatus(ErrForbidden))
	assert.Equal(t, 500, HTTPStatus(errStale))
}
