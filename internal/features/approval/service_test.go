package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	common_models "go-hrflow/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ids(requests []Request) []string {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = r.ID.Hex()
	}
	return out
}

func TestCreateFreezesChain(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	assert.Equal(t, "test", req.Kind)
	assert.Equal(t, "E001", req.EmployeeID)
	assert.Equal(t, StatusPendingManager, req.Status)
	assert.Equal(t, ModeManagerAndGM, req.ApprovalMode)
	assert.Equal(t, "mgr.bob", req.ManagerLoginID)
	assert.Equal(t, "gm.carol", req.GMLoginID)
	assert.Empty(t, req.COOLoginID, "roles outside the mode are cleared")
	assert.Equal(t, []Role{RoleManager}, req.ReachedStages)
	assert.Equal(t, NaturalKey{EmployeeID: "E001", DateKey: "2026-03-10", Variant: "test"}, req.NaturalKey)
	assert.Equal(t, "Alice", req.EmployeeName)
	assert.Equal(t, "Ops", req.Department)
	require.Len(t, req.Approvals, 2)
	assert.Equal(t, RoleManager, req.Approvals[0].Role)
	assert.Equal(t, RoleGM, req.Approvals[1].Role)

	h.svc.Wait()
	assert.Equal(t, []sent{{Target: "mgr.bob", Key: "request.pending_approval"}}, h.notifier.Sent())
	assert.ElementsMatch(t, []published{
		{Channel: AdminChannel, Type: EventCreated},
		{Channel: "user:emp.alice", Type: EventCreated},
		{Channel: "user:mgr.bob", Type: EventCreated},
		{Channel: "user:gm.carol", Type: EventCreated},
	}, h.broadcaster.Events())
	assert.Equal(t, []common_models.AuditAction{common_models.AuditActionCreate}, h.audit.actions)

	// a profile later changing does not touch the frozen request
	stored, err := h.svc.Get(ctx, testKind{}, req.ID.Hex(), owner)
	require.NoError(t, err)
	assert.Equal(t, "mgr.bob", stored.ManagerLoginID)
}

func TestCreateUsesDefaultModeWhenUnset(t *testing.T) {
	h := newHarness()
	unset := NewActor("emp.unset", []string{"employee"})

	req, err := h.svc.Create(context.Background(), testKind{}, unset, on("2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, ModeManagerAndGM, req.ApprovalMode)
}

func TestCreateRejections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Create(ctx, testKind{}, NewActor("emp.zed", nil), on("2026-03-10"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = h.svc.Create(ctx, testKind{}, NewActor("stranger", nil), on("2026-03-10"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = h.svc.Create(ctx, testKind{}, owner, on("10/03/2026"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.Create(ctx, testKind{}, Actor{}, on("2026-03-10"))
	assert.ErrorIs(t, err, ErrForbidden)

	h.svc.Wait()
	assert.Empty(t, h.notifier.Sent())
}

// manager approves, GM approves, requester sees APPROVED
func TestTwoStageApproval(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	id := req.ID.Hex()

	gmInbox, err := h.svc.Inbox(ctx, testKind{}, gm, RoleGM, ScopePending)
	require.NoError(t, err)
	assert.Empty(t, gmInbox, "requests waiting on the manager stay hidden from the GM")

	h.svc.Wait()
	h.notifier.Reset()

	req, err = h.svc.Decide(ctx, testKind{}, id, manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingGM, req.Status)
	assert.Equal(t, SlotApproved, req.Slot(RoleManager).Status)
	assert.NotNil(t, req.Slot(RoleManager).ActedAt)
	assert.Equal(t, []Role{RoleManager, RoleGM}, req.ReachedStages)

	h.svc.Wait()
	assert.ElementsMatch(t, []sent{
		{Target: "gm.carol", Key: "request.pending_approval"},
		{Target: "emp.alice", Key: "request.advanced"},
	}, h.notifier.Sent())
	h.notifier.Reset()

	gmInbox, err = h.svc.Inbox(ctx, testKind{}, gm, RoleGM, ScopePending)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(gmInbox))

	req, err = h.svc.Decide(ctx, testKind{}, id, gm, RoleGM, DecisionApprove, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	assert.Equal(t, "enjoy", req.Slot(RoleGM).Note)

	mine, err := h.svc.ListMine(ctx, testKind{}, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, StatusApproved, mine[0].Status)

	h.svc.Wait()
	assert.Equal(t, []sent{{Target: "emp.alice", Key: "request.approved"}}, h.notifier.Sent())

	// decided requests remain in the approvers' history
	gmInbox, err = h.svc.Inbox(ctx, testKind{}, gm, RoleGM, ScopePending)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(gmInbox))
}

// GM rejects in GM_AND_COO; the COO never decides
func TestRejectionEndsChain(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dan := NewActor("emp.dan", []string{"employee"})

	req, err := h.svc.Create(ctx, testKind{}, dan, on("2026-03-11"))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingGM, req.Status)
	assert.Empty(t, req.ManagerLoginID)
	id := req.ID.Hex()

	_, err = h.svc.Decide(ctx, testKind{}, id, gm, RoleGM, DecisionReject, "")
	assert.ErrorIs(t, err, ErrValidation)

	req, err = h.svc.Decide(ctx, testKind{}, id, gm, RoleGM, DecisionReject, "insufficient coverage")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, req.Status)
	assert.Equal(t, "insufficient coverage", req.Slot(RoleGM).Note)
	assert.Equal(t, SlotPending, req.Slot(RoleCOO).Status)

	_, err = h.svc.Decide(ctx, testKind{}, id, coo, RoleCOO, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	cooInbox, err := h.svc.Inbox(ctx, testKind{}, coo, RoleCOO, ScopeAll)
	require.NoError(t, err)
	assert.Empty(t, cooInbox)
}

// requester cancels while waiting on the manager; the manager can no longer act
func TestCancelBeforeDecision(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-12"))
	require.NoError(t, err)
	h.svc.Wait()
	h.notifier.Reset()

	req, err = h.svc.Cancel(ctx, testKind{}, req.ID.Hex(), owner)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, req.Status)
	assert.Equal(t, "emp.alice", req.CancelledBy)
	assert.NotNil(t, req.CancelledAt)

	_, err = h.svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "CANCELLED")

	_, err = h.svc.Cancel(ctx, testKind{}, req.ID.Hex(), owner)
	assert.ErrorIs(t, err, ErrInvalidState)

	h.svc.Wait()
	assert.Equal(t, []sent{{Target: "mgr.bob", Key: "request.cancelled"}}, h.notifier.Sent())
}

func TestCancelPermissions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-12"))
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, testKind{}, req.ID.Hex(), manager)
	assert.ErrorIs(t, err, ErrForbidden)

	req, err = h.svc.Cancel(ctx, testKind{}, req.ID.Hex(), admin)
	require.NoError(t, err)
	assert.Equal(t, "hr.admin", req.CancelledBy)
}

// GM inbox for an admin: pending by default, full stage history with ScopeAll
func TestGMInboxScopes(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	create := func(date string) string {
		req, err := h.svc.Create(ctx, testKind{}, owner, on(date))
		require.NoError(t, err)
		return req.ID.Hex()
	}
	approveManager := func(id string) {
		_, err := h.svc.Decide(ctx, testKind{}, id, manager, RoleManager, DecisionApprove, "")
		require.NoError(t, err)
	}

	pendingGM := create("2026-04-01")
	approveManager(pendingGM)

	approved := create("2026-04-02")
	approveManager(approved)
	_, err := h.svc.Decide(ctx, testKind{}, approved, gm, RoleGM, DecisionApprove, "")
	require.NoError(t, err)

	rejected := create("2026-04-03")
	approveManager(rejected)
	_, err = h.svc.Decide(ctx, testKind{}, rejected, gm, RoleGM, DecisionReject, "no")
	require.NoError(t, err)

	cancelled := create("2026-04-04")
	approveManager(cancelled)
	_, err = h.svc.Cancel(ctx, testKind{}, cancelled, owner)
	require.NoError(t, err)

	pendingManager := create("2026-04-05")

	rejectedByManager := create("2026-04-06")
	_, err = h.svc.Decide(ctx, testKind{}, rejectedByManager, manager, RoleManager, DecisionReject, "no")
	require.NoError(t, err)

	all, err := h.svc.Inbox(ctx, testKind{}, admin, RoleGM, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, []string{cancelled, rejected, approved, pendingGM}, ids(all))

	pending, err := h.svc.Inbox(ctx, testKind{}, admin, RoleGM, ScopePending)
	require.NoError(t, err)
	assert.Equal(t, []string{pendingGM}, ids(pending))

	gmHistory, err := h.svc.Inbox(ctx, testKind{}, gm, RoleGM, ScopePending)
	require.NoError(t, err)
	assert.Equal(t, []string{cancelled, rejected, approved, pendingGM}, ids(gmHistory))

	otherGM, err := h.svc.Inbox(ctx, testKind{}, NewActor("gm.other", []string{"gm"}), RoleGM, ScopeAll)
	require.NoError(t, err)
	assert.Empty(t, otherGM)

	managerInbox, err := h.svc.Inbox(ctx, testKind{}, manager, RoleManager, ScopePending)
	require.NoError(t, err)
	assert.Len(t, managerInbox, 6)

	adminManager, err := h.svc.Inbox(ctx, testKind{}, admin, RoleManager, ScopePending)
	require.NoError(t, err)
	assert.Equal(t, []string{pendingManager}, ids(adminManager))
}

func TestInboxForbidden(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Inbox(ctx, testKind{}, manager, RoleGM, ScopePending)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Inbox(ctx, testKind{}, owner, RoleManager, ScopeAll)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecideAuthorization(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	id := req.ID.Hex()

	_, err = h.svc.Decide(ctx, testKind{}, id, otherMgr, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Decide(ctx, testKind{}, id, admin, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Decide(ctx, testKind{}, id, gm, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Decide(ctx, testKind{}, id, gm, RoleGM, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.svc.Decide(ctx, otherKind{}, id, manager, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.Decide(ctx, testKind{}, "not-an-id", manager, RoleManager, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := h.svc.Get(ctx, testKind{}, id, owner)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingManager, stored.Status)
	assert.False(t, stored.Acted)
}

func TestGetVisibility(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	id := req.ID.Hex()

	for _, actor := range []Actor{owner, manager, gm, admin} {
		_, err := h.svc.Get(ctx, testKind{}, id, actor)
		assert.NoError(t, err, actor.LoginID)
	}

	_, err = h.svc.Get(ctx, testKind{}, id, NewActor("emp.mallory", []string{"employee"}))
	assert.ErrorIs(t, err, ErrForbidden)

	// assigned as GM but only holding the manager role
	_, err = h.svc.Get(ctx, testKind{}, id, NewActor("gm.carol", []string{"manager"}))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Get(ctx, otherKind{}, id, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLostDecisionRaceIsConflict(t *testing.T) {
	repo := newMemRepo()
	h := newHarnessWith(repo, testProfiles())
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	// another tab approves after this caller has read the request
	_, err = h.svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)

	racing := newHarnessWith(&staleRead{memRepo: repo, snapshot: req}, testProfiles())
	_, err = racing.svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionReject, "too late")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 409, HTTPStatus(err))
	assert.Contains(t, err.Error(), "expected PENDING_MANAGER but request is now PENDING_GM")

	stored, err := repo.FindByID(ctx, req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusPendingGM, stored.Status)
	assert.Equal(t, SlotApproved, stored.Slot(RoleManager).Status)
}

func TestLostCancelRaceIsConflict(t *testing.T) {
	repo := newMemRepo()
	h := newHarnessWith(repo, testProfiles())
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	_, err = h.svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionReject, "no")
	require.NoError(t, err)

	racing := newHarnessWith(&staleRead{memRepo: repo, snapshot: req}, testProfiles())
	_, err = racing.svc.Cancel(ctx, testKind{}, req.ID.Hex(), owner)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := repo.FindByID(ctx, req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)
	assert.Empty(t, stored.CancelledBy)
}

func TestConcurrentDecisionsCommitOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	id := req.ID.Hex()

	const racers = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, racers)
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			decision, comment := DecisionApprove, ""
			if i%2 == 1 {
				decision, comment = DecisionReject, "no"
			}
			_, errs[i] = h.svc.Decide(ctx, testKind{}, id, manager, RoleManager, decision, comment)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidState), err.Error())
	}
	assert.Equal(t, 1, wins)

	stored, err := h.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusPendingGM, StatusRejected}, stored.Status)
	assert.NotEqual(t, SlotPending, stored.Slot(RoleManager).Status)
}

func TestConcurrentCancelAndDecision(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	id := req.ID.Hex()

	var (
		wg                   sync.WaitGroup
		start                = make(chan struct{})
		cancelErr, decideErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, cancelErr = h.svc.Cancel(ctx, testKind{}, id, owner)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, decideErr = h.svc.Decide(ctx, testKind{}, id, manager, RoleManager, DecisionApprove, "")
	}()
	close(start)
	wg.Wait()

	stored, err := h.repo.FindByID(ctx, id)
	require.NoError(t, err)

	// both may succeed in sequence: approve then cancel at PENDING_GM
	switch {
	case cancelErr == nil && decideErr == nil:
		assert.Equal(t, StatusCancelled, stored.Status)
		assert.Equal(t, SlotApproved, stored.Slot(RoleManager).Status)
	case cancelErr == nil:
		assert.Equal(t, StatusCancelled, stored.Status)
		assert.Equal(t, SlotPending, stored.Slot(RoleManager).Status)
	case decideErr == nil:
		t.Fatalf("cancel of a pending request failed: %v", cancelErr)
	default:
		t.Fatalf("both operations failed: %v / %v", cancelErr, decideErr)
	}
}

func TestConcurrentDuplicateCreates(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	const racers = 12
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, racers)
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.svc.Create(ctx, testKind{}, owner, on("2026-05-01"))
		}(i)
	}
	close(start)
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	}
	assert.Equal(t, 1, created)

	mine, err := h.svc.ListMine(ctx, testKind{}, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestResubmission(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	_, err = h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, 409, HTTPStatus(err))

	_, err = h.svc.Decide(ctx, testKind{}, first.ID.Hex(), manager, RoleManager, DecisionReject, "wrong date")
	require.NoError(t, err)

	second, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, testKind{}, second.ID.Hex(), owner)
	require.NoError(t, err)

	third, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	_, err = h.svc.Decide(ctx, testKind{}, third.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)
	_, err = h.svc.Decide(ctx, testKind{}, third.ID.Hex(), gm, RoleGM, DecisionApprove, "")
	require.NoError(t, err)

	// an approved request still holds its key
	_, err = h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	mine, err := h.svc.ListMine(ctx, testKind{}, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID.Hex(), second.ID.Hex(), first.ID.Hex()}, ids(mine))
}

func TestEdit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	other, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-20"))
	require.NoError(t, err)
	id := req.ID.Hex()

	_, err = h.svc.Edit(ctx, testKind{}, id, manager, on("2026-03-11"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Edit(ctx, testKind{}, id, owner, on("2026-03-20"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	_, err = h.svc.Edit(ctx, testKind{}, id, owner, on("March"))
	assert.ErrorIs(t, err, ErrValidation)

	edited, err := h.svc.Edit(ctx, testKind{}, id, owner, on("2026-03-11"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", edited.NaturalKey.DateKey)
	assert.Equal(t, "test on 2026-03-11", edited.Summary)
	assert.Equal(t, StatusPendingManager, edited.Status)

	// the freed date can be submitted again
	_, err = h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)

	_, err = h.svc.Decide(ctx, testKind{}, other.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)
	_, err = h.svc.Edit(ctx, testKind{}, other.ID.Hex(), owner, on("2026-03-21"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrEditNotAllowed)
	assert.Equal(t, 400, HTTPStatus(err))

	h.svc.Wait()
	assert.Contains(t, h.notifier.Sent(), sent{Target: "mgr.bob", Key: "request.pending_approval"})
}

func TestEditLosingToDecisionIsRejected(t *testing.T) {
	repo := newMemRepo()
	h := newHarnessWith(repo, testProfiles())
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	_, err = h.svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)

	racing := newHarnessWith(&staleRead{memRepo: repo, snapshot: req}, testProfiles())
	_, err = racing.svc.Edit(ctx, testKind{}, req.ID.Hex(), owner, on("2026-03-11"))
	assert.ErrorIs(t, err, ErrEditNotAllowed)

	stored, err := repo.FindByID(ctx, req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", stored.NaturalKey.DateKey)
}

func TestAdminList(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	dan := NewActor("emp.dan", []string{"employee"})

	for _, date := range []string{"2026-06-01", "2026-06-02", "2026-06-03", "2026-06-04"} {
		_, err := h.svc.Create(ctx, testKind{}, owner, on(date))
		require.NoError(t, err)
	}
	_, err := h.svc.Create(ctx, testKind{}, dan, on("2026-06-01"))
	require.NoError(t, err)

	_, err = h.svc.AdminList(ctx, testKind{}, manager, AdminFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	page, err := h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.Limit)
	assert.Len(t, page.Items, 3)

	page, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{Skip: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{Status: "pending_gm"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "E002", page.Items[0].EmployeeID)
	assert.Equal(t, "Dan", page.Items[0].EmployeeName)

	page, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{EmployeeID: "E001", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)

	page, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{From: "2026-03-02", To: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)

	page, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{From: "2026-03-03"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{Status: "LOST"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.AdminList(ctx, testKind{}, admin, AdminFilter{From: "2026-03-05", To: "2026-03-01"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryAndExport(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req, err := h.svc.Create(ctx, testKind{}, owner, on("2026-06-01"))
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, testKind{}, owner, on("2026-06-02"))
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, testKind{}, req.ID.Hex(), owner)
	require.NoError(t, err)

	_, err = h.svc.Summary(ctx, owner)
	assert.ErrorIs(t, err, ErrForbidden)

	counts, err := h.svc.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{Kind: "test", Status: StatusCancelled, Count: 1},
		{Kind: "test", Status: StatusPendingManager, Count: 1},
	}, counts)

	_, _, err = h.svc.Export(ctx, "test", gm, AdminFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	data, filename, err := h.svc.Export(ctx, "test", admin, AdminFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Regexp(t, `^test_\d{8}_\d{6}\.xlsx$`, filename)

	_, filename, err = h.svc.Export(ctx, "", admin, AdminFilter{})
	require.NoError(t, err)
	assert.Regexp(t, `^requests_`, filename)
}

func TestExportRefusesOversizedSets(t *testing.T) {
	h := newHarness()
	h.svc.Config.ExportMaxRows = 2
	ctx := context.Background()

	var created []*Request
	for _, date := range []string{"2026-06-01", "2026-06-02", "2026-06-03"} {
		req, err := h.svc.Create(ctx, testKind{}, owner, on(date))
		require.NoError(t, err)
		created = append(created, req)
	}

	data, _, err := h.svc.Export(ctx, "test", admin, AdminFilter{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "export matches 3 requests, at most 2 allowed")
	assert.Nil(t, data)

	_, err = h.svc.Cancel(ctx, testKind{}, created[0].ID.Hex(), owner)
	require.NoError(t, err)

	data, _, err = h.svc.Export(ctx, "test", admin, AdminFilter{Status: string(StatusPendingManager)})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRemindStale(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	waiting, err := h.svc.Create(ctx, testKind{}, owner, on("2026-06-01"))
	require.NoError(t, err)
	done, err := h.svc.Create(ctx, testKind{}, owner, on("2026-06-02"))
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, testKind{}, done.ID.Hex(), owner)
	require.NoError(t, err)

	h.svc.Wait()
	h.notifier.Reset()

	n, err := h.svc.RemindStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(2 * time.Hour)
	n, err = h.svc.RemindStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.svc.Wait()
	assert.Equal(t, []sent{{Target: "mgr.bob", Key: "request.reminder"}}, h.notifier.Sent())
	assert.Equal(t, StatusPendingManager, waiting.Status)
}

func TestSideEffectFailuresDoNotFailTransitions(t *testing.T) {
	cfg := testConfig()
	repo := newMemRepo()
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	broadcaster := &recordingBroadcaster{panics: true}
	dispatcher := NewDispatcher(brokenDirectory{}, notifier, broadcaster, zap.NewNop(), cfg)
	svc := NewApprovalService(repo, testProfiles(), NewModeResolver(cfg), dispatcher, nil, zap.NewNop(), cfg)
	ctx := context.Background()

	req, err := svc.Create(ctx, testKind{}, owner, on("2026-03-10"))
	require.NoError(t, err)
	assert.Empty(t, req.EmployeeName)

	req, err = svc.Decide(ctx, testKind{}, req.ID.Hex(), manager, RoleManager, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingGM, req.Status)

	svc.Wait()
	assert.NotEmpty(t, notifier.Sent())

	stored, err := repo.FindByID(ctx, req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusPendingGM, stored.Status)
}
