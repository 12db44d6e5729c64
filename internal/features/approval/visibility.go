package approval

import (
	"fmt"
	"time"
)

// Participant restricts a query to requests where LoginID is assigned to Role
type Participant struct {
	Role    Role
	LoginID string
}

// Query is the storage-independent description of a visible request set.
// Results are always newest first.
type Query struct {
	Kind             string
	RequesterLoginID string
	EmployeeID       string
	Participant      *Participant
	Statuses         []Status
	ReachedStage     Role
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Skip             int64
	Limit            int64
}

// MineQuery lists every request the actor submitted, in all statuses
func MineQuery(kind string, actor Actor) Query {
	return Query{Kind: kind, RequesterLoginID: actor.LoginID}
}

// InboxQuery computes the stage inbox visible to actor.
//
// Admin viewers see requests pending at the stage, or with ScopeAll every request that
// ever reached the stage. Role holders see requests assigned to them that reached their
// stage, pending or since decided; requests still waiting on an earlier stage stay hidden.
func InboxQuery(kind string, actor Actor, stage Role, scope Scope) (Query, error) {
	if actor.IsAdmin() && CanView(ActorAdmin, stage) {
		q := Query{Kind: kind}
		if scope == ScopeAll {
			q.ReachedStage = stage
		} else {
			q.Statuses = []Status{PendingStatus(stage)}
		}
		return q, nil
	}
	if actor.holds(stage) && actor.canView(stage) {
		return Query{
			Kind:         kind,
			Participant:  &Participant{Role: stage, LoginID: actor.LoginID},
			ReachedStage: stage,
		}, nil
	}
	return Query{}, fmt.Errorf("%w: %s inbox requires the %s or admin role", ErrForbidden, stage, stage)
}

// AdminFilter carries the admin list filters
type AdminFilter struct {
	EmployeeID string
	Status     string
	From       string
	To         string
	Skip       int64
	Limit      int64
}

// AdminQuery validates admin filters; limit is capped at maxLimit
func AdminQuery(kind string, actor Actor, f AdminFilter, maxLimit int64) (Query, error) {
	if !actor.IsAdmin() {
		return Query{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	q := Query{Kind: kind, EmployeeID: f.EmployeeID, Skip: f.Skip, Limit: f.Limit}
	if f.Status != "" {
		st, ok := ParseStatus(f.Status)
		if !ok {
			return Query{}, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
		}
		q.Statuses = []Status{st}
	}
	if f.From != "" {
		from, err := ParseDate("from", f.From)
		if err != nil {
			return Query{}, err
		}
		q.CreatedFrom = &from
	}
	if f.To != "" {
		to, err := ParseDate("to", f.To)
		if err != nil {
			return Query{}, err
		}
		end := to.AddDate(0, 0, 1)
		q.CreatedTo = &end
	}
	if q.CreatedFrom != nil && q.CreatedTo != nil && !q.CreatedFrom.Before(*q.CreatedTo) {
		return Query{}, fmt.Errorf("%w: from must not be after to", ErrValidation)
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Limit <= 0 || q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, nil
}

// CanViewDetail allows the requester, any assigned participant holding that role, or an admin
func CanViewDetail(actor Actor, req *Request) bool {
	if actor.LoginID == "" {
		return false
	}
	if actor.LoginID == req.RequesterLoginID || actor.IsAdmin() {
		return true
	}
	for _, slot := range req.Approvals {
		if slot.LoginID == actor.LoginID && actor.holds(slot.Role) {
			return true
		}
	}
	return false
}
