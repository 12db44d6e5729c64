package approval

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a decision-making stage in an approval chain
type Role string

const (
	RoleManager Role = "MANAGER"
	RoleGM      Role = "GM"
	RoleCOO     Role = "COO"
)

// Roles lists every decision stage in chain-independent order
var Roles = []Role{RoleManager, RoleGM, RoleCOO}

// ParseRole accepts "manager", "gm", "coo" in any case
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleManager:
		return RoleManager, true
	case RoleGM:
		return RoleGM, true
	case RoleCOO:
		return RoleCOO, true
	}
	return "", false
}

type Status string

const (
	StatusPendingManager Status = "PENDING_MANAGER"
	StatusPendingGM      Status = "PENDING_GM"
	StatusPendingCOO     Status = "PENDING_COO"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
	StatusCancelled      Status = "CANCELLED"
)

// PendingStatuses are the non-terminal states, one per stage
var PendingStatuses = []Status{StatusPendingManager, StatusPendingGM, StatusPendingCOO}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPendingManager, StatusPendingGM, StatusPendingCOO, StatusApproved, StatusRejected, StatusCancelled:
		return st, true
	}
	return "", false
}

// PendingStatus returns the status meaning "waiting for role"
func PendingStatus(role Role) Status {
	return Status("PENDING_" + string(role))
}

// Stage returns the role whose turn it is, if any
func (s Status) Stage() (Role, bool) {
	switch s {
	case StatusPendingManager:
		return RoleManager, true
	case StatusPendingGM:
		return RoleGM, true
	case StatusPendingCOO:
		return RoleCOO, true
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// IsLive reports whether a request in this status blocks a duplicate submission
func (s Status) IsLive() bool {
	return s != StatusRejected && s != StatusCancelled
}

type Mode string

const (
	ModeManagerAndGM  Mode = "MANAGER_AND_GM"
	ModeManagerAndCOO Mode = "MANAGER_AND_COO"
	ModeGMAndCOO      Mode = "GM_AND_COO"
	ModeManagerOnly   Mode = "MANAGER_ONLY"
	ModeGMOnly        Mode = "GM_ONLY"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

func ParseDecision(s string) (Decision, bool) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, true
	case DecisionReject:
		return DecisionReject, true
	}
	return "", false
}

type SlotStatus string

const (
	SlotPending  SlotStatus = "PENDING"
	SlotApproved SlotStatus = "APPROVED"
	SlotRejected SlotStatus = "REJECTED"
)

// Scope selects between the pending queue and the full stage history of an inbox
type Scope string

const (
	ScopePending Scope = "PENDING"
	ScopeAll     Scope = "ALL"
)

func ParseScope(s string) Scope {
	if strings.EqualFold(strings.TrimSpace(s), string(ScopeAll)) {
		return ScopeAll
	}
	return ScopePending
}

// ApprovalSlot is one role's decision record within a request
type ApprovalSlot struct {
	Role    Role       `bson:"role" json:"role"`
	LoginID string     `bson:"login_id" json:"login_id"`
	Status  SlotStatus `bson:"status" json:"status"`
	ActedAt *time.Time `bson:"acted_at,omitempty" json:"acted_at,omitempty"`
	Note    string     `bson:"note,omitempty" json:"note,omitempty"`
}

// NaturalKey is the business identity used for duplicate detection
type NaturalKey struct {
	EmployeeID string `bson:"employee_id" json:"employee_id"`
	DateKey    string `bson:"date_key" json:"date_key"`
	Variant    string `bson:"variant" json:"variant"`
}

type Request struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind             string             `bson:"kind" json:"kind"`
	EmployeeID       string             `bson:"employee_id" json:"employee_id"`
	RequesterLoginID string             `bson:"requester_login_id" json:"requester_login_id"`
	Subject          map[string]any     `bson:"subject" json:"subject"`
	Summary          string             `bson:"summary" json:"summary"`

	ApprovalMode   Mode   `bson:"approval_mode" json:"approval_mode"`
	ManagerLoginID string `bson:"manager_login_id" json:"manager_login_id"`
	GMLoginID      string `bson:"gm_login_id" json:"gm_login_id"`
	COOLoginID     string `bson:"coo_login_id" json:"coo_login_id"`

	Status        Status         `bson:"status" json:"status"`
	Approvals     []ApprovalSlot `bson:"approvals" json:"approvals"`
	ReachedStages []Role         `bson:"reached_stages" json:"reached_stages"` // stages whose pending window has opened
	Acted         bool           `bson:"acted" json:"acted"`                   // any slot decided; subject is frozen
	Live          bool           `bson:"live" json:"-"`                        // mirrors Status.IsLive for the partial unique index
	NaturalKey    NaturalKey     `bson:"natural_key" json:"natural_key"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CancelledBy string     `bson:"cancelled_by,omitempty" json:"cancelled_by,omitempty"`

	// Directory enrichment, never persisted
	EmployeeName string `bson:"-" json:"employee_name,omitempty"`
	Department   string `bson:"-" json:"department,omitempty"`
}

// Slot returns the approval slot for role, or nil when the role does not participate
func (r *Request) Slot(role Role) *ApprovalSlot {
	for i := range r.Approvals {
		if r.Approvals[i].Role == role {
			return &r.Approvals[i]
		}
	}
	return nil
}

// ParticipantLogin returns the login assigned to role on this request
func (r *Request) ParticipantLogin(role Role) string {
	switch role {
	case RoleManager:
		return r.ManagerLoginID
	case RoleGM:
		return r.GMLoginID
	case RoleCOO:
		return r.COOLoginID
	}
	return ""
}

// CurrentApprover is the login whose decision the request waits for
func (r *Request) CurrentApprover() string {
	if stage, ok := r.Status.Stage(); ok {
		return r.ParticipantLogin(stage)
	}
	return ""
}

// HasReached reports whether the stage's pending window has ever opened
func (r *Request) HasReached(role Role) bool {
	for _, s := range r.ReachedStages {
		if s == role {
			return true
		}
	}
	return false
}

func (r *Request) Participants() []string {
	var logins []string
	for _, slot := range r.Approvals {
		if slot.LoginID != "" {
			logins = append(logins, slot.LoginID)
		}
	}
	return logins
}

// StatusCount is one row of the per-kind status summary
type StatusCount struct {
	Kind   string `bson:"kind" json:"kind"`
	Status Status `bson:"status" json:"status"`
	Count  int64  `bson:"count" json:"count"`
}
