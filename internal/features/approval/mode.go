package approval

import (
	"fmt"
	"strings"

	"go-hrflow/internal/config"
)

var modeChains = map[Mode][]Role{
	ModeManagerAndGM:  {RoleManager, RoleGM},
	ModeManagerAndCOO: {RoleManager, RoleCOO},
	ModeGMAndCOO:      {RoleGM, RoleCOO},
	ModeManagerOnly:   {RoleManager},
	ModeGMOnly:        {RoleGM},
}

// ParseMode recognises a configured approval mode; blanks and garbage are rejected
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := modeChains[m]
	return m, ok
}

// Chain returns the ordered participant roles of the mode
func (m Mode) Chain() []Role {
	return modeChains[m]
}

// Includes reports whether role participates in the mode
func (m Mode) Includes(role Role) bool {
	for _, r := range modeChains[m] {
		if r == role {
			return true
		}
	}
	return false
}

// Next returns the role after role in the chain, or false when role is last
func (m Mode) Next(role Role) (Role, bool) {
	chain := modeChains[m]
	for i, r := range chain {
		if r == role && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

// Profile is the approval configuration of one employee, as supplied by the directory
type Profile struct {
	EmployeeID     string
	LoginID        string
	DisplayName    string
	Department     string
	Locale         string
	ApprovalMode   string
	ManagerLoginID string
	GMLoginID      string
	COOLoginID     string
}

func (p *Profile) loginFor(role Role) string {
	switch role {
	case RoleManager:
		return strings.TrimSpace(p.ManagerLoginID)
	case RoleGM:
		return strings.TrimSpace(p.GMLoginID)
	case RoleCOO:
		return strings.TrimSpace(p.COOLoginID)
	}
	return ""
}

// Resolution is a frozen approval chain for a new request
type Resolution struct {
	Mode           Mode
	Roles          []Role
	ManagerLoginID string
	GMLoginID      string
	COOLoginID     string
	InitialStatus  Status
}

// Slots builds one pending slot per participating role, in chain order
func (r *Resolution) Slots() []ApprovalSlot {
	slots := make([]ApprovalSlot, 0, len(r.Roles))
	for _, role := range r.Roles {
		slot := ApprovalSlot{Role: role, Status: SlotPending}
		switch role {
		case RoleManager:
			slot.LoginID = r.ManagerLoginID
		case RoleGM:
			slot.LoginID = r.GMLoginID
		case RoleCOO:
			slot.LoginID = r.COOLoginID
		}
		slots = append(slots, slot)
	}
	return slots
}

type ModeResolver struct {
	Default Mode
}

func NewModeResolver(cfg *config.Config) *ModeResolver {
	def, ok := ParseMode(cfg.DefaultApprovalMode)
	if !ok {
		def = ModeManagerAndGM
	}
	return &ModeResolver{Default: def}
}

// Resolve normalises the requested mode and copies the approver logins it needs.
// Roles outside the mode are cleared whatever the profile holds.
func (r *ModeResolver) Resolve(requested string, profile *Profile) (*Resolution, error) {
	mode, ok := ParseMode(requested)
	if !ok {
		mode = r.Default
	}

	res := &Resolution{Mode: mode, Roles: mode.Chain()}
	for _, role := range res.Roles {
		login := profile.loginFor(role)
		if login == "" {
			return nil, fmt.Errorf("%w: approver missing for role %s", ErrConfiguration, role)
		}
		switch role {
		case RoleManager:
			res.ManagerLoginID = login
		case RoleGM:
			res.GMLoginID = login
		case RoleCOO:
			res.COOLoginID = login
		}
	}
	res.InitialStatus = PendingStatus(res.Roles[0])
	return res, nil
}
