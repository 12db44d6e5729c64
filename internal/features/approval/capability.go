package approval

import (
	"strings"

	"go-hrflow/pkg/utils"
)

// ActorRole is a role held by the acting user, as issued by the identity provider
type ActorRole string

const (
	ActorManager  ActorRole = "MANAGER"
	ActorGM       ActorRole = "GM"
	ActorCOO      ActorRole = "COO"
	ActorAdmin    ActorRole = "ADMIN" // administrative viewer: reads everything, decides nothing
	ActorEmployee ActorRole = "EMPLOYEE"
)

var actorRoleAliases = map[string]ActorRole{
	"manager":  ActorManager,
	"gm":       ActorGM,
	"coo":      ActorCOO,
	"admin":    ActorAdmin,
	"viewer":   ActorAdmin,
	"hr":       ActorAdmin,
	"employee": ActorEmployee,
}

type capability struct {
	view   bool
	decide bool
}

var capabilities = map[ActorRole]map[Role]capability{
	ActorManager: {RoleManager: {view: true, decide: true}},
	ActorGM:      {RoleGM: {view: true, decide: true}},
	ActorCOO:     {RoleCOO: {view: true, decide: true}},
	ActorAdmin: {
		RoleManager: {view: true},
		RoleGM:      {view: true},
		RoleCOO:     {view: true},
	},
}

// CanView reports whether holders of role may open the stage's inbox
func CanView(role ActorRole, stage Role) bool {
	return capabilities[role][stage].view
}

// CanDecide reports whether holders of role may decide at the stage
func CanDecide(role ActorRole, stage Role) bool {
	return capabilities[role][stage].decide
}

// Actor is the authenticated caller
type Actor struct {
	LoginID string
	Roles   []ActorRole
}

// NewActor normalises raw role names once; unknown names are dropped
func NewActor(loginID string, rawRoles []string) Actor {
	actor := Actor{LoginID: strings.TrimSpace(loginID)}
	seen := map[ActorRole]bool{}
	for _, raw := range rawRoles {
		role, ok := actorRoleAliases[strings.ToLower(strings.TrimSpace(raw))]
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		actor.Roles = append(actor.Roles, role)
	}
	return actor
}

func ActorFromClaims(claims *utils.UserClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return NewActor(claims.UserID, claims.Roles)
}

// IsAdminClaims is the admin guard used by features outside the engine
func IsAdminClaims(claims *utils.UserClaims) bool {
	return ActorFromClaims(claims).IsAdmin()
}

func (a Actor) Has(role ActorRole) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.Has(ActorAdmin)
}

func (a Actor) canView(stage Role) bool {
	for _, r := range a.Roles {
		if CanView(r, stage) {
			return true
		}
	}
	return false
}

func (a Actor) canDecide(stage Role) bool {
	for _, r := range a.Roles {
		if CanDecide(r, stage) {
			return true
		}
	}
	return false
}

// holds reports whether the actor holds the stage's own role, not merely admin visibility
func (a Actor) holds(stage Role) bool {
	return a.Has(ActorRole(stage))
}
