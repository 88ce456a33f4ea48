package roles

import "github.com/geniusharmony/harmony/pkg/model"

// CapabilityMask holds role-level capabilities that do not depend on any entity.
type CapabilityMask uint64

const (
	CapAdministrate CapabilityMask = 1 << iota
	CapDeleteProjects
	CapCreateProjects
	CapListUsers
	CapViewPoles
)

var RoleCapabilityMatrix = map[model.Role]CapabilityMask{
	model.RoleSuperAdmin:    CapAdministrate | CapDeleteProjects | CapCreateProjects | CapListUsers | CapViewPoles,
	model.RoleAdmin:         CapAdministrate | CapCreateProjects | CapListUsers | CapViewPoles,
	model.RoleChefPole:      CapCreateProjects | CapListUsers | CapViewPoles,
	model.RoleMembre:        CapListUsers | CapViewPoles,
	model.RoleArtiste:       CapListUsers,
	model.RoleStagiaire:     0,
	model.RoleCollaborateur: 0,
	model.RoleClient:        0,
	model.RolePartenaire:    0,
}

// Capabilities returns the mask for role; unknown roles get none.
func Capabilities(role model.Role) CapabilityMask {
	return RoleCapabilityMatrix[role]
}

func HasAnyCapabilities(current CapabilityMask, required CapabilityMask) bool {
	return current&required != 0
}

func HasAllCapabilities(current CapabilityMask, required CapabilityMask) bool {
	return current&required == required
}

// UserHas reports whether user's role carries every capability in required.
func UserHas(user *model.User, required CapabilityMask) bool {
	if user == nil {
		return false
	}
	return HasAllCapabilities(Capabilities(user.Role), required)
}
