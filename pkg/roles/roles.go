// Package roles classifies a user's role string into the boolean flags the
// permission resolvers build on. Unknown roles classify as nothing.
package roles

import "github.com/geniusharmony/harmony/pkg/model"

type Flags struct {
	IsAdmin      bool
	IsSuperAdmin bool
	IsChefPole   bool
}

func Classify(user *model.User) Flags {
	if user == nil {
		return Flags{}
	}
	return ClassifyRole(user.Role)
}

func ClassifyRole(role model.Role) Flags {
	return Flags{
		IsAdmin:      IsAdmin(role),
		IsSuperAdmin: role == model.RoleSuperAdmin,
		IsChefPole:   role == model.RoleChefPole,
	}
}

func IsAdmin(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleSuperAdmin
}
