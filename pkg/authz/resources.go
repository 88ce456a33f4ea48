package authz

import (
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/roles"
)

// CanDeleteDocument allows admins and the uploader.
func CanDeleteDocument(user *model.User, doc *model.Document) bool {
	if user == nil || doc == nil {
		return false
	}
	return isAdmin(user) || doc.UploadePar == user.ID
}

// CanEditProfile allows users to edit themselves, and admins to edit anyone.
func CanEditProfile(user *model.User, target *model.User) bool {
	if user == nil || target == nil {
		return false
	}
	return user.ID == target.ID || isAdmin(user)
}

func CanViewUsers(user *model.User) bool {
	return roles.UserHas(user, roles.CapListUsers)
}

func CanManageUsers(user *model.User) bool {
	return roles.UserHas(user, roles.CapAdministrate)
}

func CanViewPoles(user *model.User) bool {
	return roles.UserHas(user, roles.CapViewPoles)
}

func CanManagePoles(user *model.User) bool {
	return roles.UserHas(user, roles.CapAdministrate)
}
